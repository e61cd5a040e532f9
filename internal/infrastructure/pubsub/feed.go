package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/domain/entity"
)

// DefaultFeedBuffer is the per-subscriber output buffer
const DefaultFeedBuffer = 64

const topicPrefix = "notifications."

// Feed fans notifications out to live subscribers over an in-process
// Watermill GoChannel, one topic per user. Messages published while a
// user has no subscriber are dropped; the mailbox is the record.
type Feed struct {
	pubSub *gochannel.GoChannel
	logger *zap.Logger
}

// NewFeed creates a new live notification feed
func NewFeed(buffer int, logger *zap.Logger) *Feed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Feed{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer:            int64(buffer),
				Persistent:                     false,
				BlockPublishUntilSubscriberAck: false,
			},
			NewZapAdapter(logger),
		),
		logger: logger,
	}
}

func topicFor(userID string) string {
	return topicPrefix + userID
}

// Publish sends n to every live subscriber of n.UserID
func (f *Feed) Publish(ctx context.Context, n *entity.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("notification_type", n.Type)
	msg.SetContext(ctx)

	if err := f.pubSub.Publish(topicFor(n.UserID), msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Subscribe streams notifications for userID until ctx is cancelled. The
// returned channel is closed when the subscription ends.
func (f *Feed) Subscribe(ctx context.Context, userID string) (<-chan *entity.Notification, error) {
	messages, err := f.pubSub.Subscribe(ctx, topicFor(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to notifications: %w", err)
	}

	out := make(chan *entity.Notification)
	go func() {
		defer close(out)
		for msg := range messages {
			var n entity.Notification
			if err := json.Unmarshal(msg.Payload, &n); err != nil {
				f.logger.Error("Dropping malformed notification message",
					zap.String("message_uuid", msg.UUID),
					zap.Error(err))
				msg.Ack()
				continue
			}

			select {
			case out <- &n:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()

	return out, nil
}

// Close shuts down the underlying pub/sub and ends all subscriptions
func (f *Feed) Close() error {
	return f.pubSub.Close()
}
