package port

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/entity"
	"github.com/garyjia/approval-engine/internal/domain/event"
)

// EventSink accepts engine events after the originating transaction commits.
// Emit must not block on handler work; a refused event returns an error
// wrapping workflow.ErrSinkFailure.
type EventSink interface {
	Emit(ctx context.Context, evt *event.Event) error
}

// NotificationFeed fans notifications out to live subscribers of one user
type NotificationFeed interface {
	Publish(ctx context.Context, n *entity.Notification) error
	// Subscribe returns a channel closed when ctx is cancelled
	Subscribe(ctx context.Context, userID string) (<-chan *entity.Notification, error)
}
