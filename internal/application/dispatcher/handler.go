package dispatcher

import (
	"context"

	"github.com/garyjia/approval-engine/internal/domain/event"
)

// Handler reacts to one approval lifecycle event, such as routing a
// notification to the next approver. Errors are logged by Run and do not
// hold back later events.
type Handler func(ctx context.Context, evt *event.Event) error

// Subscription is a named handler bound to one approval event type.
// Copies handed out by Subscriptions carry no handler.
type Subscription struct {
	Name      string
	EventType event.Type
	handle    Handler
}
