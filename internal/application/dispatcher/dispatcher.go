package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/approval-engine/internal/domain/event"
	"github.com/garyjia/approval-engine/internal/domain/workflow"
)

// DefaultQueueSize bounds the number of events waiting for handlers
const DefaultQueueSize = 256

// Dispatcher routes events to registered handlers. Events accepted by
// Emit are buffered in a bounded queue and delivered by Run.
type Dispatcher interface {
	// Subscribe registers a handler for an event type
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers a handler with a name for debugging
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// Unsubscribe removes a handler by name
	Unsubscribe(eventType event.Type, name string)

	// Dispatch sends event to all registered handlers synchronously.
	// Returns first error encountered (handlers run in order)
	Dispatch(ctx context.Context, evt *event.Event) error

	// Emit enqueues the event without waiting for handlers. A full or
	// closed queue yields an error wrapping workflow.ErrSinkFailure.
	Emit(ctx context.Context, evt *event.Event) error

	// Run delivers queued events until Close is called and the queue is
	// empty. Cancelling ctx does not stop delivery of accepted events.
	Run(ctx context.Context) error

	// Pending returns the number of queued events
	Pending() int

	// Subscriptions lists the handlers registered for an event type
	Subscriptions(eventType event.Type) []Subscription

	// Close stops accepting events. Run returns once it has delivered
	// everything already queued.
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]Subscription
	logger   Logger

	queueSize int
	queue     chan *event.Event
	queueMu   sync.RWMutex

	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithQueueSize bounds the event queue; values below 1 keep the default
func WithQueueSize(size int) Option {
	return func(d *eventDispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers:  make(map[event.Type][]Subscription),
		queueSize: DefaultQueueSize,
	}

	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan *event.Event, d.queueSize)

	return d
}

// Subscribe registers a handler for an event type with an auto-generated name
func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.RLock()
	name := fmt.Sprintf("handler-%d", len(d.handlers[eventType]))
	d.mu.RUnlock()
	d.SubscribeNamed(eventType, name, handler)
}

// SubscribeNamed registers a handler with a specific name for debugging
func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.handlers[eventType] = append(d.handlers[eventType], Subscription{
		Name:      name,
		EventType: eventType,
		handle:    handler,
	})

	if d.logger != nil {
		d.logger.Info("Handler registered",
			"event_type", eventType,
			"handler_name", name,
		)
	}
}

// Unsubscribe removes a handler by name
func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	handlers := d.handlers[eventType]
	filtered := make([]Subscription, 0, len(handlers))
	for _, h := range handlers {
		if h.Name != name {
			filtered = append(filtered, h)
		}
	}
	d.handlers[eventType] = filtered

	if d.logger != nil {
		d.logger.Info("Handler unregistered",
			"event_type", eventType,
			"handler_name", name,
		)
	}
}

// Dispatch sends event to all registered handlers synchronously
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.mu.RLock()
	handlers := append([]Subscription(nil), d.handlers[evt.Type]...)
	d.mu.RUnlock()

	for _, info := range handlers {
		if err := d.safeExecute(ctx, evt, info); err != nil {
			if d.logger != nil {
				d.logger.Error("Handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.Name,
					"error", err,
				)
			}
			return fmt.Errorf("handler %s failed: %w", info.Name, err)
		}
	}

	return nil
}

// Emit enqueues the event for Run
func (d *eventDispatcher) Emit(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("%w: nil event", workflow.ErrSinkFailure)
	}

	d.queueMu.RLock()
	defer d.queueMu.RUnlock()

	if d.closed.Load() {
		return fmt.Errorf("%w: dispatcher is closed", workflow.ErrSinkFailure)
	}

	select {
	case d.queue <- evt:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", workflow.ErrSinkFailure, ctx.Err())
	default:
		return fmt.Errorf("%w: event queue full (%d)", workflow.ErrSinkFailure, d.queueSize)
	}
}

// Run delivers queued events one at a time. Handler errors are logged and
// do not stop delivery. Handlers see ctx values but never its cancellation,
// so a shutdown signal cannot drop events that Emit already accepted.
func (d *eventDispatcher) Run(ctx context.Context) error {
	deliverCtx := context.WithoutCancel(ctx)

	for evt := range d.queue {
		if err := d.Dispatch(deliverCtx, evt); err != nil && d.logger != nil {
			d.logger.Error("Queued event delivery failed",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"approval_id", evt.ApprovalID,
				"error", err,
			)
		}
	}
	return nil
}

func (d *eventDispatcher) Pending() int {
	return len(d.queue)
}

func (d *eventDispatcher) Subscriptions(eventType event.Type) []Subscription {
	d.mu.RLock()
	defer d.mu.RUnlock()

	handlers := d.handlers[eventType]
	result := make([]Subscription, len(handlers))
	for i, h := range handlers {
		result[i] = Subscription{Name: h.Name, EventType: h.EventType}
	}

	return result
}

// Close closes the queue. Callers that need the drain to finish wait for
// their Run loop to return.
func (d *eventDispatcher) Close() error {
	d.queueMu.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.queueMu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	close(d.queue)
	d.queueMu.Unlock()

	if d.logger != nil {
		d.logger.Info("Dispatcher closed, draining event queue", "pending", len(d.queue))
	}

	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info Subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			if d.logger != nil {
				d.logger.Error("Handler panic recovered",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.Name,
					"panic", r,
				)
			}
		}
	}()

	return info.handle(ctx, evt)
}
