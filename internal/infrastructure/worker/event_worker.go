package worker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/dispatcher"
)

// EventWorker drains the dispatcher's event queue in the background
type EventWorker struct {
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewEventWorker creates a worker that delivers queued lifecycle events
func NewEventWorker(d dispatcher.Dispatcher, logger *zap.Logger) *EventWorker {
	return &EventWorker{
		dispatcher: d,
		logger:     logger,
	}
}

func (w *EventWorker) Name() string {
	return "event-queue"
}

// Start launches the delivery loop
func (w *EventWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("%s already running", w.Name())
	}
	w.running = true
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		// Run outlives ctx; only Stop ends the loop
		if err := w.dispatcher.Run(ctx); err != nil {
			w.logger.Error("Event queue loop exited", zap.Error(err))
			return
		}
		w.logger.Info("Event queue loop exited")
	}()

	return nil
}

// Stop closes the queue, lets the loop deliver what is left and waits for it
func (w *EventWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	done := w.done
	w.mu.Unlock()

	w.logger.Info("Draining event queue", zap.Int("pending", w.dispatcher.Pending()))
	if err := w.dispatcher.Close(); err != nil {
		return fmt.Errorf("failed to close dispatcher: %w", err)
	}
	<-done
	return nil
}
