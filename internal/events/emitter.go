package events

import (
	"context"
	"log/slog"
	"sync"
)

// InMemoryEmitter is a synchronous, in-process implementation of Emitter
// that dispatches each event to every registered handler in registration
// order.
type InMemoryEmitter struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *slog.Logger
}

// NewInMemoryEmitter creates an emitter with no handlers registered.
func NewInMemoryEmitter(logger *slog.Logger) *InMemoryEmitter {
	return &InMemoryEmitter{
		logger: logger.With("component", "event_emitter"),
	}
}

// RegisterHandler adds a handler to receive future events.
func (e *InMemoryEmitter) RegisterHandler(handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered event handler", "handler_count", len(e.handlers))
}

// EmitEvent dispatches the event to every handler. A failing handler does
// not stop delivery to the rest; the first error encountered is returned.
func (e *InMemoryEmitter) EmitEvent(ctx context.Context, event *SubmissionEvent) error {
	e.mu.RLock()
	handlers := make([]Handler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	if len(handlers) == 0 {
		e.logger.Warn("no handlers registered for event",
			"event_id", event.ID,
			"event_type", event.Type)
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
