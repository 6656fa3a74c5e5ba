package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

type registration struct {
	handler Handler
	types   []string
}

func (r registration) wants(eventType string) bool {
	return len(r.types) == 0 || slices.Contains(r.types, eventType)
}

// InMemoryEmitter dispatches events synchronously to handlers registered
// in process.
type InMemoryEmitter struct {
	mu       sync.RWMutex
	handlers []registration
	logger   *slog.Logger
}

var _ Emitter = (*InMemoryEmitter)(nil)

// NewInMemoryEmitter creates a new instance of InMemoryEmitter.
func NewInMemoryEmitter(logger *slog.Logger) *InMemoryEmitter {
	return &InMemoryEmitter{
		logger: logger.With("component", "event_emitter"),
	}
}

// RegisterHandler subscribes handler to the given event types, or to every
// event when no type is given.
func (e *InMemoryEmitter) RegisterHandler(handler Handler, types ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, registration{handler: handler, types: types})
	e.logger.Debug("registered event handler",
		"handler_count", len(e.handlers),
		"event_types", types)
}

// EmitEvent publishes the given event to all interested handlers.
// If any handler returns an error, the event will still be sent to all other handlers,
// and the first error encountered will be returned.
func (e *InMemoryEmitter) EmitEvent(ctx context.Context, event *Event) error {
	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers))
	for _, r := range e.handlers {
		if r.wants(event.Type) {
			handlers = append(handlers, r.handler)
		}
	}
	e.mu.RUnlock()

	if len(handlers) == 0 {
		e.logger.DebugContext(ctx, "no handlers registered for event",
			"event_id", event.ID,
			"event_type", event.Type)
		return nil
	}

	var firstErr error
	for i, handler := range handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			e.logger.ErrorContext(ctx, "handler failed to process event",
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
