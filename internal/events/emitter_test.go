package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/gitsong/internal/platform/logger"
)

// MockEventHandler records the events it receives.
type MockEventHandler struct {
	LastEvent    *Event
	HandlerError error
	HandledCount int
}

// HandleEvent implements Handler.
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *Event) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestInMemoryEmitter(t *testing.T) {
	t.Parallel()

	newEvent := func(t *testing.T, eventType string) *Event {
		t.Helper()
		e, err := NewEvent(eventType, TaskTransition{TaskID: "task-1"})
		require.NoError(t, err)
		return e
	}

	t.Run("emit event with no handlers", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEmitter(logger.Discard())
		assert.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t, TypeTaskCompleted)))
	})

	t.Run("handlers filtered by type", func(t *testing.T) {
		t.Parallel()
		emitter := NewInMemoryEmitter(logger.Discard())
		all := &MockEventHandler{}
		completed := &MockEventHandler{}
		failed := &MockEventHandler{}
		emitter.RegisterHandler(all)
		emitter.RegisterHandler(completed, TypeTaskCompleted)
		emitter.RegisterHandler(failed, TypeTaskFailed)

		event := newEvent(t, TypeTaskCompleted)
		require.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, 1, all.HandledCount)
		assert.Equal(t, 1, completed.HandledCount)
		assert.Zero(t, failed.HandledCount)
		assert.Equal(t, event, completed.LastEvent)
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		t.Parallel()
		buf, log := logger.NewTestLogger(t)
		emitter := NewInMemoryEmitter(log)
		failing := &MockEventHandler{HandlerError: errors.New("handler error")}
		success := &MockEventHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(success)

		err := emitter.EmitEvent(context.Background(), newEvent(t, TypeTaskFailed))
		assert.EqualError(t, err, "handler error")
		assert.Equal(t, 1, failing.HandledCount)
		assert.Equal(t, 1, success.HandledCount)
		logger.AssertLogContains(t, buf, "handler failed to process event")
	})
}
