package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types emitted when a generation task reaches a terminal state.
const (
	TypeTaskCompleted = "generation_task.completed"
	TypeTaskFailed    = "generation_task.failed"
)

// Event is a typed notification with a JSON payload.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type names what happened, for example "generation_task.completed"
	Type string `json:"type"`

	// Payload contains the event-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates a new Event with the specified type and payload.
func NewEvent(eventType string, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TaskTransition is the payload of the generation task events.
type TaskTransition struct {
	TaskID    string    `json:"task_id"`
	SongID    uuid.UUID `json:"song_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	LastError string    `json:"last_error,omitempty"`
	// Artifacts lists storage URLs linked so far.
	Artifacts []string `json:"artifacts,omitempty"`
}

// Handler processes events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// Emitter publishes events without knowledge of their handlers.
type Emitter interface {
	// EmitEvent publishes the given event to all interested handlers.
	EmitEvent(ctx context.Context, event *Event) error
}
