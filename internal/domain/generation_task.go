package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskKind identifies what an upstream generation task produces.
type TaskKind string

// Supported generation task kinds.
const (
	TaskKindLyrics TaskKind = "lyrics"
	TaskKindAudio  TaskKind = "audio"
)

// TaskStatus represents the lifecycle state of a generation task.
type TaskStatus string

// Possible task status values. Completed and failed are terminal.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// ResultRef describes one artifact produced by an upstream generation task.
type ResultRef struct {
	ID        string  `json:"id"`
	AudioURL  string  `json:"audio_url,omitempty"`
	StreamURL string  `json:"stream_url,omitempty"`
	ImageURL  string  `json:"image_url,omitempty"`
	Title     string  `json:"title,omitempty"`
	Text      string  `json:"text,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}

// GenerationTask is the local record of a long-running upstream job.
// It is owned by the task reconciler; once terminal it never changes.
type GenerationTask struct {
	ExternalTaskID string      `json:"external_task_id"`
	Kind           TaskKind    `json:"kind"`
	Status         TaskStatus  `json:"status"`
	ResultRefs     []ResultRef `json:"result_refs"`
	LastError      string      `json:"last_error,omitempty"`
	SongID         uuid.UUID   `json:"song_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
}

// NewGenerationTask creates a pending task for an upstream task identifier.
func NewGenerationTask(externalTaskID string, kind TaskKind, songID uuid.UUID) (*GenerationTask, error) {
	now := time.Now().UTC()
	t := &GenerationTask{
		ExternalTaskID: externalTaskID,
		Kind:           kind,
		Status:         TaskStatusPending,
		SongID:         songID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks if the task has valid data.
func (t *GenerationTask) Validate() error {
	if t.ExternalTaskID == "" {
		return fmt.Errorf("%w: external task id is empty", ErrInvalidID)
	}
	if t.Kind != TaskKindLyrics && t.Kind != TaskKindAudio {
		return fmt.Errorf("%w: %q", ErrInvalidTaskKind, t.Kind)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTaskStatus, t.Status)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (t *GenerationTask) Clone() *GenerationTask {
	if t == nil {
		return nil
	}
	c := *t
	if t.ResultRefs != nil {
		c.ResultRefs = append([]ResultRef(nil), t.ResultRefs...)
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
