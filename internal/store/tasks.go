package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/gitsong/internal/domain"
)

// GenerationTaskStore persists generation tasks keyed by external task id.
type GenerationTaskStore interface {
	// CreateTask saves a new task.
	// Returns ErrTaskExists if the external id is already recorded.
	CreateTask(ctx context.Context, task *domain.GenerationTask) error

	// GetTask retrieves a task by external id.
	// Returns ErrTaskNotFound if the task does not exist.
	GetTask(ctx context.Context, externalTaskID string) (*domain.GenerationTask, error)

	// UpdateTaskIfActive replaces the mutable fields of a task only while the
	// stored status is non-terminal. It reports whether the write happened;
	// false with a nil error means the task was already terminal.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateTaskIfActive(ctx context.Context, task *domain.GenerationTask) (bool, error)

	// ListActiveTasks returns non-terminal tasks not updated since before
	// olderThan ago, oldest first. A zero olderThan returns all active tasks.
	ListActiveTasks(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.GenerationTask, error)
}

// SongStore persists song records.
type SongStore interface {
	// CreateSong saves a new song.
	CreateSong(ctx context.Context, song *domain.Song) error

	// UpdateSong saves changes to an existing song.
	// Returns ErrSongNotFound if the song does not exist.
	UpdateSong(ctx context.Context, song *domain.Song) error

	// GetSong retrieves a song by id.
	// Returns ErrSongNotFound if the song does not exist.
	GetSong(ctx context.Context, id uuid.UUID) (*domain.Song, error)

	// LatestSongForRepository returns the most recently created song for repo.
	// Returns ErrSongNotFound when the repository has no history.
	LatestSongForRepository(ctx context.Context, repo domain.Repository) (*domain.Song, error)
}

// AudioFileStore persists stored artifacts linked to their generation task.
type AudioFileStore interface {
	// SaveAudioFile records a stored artifact. Saving the same
	// (TaskID, ResultRefID) pair twice returns ErrDuplicate.
	SaveAudioFile(ctx context.Context, file *domain.AudioFile) error

	// ListAudioFiles returns the artifacts stored for a task, oldest first.
	ListAudioFiles(ctx context.Context, taskID string) ([]*domain.AudioFile, error)
}
