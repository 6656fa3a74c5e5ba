package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/store"
)

// TaskStore implements store.GenerationTaskStore in memory.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.GenerationTask

	// UpdateFn, when set, replaces the default compare-and-set update.
	UpdateFn func(ctx context.Context, task *domain.GenerationTask) (bool, error)
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*domain.GenerationTask)}
}

// CreateTask implements store.GenerationTaskStore.
func (s *TaskStore) CreateTask(ctx context.Context, task *domain.GenerationTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ExternalTaskID]; ok {
		return store.ErrTaskExists
	}
	s.tasks[task.ExternalTaskID] = task.Clone()
	return nil
}

// GetTask implements store.GenerationTaskStore.
func (s *TaskStore) GetTask(ctx context.Context, externalTaskID string) (*domain.GenerationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[externalTaskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// UpdateTaskIfActive implements store.GenerationTaskStore.
func (s *TaskStore) UpdateTaskIfActive(ctx context.Context, task *domain.GenerationTask) (bool, error) {
	if s.UpdateFn != nil {
		return s.UpdateFn(ctx, task)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[task.ExternalTaskID]
	if !ok {
		return false, store.ErrTaskNotFound
	}
	if current.Status.IsTerminal() {
		return false, nil
	}

	next := task.Clone()
	next.CreatedAt = current.CreatedAt
	next.Kind = current.Kind
	next.SongID = current.SongID
	s.tasks[task.ExternalTaskID] = next
	return true, nil
}

// ListActiveTasks implements store.GenerationTaskStore.
func (s *TaskStore) ListActiveTasks(
	ctx context.Context,
	olderThan time.Duration,
	limit int,
) ([]*domain.GenerationTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var active []*domain.GenerationTask
	for _, t := range s.tasks {
		if t.Status.IsTerminal() {
			continue
		}
		if olderThan > 0 && !t.UpdatedAt.Before(cutoff) {
			continue
		}
		active = append(active, t.Clone())
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active, nil
}

// SongStore implements store.SongStore in memory.
type SongStore struct {
	mu    sync.RWMutex
	songs map[uuid.UUID]domain.Song
}

// NewSongStore creates an empty SongStore.
func NewSongStore() *SongStore {
	return &SongStore{songs: make(map[uuid.UUID]domain.Song)}
}

// CreateSong implements store.SongStore.
func (s *SongStore) CreateSong(ctx context.Context, song *domain.Song) error {
	if err := song.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.songs[song.ID]; ok {
		return store.ErrDuplicate
	}
	s.songs[song.ID] = *song
	return nil
}

// UpdateSong implements store.SongStore.
func (s *SongStore) UpdateSong(ctx context.Context, song *domain.Song) error {
	if err := song.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.songs[song.ID]; !ok {
		return store.ErrSongNotFound
	}
	s.songs[song.ID] = *song
	return nil
}

// GetSong implements store.SongStore.
func (s *SongStore) GetSong(ctx context.Context, id uuid.UUID) (*domain.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	song, ok := s.songs[id]
	if !ok {
		return nil, store.ErrSongNotFound
	}
	return &song, nil
}

// LatestSongForRepository implements store.SongStore.
func (s *SongStore) LatestSongForRepository(ctx context.Context, repo domain.Repository) (*domain.Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Song
	for _, song := range s.songs {
		if song.Repository != repo {
			continue
		}
		if latest == nil || song.CreatedAt.After(latest.CreatedAt) {
			song := song
			latest = &song
		}
	}
	if latest == nil {
		return nil, store.ErrSongNotFound
	}
	return latest, nil
}

// AudioFileStore implements store.AudioFileStore in memory.
type AudioFileStore struct {
	mu    sync.RWMutex
	files []domain.AudioFile
}

// NewAudioFileStore creates an empty AudioFileStore.
func NewAudioFileStore() *AudioFileStore {
	return &AudioFileStore{}
}

// SaveAudioFile implements store.AudioFileStore.
func (s *AudioFileStore) SaveAudioFile(ctx context.Context, file *domain.AudioFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.files {
		if f.TaskID == file.TaskID && f.ResultRefID == file.ResultRefID {
			return store.ErrDuplicate
		}
	}
	s.files = append(s.files, *file)
	return nil
}

// ListAudioFiles implements store.AudioFileStore.
func (s *AudioFileStore) ListAudioFiles(ctx context.Context, taskID string) ([]*domain.AudioFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.AudioFile
	for _, f := range s.files {
		if f.TaskID == taskID {
			f := f
			out = append(out, &f)
		}
	}
	return out, nil
}
