package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/gitsong/internal/artifact"
	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/events"
	"github.com/phrazzld/gitsong/internal/redact"
	"github.com/phrazzld/gitsong/internal/store"
)

//go:generate mockgen -destination=../mocks/music_client.go -package=mocks github.com/phrazzld/gitsong/internal/reconcile MusicClient

// MusicClient reads task status from the music service and normalises its
// webhook payloads.
type MusicClient interface {
	GetTask(ctx context.Context, taskID string) (*domain.TaskUpdate, error)
	ParseCallback(payload []byte) (*domain.TaskUpdate, error)
}

// Archiver copies a generated artifact into durable storage.
type Archiver interface {
	Archive(ctx context.Context, sourceURL, keyPrefix string) (*artifact.Object, error)
}

// Outcome reports what one update did.
type Outcome struct {
	// Task is the stored task after the update.
	Task *domain.GenerationTask
	// Applied is true when the update changed the stored task.
	Applied bool
	// Artifacts lists every stored artifact linked to a completed task.
	Artifacts []*domain.AudioFile
	// ArtifactErr reports artifacts that could not be stored. It never
	// undoes a completed transition.
	ArtifactErr error
}

// Reconciler applies task updates from callbacks and polls.
type Reconciler struct {
	tasks    store.GenerationTaskStore
	audio    store.AudioFileStore
	music    MusicClient
	archiver Archiver
	emitter  events.Emitter
	locks    *keyedMutex
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Reconciler. emitter may be nil.
func New(
	tasks store.GenerationTaskStore,
	audio store.AudioFileStore,
	music MusicClient,
	archiver Archiver,
	emitter events.Emitter,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		tasks:    tasks,
		audio:    audio,
		music:    music,
		archiver: archiver,
		emitter:  emitter,
		locks:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With("component", "task_reconciler"),
	}
}

// Submit records a pending task for an upstream task id. Submitting an id
// that is already recorded returns the stored task unchanged.
func (r *Reconciler) Submit(
	ctx context.Context,
	externalTaskID string,
	kind domain.TaskKind,
	songID uuid.UUID,
) (*domain.GenerationTask, error) {
	task, err := domain.NewGenerationTask(externalTaskID, kind, songID)
	if err != nil {
		return nil, err
	}
	task.CreatedAt = r.now()
	task.UpdatedAt = task.CreatedAt

	err = r.tasks.CreateTask(ctx, task)
	if errors.Is(err, store.ErrTaskExists) {
		r.logger.InfoContext(ctx, "task already recorded", "task_id", externalTaskID)
		return r.tasks.GetTask(ctx, externalTaskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record task %s: %w", externalTaskID, err)
	}

	r.logger.InfoContext(ctx, "task submitted",
		"task_id", externalTaskID,
		"kind", kind,
		"song_id", songID)
	return task, nil
}

// Get returns the stored task.
func (r *Reconciler) Get(ctx context.Context, externalTaskID string) (*domain.GenerationTask, error) {
	task, err := r.tasks.GetTask(ctx, externalTaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, externalTaskID)
	}
	return task, err
}

// Artifacts returns the stored artifacts of a task.
func (r *Reconciler) Artifacts(ctx context.Context, externalTaskID string) ([]*domain.AudioFile, error) {
	return r.audio.ListAudioFiles(ctx, externalTaskID)
}

// HandleCallback normalises a webhook body and applies it.
func (r *Reconciler) HandleCallback(ctx context.Context, payload []byte) (*Outcome, error) {
	update, err := r.music.ParseCallback(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse callback: %w", err)
	}
	update.Source = domain.UpdateSourceCallback
	return r.Apply(ctx, *update)
}

// HandleSignedCallback is HandleCallback for a webhook whose token was
// issued for songID. An update naming a task of another song is rejected
// before anything is applied.
func (r *Reconciler) HandleSignedCallback(ctx context.Context, songID uuid.UUID, payload []byte) (*Outcome, error) {
	update, err := r.music.ParseCallback(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse callback: %w", err)
	}
	update.Source = domain.UpdateSourceCallback

	task, err := r.Get(ctx, update.TaskID)
	if errors.Is(err, ErrUnknownTask) {
		r.logger.WarnContext(ctx, "callback for unknown task ignored",
			"task_id", update.TaskID,
			"song_id", songID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if task.SongID != songID {
		r.logger.WarnContext(ctx, "callback token does not match task",
			"task_id", update.TaskID,
			"song_id", songID)
		return nil, fmt.Errorf("%w: task %s belongs to another song", ErrCallbackSongMismatch, update.TaskID)
	}
	return r.Apply(ctx, *update)
}

// Poll queries the upstream status of a task and applies it. A task that
// is unknown or already terminal is not queried.
func (r *Reconciler) Poll(ctx context.Context, externalTaskID string) (*Outcome, error) {
	task, err := r.Get(ctx, externalTaskID)
	if err != nil {
		return nil, err
	}
	if task.Status.IsTerminal() {
		return r.Apply(ctx, domain.TaskUpdate{
			TaskID: externalTaskID,
			Status: task.Status,
			Source: domain.UpdateSourcePoll,
		})
	}

	update, err := r.music.GetTask(ctx, externalTaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to poll task %s: %w", externalTaskID, err)
	}
	update.TaskID = externalTaskID
	update.Source = domain.UpdateSourcePoll
	return r.Apply(ctx, *update)
}

// Apply is the single transition function for every update source.
//
// An unknown task yields ErrUnknownTask and nothing is created. A terminal
// task is left unchanged; only missing artifacts of a completed task are
// stored. Otherwise the transition is written with a compare-and-set so a
// concurrent writer that already reached a terminal state wins.
func (r *Reconciler) Apply(ctx context.Context, update domain.TaskUpdate) (*Outcome, error) {
	log := r.logger.With("task_id", update.TaskID, "source", update.Source)

	unlock := r.locks.Lock(update.TaskID)
	defer unlock()

	task, err := r.tasks.GetTask(ctx, update.TaskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		log.WarnContext(ctx, "update for unknown task ignored", "status", update.Status)
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, update.TaskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", update.TaskID, err)
	}

	if task.Status.IsTerminal() {
		log.DebugContext(ctx, "task already terminal, update ignored",
			"status", task.Status,
			"update_status", update.Status)
		return r.settled(ctx, task, false), nil
	}

	next, changed := transition(task, update, r.now())
	if !changed {
		log.DebugContext(ctx, "update does not change task", "status", task.Status)
		return &Outcome{Task: task}, nil
	}

	written, err := r.tasks.UpdateTaskIfActive(ctx, next)
	if err != nil {
		return nil, fmt.Errorf("failed to update task %s: %w", update.TaskID, err)
	}
	if !written {
		// Another writer made the task terminal between our read and write.
		current, err := r.tasks.GetTask(ctx, update.TaskID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload task %s: %w", update.TaskID, err)
		}
		log.InfoContext(ctx, "concurrent terminal write won", "status", current.Status)
		return r.settled(ctx, current, false), nil
	}

	log.InfoContext(ctx, "task transitioned",
		"from", task.Status,
		"to", next.Status,
		"result_refs", len(next.ResultRefs))

	if !next.Status.IsTerminal() {
		return &Outcome{Task: next, Applied: true}, nil
	}

	out := r.settled(ctx, next, true)
	r.emit(ctx, out)
	return out, nil
}

// settled builds the outcome for a terminal task, storing any artifacts
// not yet linked.
func (r *Reconciler) settled(ctx context.Context, task *domain.GenerationTask, applied bool) *Outcome {
	out := &Outcome{Task: task, Applied: applied}
	if task.Status != domain.TaskStatusCompleted {
		return out
	}
	out.Artifacts, out.ArtifactErr = r.linkArtifacts(ctx, task)
	if out.ArtifactErr != nil {
		r.logger.ErrorContext(ctx, "failed to store artifacts",
			"task_id", task.ExternalTaskID,
			"error", out.ArtifactErr)
	}
	return out
}

// transition computes the next task state. Status never moves backwards
// and the result is false when nothing would change.
func transition(task *domain.GenerationTask, u domain.TaskUpdate, now time.Time) (*domain.GenerationTask, bool) {
	next := task.Clone()

	switch u.Status {
	case domain.TaskStatusProcessing:
		if task.Status != domain.TaskStatusPending {
			return task, false
		}
		next.Status = domain.TaskStatusProcessing
	case domain.TaskStatusCompleted:
		next.Status = domain.TaskStatusCompleted
		next.ResultRefs = append([]domain.ResultRef(nil), u.ResultRefs...)
		next.LastError = ""
		next.CompletedAt = &now
	case domain.TaskStatusFailed:
		next.Status = domain.TaskStatusFailed
		next.LastError = redact.String(u.Error)
		if next.LastError == "" {
			next.LastError = "generation failed"
		}
		next.CompletedAt = &now
	default:
		return task, false
	}

	next.UpdatedAt = now
	return next, true
}

// linkArtifacts stores every result ref of a completed task that has no
// AudioFile yet. It is idempotent per (task, ref).
func (r *Reconciler) linkArtifacts(ctx context.Context, task *domain.GenerationTask) ([]*domain.AudioFile, error) {
	files, err := r.audio.ListAudioFiles(ctx, task.ExternalTaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	linked := make(map[string]bool, len(files))
	for _, f := range files {
		linked[f.ResultRefID] = true
	}

	var errs []error
	for _, ref := range task.ResultRefs {
		if linked[ref.ID] {
			continue
		}
		source := ref.AudioURL
		if source == "" {
			source = ref.StreamURL
		}
		if source == "" {
			continue
		}

		file, err := r.storeArtifact(ctx, task, ref, source)
		if err != nil {
			errs = append(errs, fmt.Errorf("result %s: %w", ref.ID, err))
			continue
		}
		files = append(files, file)
		linked[ref.ID] = true
	}
	return files, errors.Join(errs...)
}

func (r *Reconciler) storeArtifact(
	ctx context.Context,
	task *domain.GenerationTask,
	ref domain.ResultRef,
	source string,
) (*domain.AudioFile, error) {
	prefix, err := artifact.Key("songs", task.SongID.String(), task.ExternalTaskID, ref.ID)
	if err != nil {
		return nil, err
	}
	obj, err := r.archiver.Archive(ctx, source, prefix)
	if err != nil {
		return nil, err
	}

	file := &domain.AudioFile{
		ID:          uuid.New(),
		TaskID:      task.ExternalTaskID,
		ResultRefID: ref.ID,
		SongID:      task.SongID,
		SourceURL:   source,
		StorageKey:  obj.Key,
		StorageURL:  obj.URL,
		Title:       ref.Title,
		Duration:    ref.Duration,
		CreatedAt:   r.now(),
	}
	if err := r.audio.SaveAudioFile(ctx, file); err != nil && !errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("failed to save audio file: %w", err)
	}
	return file, nil
}

func (r *Reconciler) emit(ctx context.Context, out *Outcome) {
	if r.emitter == nil {
		return
	}
	eventType := events.TypeTaskCompleted
	if out.Task.Status == domain.TaskStatusFailed {
		eventType = events.TypeTaskFailed
	}

	payload := events.TaskTransition{
		TaskID:    out.Task.ExternalTaskID,
		SongID:    out.Task.SongID,
		Kind:      string(out.Task.Kind),
		Status:    string(out.Task.Status),
		LastError: out.Task.LastError,
	}
	for _, f := range out.Artifacts {
		payload.Artifacts = append(payload.Artifacts, f.StorageURL)
	}

	event, err := events.NewEvent(eventType, payload)
	if err == nil {
		err = r.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to emit task event",
			"task_id", out.Task.ExternalTaskID,
			"event_type", eventType,
			"error", err)
	}
}
