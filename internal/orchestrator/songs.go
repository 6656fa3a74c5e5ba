package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/events"
	"github.com/phrazzld/gitsong/internal/store"
)

// SongStatusHandler moves a song to its final status when its music task
// reaches a terminal state.
type SongStatusHandler struct {
	songs  store.SongStore
	logger *slog.Logger
}

var _ events.Handler = (*SongStatusHandler)(nil)

// NewSongStatusHandler creates a SongStatusHandler.
func NewSongStatusHandler(songs store.SongStore, logger *slog.Logger) *SongStatusHandler {
	return &SongStatusHandler{
		songs:  songs,
		logger: logger.With("component", "song_status_handler"),
	}
}

// Register subscribes the handler to task events.
func (h *SongStatusHandler) Register(emitter *events.InMemoryEmitter) {
	emitter.RegisterHandler(h, events.TypeTaskCompleted, events.TypeTaskFailed)
}

// HandleEvent implements events.Handler.
func (h *SongStatusHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	var t events.TaskTransition
	if err := event.UnmarshalPayload(&t); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", event.Type, err)
	}

	song, err := h.songs.GetSong(ctx, t.SongID)
	if err != nil {
		return fmt.Errorf("failed to load song %s: %w", t.SongID, err)
	}
	if song.Status == domain.SongStatusCompleted || song.Status == domain.SongStatusFailed {
		return nil
	}

	switch event.Type {
	case events.TypeTaskCompleted:
		song.Status = domain.SongStatusCompleted
	case events.TypeTaskFailed:
		song.Status = domain.SongStatusFailed
		song.FailedStage = StageMusic
		song.ErrorMessage = t.LastError
	default:
		return nil
	}
	song.UpdatedAt = time.Now().UTC()

	if err := h.songs.UpdateSong(ctx, song); err != nil {
		return fmt.Errorf("failed to update song %s: %w", song.ID, err)
	}
	h.logger.InfoContext(ctx, "song finished",
		"song_id", song.ID,
		"task_id", t.TaskID,
		"status", song.Status)
	return nil
}
