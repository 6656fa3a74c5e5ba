package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/phrazzld/gitsong/internal/api/shared"
	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/orchestrator"
	"github.com/phrazzld/gitsong/internal/platform/logger"
)

// SongGenerator runs the song pipeline.
type SongGenerator interface {
	Generate(ctx context.Context, req orchestrator.SongRequest) (*orchestrator.Handle, error)
	Song(ctx context.Context, id uuid.UUID) (*domain.Song, error)
}

// SongHandler handles song requests.
type SongHandler struct {
	songs     SongGenerator
	validator *validator.Validate
}

// NewSongHandler creates a SongHandler.
func NewSongHandler(songs SongGenerator) *SongHandler {
	return &SongHandler{
		songs:     songs,
		validator: validator.New(),
	}
}

// CreateSong handles POST /api/songs. It answers 202 once the music job is
// submitted; the song finishes asynchronously.
func (h *SongHandler) CreateSong(w http.ResponseWriter, r *http.Request) {
	var body CreateSongRequest
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err), "Invalid request format")
		return
	}
	if err := h.validator.Struct(body); err != nil {
		HandleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrValidation, err), "")
		return
	}
	req, err := body.toSongRequest()
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	handle, err := h.songs.Generate(r.Context(), req)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContext(r.Context()).InfoContext(r.Context(), "song accepted",
		"song_id", handle.SongID,
		"task_id", handle.TaskID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, SongHandleResponse{
		SongID: handle.SongID.String(),
		TaskID: handle.TaskID,
		Status: string(handle.Status),
	})
}

// GetSong handles GET /api/songs/{id}.
func (h *SongHandler) GetSong(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	song, err := h.songs.Song(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, songToResponse(song))
}
