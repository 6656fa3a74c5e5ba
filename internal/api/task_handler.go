package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/gitsong/internal/api/shared"
	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/reconcile"
)

// TaskReconciler reads and advances generation tasks.
type TaskReconciler interface {
	Get(ctx context.Context, externalTaskID string) (*domain.GenerationTask, error)
	Artifacts(ctx context.Context, externalTaskID string) ([]*domain.AudioFile, error)
	Poll(ctx context.Context, externalTaskID string) (*reconcile.Outcome, error)
	HandleSignedCallback(ctx context.Context, songID uuid.UUID, payload []byte) (*reconcile.Outcome, error)
}

// TaskHandler handles generation task requests.
type TaskHandler struct {
	reconciler TaskReconciler
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(reconciler TaskReconciler) *TaskHandler {
	return &TaskHandler{reconciler: reconciler}
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathString(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	task, err := h.reconciler.Get(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	files, err := h.reconciler.Artifacts(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load artifacts")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task, files))
}

// PollTask handles POST /api/tasks/{id}/poll. A terminal task is returned
// as stored without querying the music service.
func (h *TaskHandler) PollTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := getPathString(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	out, err := h.reconciler.Poll(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, PollResponse{
		Task:    taskToResponse(out.Task, out.Artifacts),
		Applied: out.Applied,
	})
}
