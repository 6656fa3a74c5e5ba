package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/gitsong/internal/api/shared"
	"github.com/phrazzld/gitsong/internal/platform/logger"
	"github.com/phrazzld/gitsong/internal/reconcile"
)

// CallbackHandler receives music service webhooks. It runs behind the
// callback token middleware.
type CallbackHandler struct {
	reconciler TaskReconciler
}

// NewCallbackHandler creates a CallbackHandler.
func NewCallbackHandler(reconciler TaskReconciler) *CallbackHandler {
	return &CallbackHandler{reconciler: reconciler}
}

// HandleMusicCallback handles POST /api/callbacks/music. Unknown tasks and
// repeated deliveries are acknowledged with 200 so the sender stops
// retrying.
func (h *CallbackHandler) HandleMusicCallback(w http.ResponseWriter, r *http.Request) {
	songID, ok := shared.GetSongID(r.Context())
	if !ok {
		HandleAPIError(w, r, reconcile.ErrInvalidCallbackToken, "")
		return
	}
	body, err := shared.ReadBody(w, r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	out, err := h.reconciler.HandleSignedCallback(r.Context(), songID, body)
	switch {
	case errors.Is(err, reconcile.ErrUnknownTask):
		shared.RespondWithJSON(w, r, http.StatusOK, CallbackResponse{Status: CallbackIgnored})
		return
	case err != nil:
		HandleAPIError(w, r, err, "")
		return
	}

	log := logger.FromContext(r.Context())
	if out.ArtifactErr != nil {
		log.WarnContext(r.Context(), "callback applied with missing artifacts",
			"task_id", out.Task.ExternalTaskID,
			"error", out.ArtifactErr)
	}
	status := CallbackDuplicate
	if out.Applied {
		status = CallbackApplied
	}
	log.InfoContext(r.Context(), "music callback handled",
		"task_id", out.Task.ExternalTaskID,
		"status", out.Task.Status,
		"outcome", status)
	shared.RespondWithJSON(w, r, http.StatusOK, CallbackResponse{Status: status})
}
