package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/gitsong/internal/api/shared"
	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/orchestrator"
	"github.com/phrazzld/gitsong/internal/platform/github"
	"github.com/phrazzld/gitsong/internal/platform/suno"
	"github.com/phrazzld/gitsong/internal/reconcile"
	"github.com/phrazzld/gitsong/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing their types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrInvalidCallbackToken):
		return http.StatusUnauthorized

	case errors.Is(err, reconcile.ErrCallbackSongMismatch):
		return http.StatusForbidden

	case errors.Is(err, reconcile.ErrUnknownTask),
		errors.Is(err, github.ErrRepositoryNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, orchestrator.ErrNoCommits):
		return http.StatusUnprocessableEntity

	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, suno.ErrInvalidPayload),
		errors.Is(err, shared.ErrBodyTooLarge):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, reconcile.ErrInvalidCallbackToken):
		return "Invalid callback token"

	case errors.Is(err, reconcile.ErrCallbackSongMismatch):
		return "Callback token does not match task"

	case errors.Is(err, reconcile.ErrUnknownTask),
		errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrSongNotFound):
		return "Song not found"

	case errors.Is(err, github.ErrRepositoryNotFound):
		return "Repository not found"

	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, orchestrator.ErrNoCommits):
		return "No commits found in the requested window"

	case errors.Is(err, suno.ErrInvalidPayload):
		return "Invalid callback payload"

	case errors.Is(err, shared.ErrBodyTooLarge):
		return "Request body too large"

	case errors.Is(err, domain.ErrValidation):
		return SanitizeValidationError(err)

	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"

	default:
		if stage := orchestrator.StageOf(err); stage != "" {
			return fmt.Sprintf("Song generation failed at stage %s", stage)
		}
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validation failure into a short message
// naming the field and rule.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
	}
	prefix := domain.ErrValidation.Error() + ": "
	if msg := err.Error(); strings.Contains(msg, prefix) {
		return "Validation error: " + msg[strings.Index(msg, prefix)+len(prefix):]
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required", "required_if":
		return "required field"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the response for err. A non-empty message
// replaces the mapped one.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}

	var opts []shared.ResponseOption
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
