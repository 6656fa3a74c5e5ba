package middleware

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/phrazzld/gitsong/internal/api/shared"
	"github.com/phrazzld/gitsong/internal/platform/logger"
	"github.com/phrazzld/gitsong/internal/redact"
	"github.com/phrazzld/gitsong/internal/reconcile"
)

// TokenValidator checks a callback token and returns its song.
type TokenValidator interface {
	Validate(token string) (uuid.UUID, error)
}

// CallbackAuth authenticates music service webhooks by the token embedded
// in the callback URL.
type CallbackAuth struct {
	validator TokenValidator
}

// NewCallbackAuth creates a CallbackAuth.
func NewCallbackAuth(validator TokenValidator) *CallbackAuth {
	return &CallbackAuth{validator: validator}
}

// Authenticate reads the token query parameter and adds the song it was
// issued for to the request context.
func (m *CallbackAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Callback token required")
			return
		}

		songID, err := m.validator.Validate(token)
		if err != nil {
			if errors.Is(err, reconcile.ErrInvalidCallbackToken) {
				logger.FromContext(r.Context()).WarnContext(r.Context(), "rejected callback token",
					"error", redact.Error(err))
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid callback token")
				return
			}
			logger.FromContext(r.Context()).ErrorContext(r.Context(), "failed to validate callback token",
				"error", redact.Error(err))
			shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.WithSongID(r.Context(), songID)))
	})
}
