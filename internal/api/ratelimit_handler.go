package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/gitsong/internal/api/shared"
	"github.com/phrazzld/gitsong/internal/domain"
)

// RateLimitReader returns live-call accounting.
type RateLimitReader interface {
	Snapshot(ctx context.Context, service string) (*domain.RateLimitCounter, error)
}

// RateLimitHandler exposes rate limit counters.
type RateLimitHandler struct {
	limits RateLimitReader
}

// NewRateLimitHandler creates a RateLimitHandler.
func NewRateLimitHandler(limits RateLimitReader) *RateLimitHandler {
	return &RateLimitHandler{limits: limits}
}

// GetRateLimit handles GET /api/rate-limits/{service}.
func (h *RateLimitHandler) GetRateLimit(w http.ResponseWriter, r *http.Request) {
	service, err := getPathString(r, "service")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	counter, err := h.limits.Snapshot(r.Context(), service)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, counterToResponse(counter))
}
