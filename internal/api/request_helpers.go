package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/gitsong/internal/domain"
)

// getPathUUID parses a UUID path parameter.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", domain.ErrInvalidID, paramName)
	}
	return id, nil
}

// getPathString returns a non-empty path parameter.
func getPathString(r *http.Request, paramName string) (string, error) {
	raw := strings.TrimSpace(chi.URLParam(r, paramName))
	if raw == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrValidation, paramName)
	}
	return raw, nil
}
