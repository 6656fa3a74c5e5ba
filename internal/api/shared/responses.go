package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/gitsong/internal/platform/logger"
	"github.com/phrazzld/gitsong/internal/redact"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// ResponseOption customises an error response.
type ResponseOption func(*errorLogPolicy)

type errorLogPolicy struct {
	elevated bool
}

// WithElevatedLogLevel logs a 4xx response at WARN instead of DEBUG.
func WithElevatedLogLevel() ResponseOption {
	return func(p *errorLogPolicy) { p.elevated = true }
}

func (p errorLogPolicy) level(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusTooManyRequests, p.elevated:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

// RespondWithJSON writes data as JSON with the given status.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(r.Context()).ErrorContext(r.Context(), "encode response", "error", err)
	}
}

// RespondWithError writes an error body carrying the request trace ID.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	RespondWithJSON(w, r, status, ErrorResponse{Error: message, TraceID: GetTraceID(r.Context())})
}

// RespondWithErrorAndLog sends userMessage to the client and logs err with
// secrets redacted. Only userMessage ever leaves the process.
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	userMessage string,
	err error,
	opts ...ResponseOption,
) {
	var policy errorLogPolicy
	for _, opt := range opts {
		opt(&policy)
	}

	ctx := r.Context()
	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status_code", status),
		slog.String("user_message", userMessage),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}
	logger.FromContext(ctx).LogAttrs(ctx, policy.level(status), "api error response", attrs...)

	RespondWithError(w, r, status, userMessage)
}
