package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// ContextKey is the type of request context keys set by the api packages.
type ContextKey string

const (
	// TraceIDKey holds the request trace ID.
	TraceIDKey ContextKey = "traceID"

	// SongIDContextKey holds the song a verified callback token was issued for.
	SongIDContextKey ContextKey = "songID"

	// TraceIDLength is the number of random bytes in a trace ID.
	TraceIDLength = 16
)

// SetTraceID adds a new trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID returns the trace ID of the context, or "".
func GetTraceID(ctx context.Context) string {
	traceID, _ := ctx.Value(TraceIDKey).(string)
	return traceID
}

// WithSongID records the song of a verified callback token.
func WithSongID(ctx context.Context, songID uuid.UUID) context.Context {
	return context.WithValue(ctx, SongIDContextKey, songID)
}

// GetSongID returns the song recorded by WithSongID.
func GetSongID(ctx context.Context) (uuid.UUID, bool) {
	songID, ok := ctx.Value(SongIDContextKey).(uuid.UUID)
	return songID, ok && songID != uuid.Nil
}

// generateTraceID returns 32 hex characters. A failing random source falls
// back to a random UUID, which has its own entropy source handling.
func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	if _, err := rand.Read(b); err != nil {
		id := uuid.New()
		return hex.EncodeToString(id[:])
	}
	return hex.EncodeToString(b)
}
