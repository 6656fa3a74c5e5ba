// Package logger provides structured logging functionality for the application.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/gitsong/internal/config"
)

type contextKey struct{}

// ParseLevel converts a configured level name to a slog.Level.
// The second return value is false when the name is not recognised.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup initializes the application's logging system based on the provided
// configuration. It creates a structured JSON logger on stdout with the
// configured level and sets it as the process default.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	return SetupWithWriter(cfg, os.Stdout)
}

// SetupWithWriter is Setup with an explicit destination.
func SetupWithWriter(cfg config.ServerConfig, w io.Writer) (*slog.Logger, error) {
	level, ok := ParseLevel(cfg.LogLevel)
	if !ok {
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.LogLevel,
			"default_level", "info")
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger, nil
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOrDefault(ctx, slog.Default())
}

// FromContextOrDefault returns the logger stored in ctx, or fallback when the
// context carries none. A nil fallback resolves to slog.Default().
func FromContextOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	if fallback == nil {
		return slog.Default()
	}
	return fallback
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
