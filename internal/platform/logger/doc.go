// Package logger configures the process-wide slog JSON logger and carries
// request-scoped loggers through context.Context.
//
// Handlers attach a logger enriched with trace_id via WithLogger; downstream
// code retrieves it with FromContext so every record for one song generation
// shares the same correlation fields.
package logger
