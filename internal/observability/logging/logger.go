package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"notify-relay/internal/observability/requestid"
	"notify-relay/internal/observability/tracing"
)

// Options controls logger construction.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string

	// Format is "json" (default) or "text".
	Format string

	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// New creates a structured logger.
// Source locations are attached when the level is debug.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	if strings.EqualFold(opts.Format, "text") {
		return slog.New(slog.NewTextHandler(w, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

// NewLogger creates a JSON logger configured from LOG_LEVEL and LOG_FORMAT.
func NewLogger() *slog.Logger {
	return New(Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID returns a logger carrying request_id and trace_id from ctx.
// Absent values are omitted.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := requestid.FromContext(ctx); id != "" {
		logger = logger.With(slog.String("request_id", id))
	}
	if traceID := tracing.TraceID(ctx); traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}
	return logger
}
