package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"notify-relay/internal/observability/requestid"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_JSONFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Writer: &buf})

	logger.Info("queued")
	logger.Warn("alias dropped", slog.String("alias", "ALERTAS"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "exactly one JSON line expected")
	assert.Equal(t, "alias dropped", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "ALERTAS", entry["alias"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(Options{Format: "text", Writer: &buf}).Info("bridge listening")

	assert.Contains(t, buf.String(), "msg=\"bridge listening\"")
}

func TestNewLogger_FromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	logger := NewLogger()
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestWithRequestID(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(sdktrace.NewTracerProvider()) })

	ctx := requestid.WithRequestID(context.Background(), "req-123")
	ctx, span := otel.Tracer("test").Start(ctx, "op")
	defer span.End()

	var buf bytes.Buffer
	WithRequestID(ctx, New(Options{Writer: &buf})).Info("email accepted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
}

func TestWithRequestID_Empty(t *testing.T) {
	var buf bytes.Buffer
	WithRequestID(context.Background(), New(Options{Writer: &buf})).Info("x")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "request_id")
	assert.NotContains(t, entry, "trace_id")
}
