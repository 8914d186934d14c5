package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-relay/pkg/ratelimit"
)

type stubQueue int

func (q stubQueue) Len() int { return int(q) }

type stubBreaker struct {
	name  string
	state gobreaker.State
}

func (b stubBreaker) Name() string           { return b.name }
func (b stubBreaker) State() gobreaker.State { return b.state }

func serveHealth(t *testing.T, h *HealthHandler) HealthResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthHandler_ReportsRelayState(t *testing.T) {
	resp := serveHealth(t, &HealthHandler{
		Version:       "1.4.0",
		Provider:      "sendgrid",
		DeliveryMode:  "queue",
		Queue:         stubQueue(3),
		BridgeEnabled: true,
		EmailBreaker:  stubBreaker{"sendgrid", gobreaker.StateClosed},
		ChatBreaker:   stubBreaker{"telegram", gobreaker.StateClosed},
	})

	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.4.0", resp.Version)
	assert.Equal(t, "sendgrid", resp.Provider)
	assert.Equal(t, 3, resp.QueueDepth)
	assert.True(t, resp.BridgeEnabled)

	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err)

	require.Contains(t, resp.Checks, "telegram")
	assert.EqualValues(t, 3, resp.Checks["telegram"].Details["queue_depth"])
	assert.Equal(t, "closed", resp.Checks["email"].Details["circuit_breaker"])
	assert.NotContains(t, resp.Checks, "rate_limiter")
}

func TestHealthHandler_OpenBreakerDegrades(t *testing.T) {
	resp := serveHealth(t, &HealthHandler{
		Provider:     "smtp",
		EmailBreaker: stubBreaker{"smtp-relay", gobreaker.StateOpen},
	})

	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "degraded", resp.Checks["email"].Status)
	assert.Contains(t, resp.Checks["email"].Message, "smtp-relay")
	assert.Equal(t, "healthy", resp.Checks["telegram"].Status)
	assert.Equal(t, "not_configured", resp.Checks["telegram"].Details["circuit_breaker"])
}

func TestHealthHandler_LimiterKeys(t *testing.T) {
	store := ratelimit.NewInMemoryWindowStore(ratelimit.DefaultInMemoryStoreConfig())
	now := time.Now()
	_, err := store.Increment(context.Background(), "10.0.0.1", now, time.Hour)
	require.NoError(t, err)
	_, err = store.Increment(context.Background(), "10.0.0.2", now, time.Hour)
	require.NoError(t, err)

	resp := serveHealth(t, &HealthHandler{
		LimiterStores: map[string]ratelimit.WindowStore{"telegram": store},
	})

	require.Contains(t, resp.Checks, "rate_limiter")
	limiter, ok := resp.Checks["rate_limiter"].Details["telegram"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, limiter["active_keys"])
	assert.Equal(t, "healthy", resp.Status)
}

func TestReadyHandler(t *testing.T) {
	ready := true
	h := &ReadyHandler{Ready: func() bool { return ready }}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	ready = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"stat":false,"status":"shutting down"}`, rec.Body.String())
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	(&LiveHandler{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stat":true,"status":"alive"}`, rec.Body.String())
}
