// Package http holds the relay's HTTP plumbing: middleware, metrics and
// the health endpoints. The /email and /telegram handlers live in
// subpackages and are mounted by cmd/api.
package http

import (
	"context"
	"net/http"
	"time"

	"notify-relay/internal/handler/http/respond"
	"notify-relay/pkg/ratelimit"

	"github.com/sony/gobreaker"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string                 `json:"status"` // "healthy" or "degraded"
	Timestamp     string                 `json:"timestamp"`
	Version       string                 `json:"version"`
	Provider      string                 `json:"provider"`
	QueueDepth    int                    `json:"queue_depth"`
	BridgeEnabled bool                   `json:"smtp_bridge"`
	Checks        map[string]CheckStatus `json:"checks"`
}

// CheckStatus is the state of one dependency.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// QueueDepth reports how many chat messages wait for delivery.
type QueueDepth interface {
	Len() int
}

// BreakerState is implemented by circuitbreaker.CircuitBreaker.
type BreakerState interface {
	Name() string
	State() gobreaker.State
}

// HealthHandler serves GET /health. It never fails the health check: an open
// circuit only marks the response "degraded", since the process itself can
// still accept and queue work.
type HealthHandler struct {
	Version       string
	Provider      string
	DeliveryMode  string
	Queue         QueueDepth
	BridgeEnabled bool

	// EmailBreaker and ChatBreaker are optional.
	EmailBreaker BreakerState
	ChatBreaker  BreakerState

	// LimiterStores maps limiter name to its store (optional).
	LimiterStores map[string]ratelimit.WindowStore
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	depth := 0
	if h.Queue != nil {
		depth = h.Queue.Len()
	}

	checks := map[string]CheckStatus{
		"email":       breakerCheck(h.EmailBreaker, map[string]any{"provider": h.Provider}),
		"telegram":    breakerCheck(h.ChatBreaker, map[string]any{"queue_depth": depth, "delivery_mode": h.DeliveryMode}),
		"smtp_bridge": {Status: "healthy", Details: map[string]any{"enabled": h.BridgeEnabled}},
	}
	if len(h.LimiterStores) > 0 {
		checks["rate_limiter"] = h.checkLimiters(ctx)
	}

	status := "healthy"
	for _, c := range checks {
		if c.Status != "healthy" {
			status = "degraded"
			break
		}
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, http.StatusOK, HealthResponse{
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       h.Version,
		Provider:      h.Provider,
		QueueDepth:    depth,
		BridgeEnabled: h.BridgeEnabled,
		Checks:        checks,
	})
}

func breakerCheck(b BreakerState, details map[string]any) CheckStatus {
	if b == nil {
		details["circuit_breaker"] = "not_configured"
		return CheckStatus{Status: "healthy", Details: details}
	}
	state := b.State()
	details["circuit_breaker"] = state.String()
	if state == gobreaker.StateOpen {
		return CheckStatus{
			Status:  "degraded",
			Message: "circuit breaker " + b.Name() + " is open",
			Details: details,
		}
	}
	return CheckStatus{Status: "healthy", Details: details}
}

// checkLimiters reports active identities per limiter. Limiter state is
// informational and never degrades the response.
func (h *HealthHandler) checkLimiters(ctx context.Context) CheckStatus {
	details := make(map[string]any, len(h.LimiterStores))
	for name, store := range h.LimiterStores {
		if store == nil {
			continue
		}
		if n, err := store.KeyCount(ctx); err == nil {
			details[name] = map[string]int{"active_keys": n}
		}
	}
	return CheckStatus{Status: "healthy", Details: details}
}

// ReadyHandler serves GET /ready. Ready reports whether the process
// accepts traffic; cmd/api flips it off when shutdown begins.
type ReadyHandler struct {
	Ready func() bool
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if h.Ready != nil && !h.Ready() {
		respond.JSON(w, http.StatusServiceUnavailable, map[string]any{"stat": false, "status": "shutting down"})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"stat": true, "status": "ready"})
}

// LiveHandler serves GET /live and always answers 200.
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]any{"stat": true, "status": "alive"})
}
