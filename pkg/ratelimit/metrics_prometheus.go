package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements RateLimitMetrics on a dedicated registry.
//
// The registry is separate from the default one so tests stay isolated;
// cmd/api registers it with the process-wide gatherer.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// requestsTotal labels: limiter_type, status (allowed|denied), path
	requestsTotal *prometheus.CounterVec

	// checkDuration labels: limiter_type
	checkDuration *prometheus.HistogramVec

	// activeKeys labels: limiter_type
	activeKeys *prometheus.GaugeVec

	// evictionsTotal labels: limiter_type
	evictionsTotal *prometheus.CounterVec

	// cleanupRemovedTotal labels: limiter_type
	cleanupRemovedTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with a custom registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_rate_limit_requests_total",
				Help: "Total rate limit checks by limiter type, status and path",
			},
			[]string{"limiter_type", "status", "path"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_rate_limit_check_duration_seconds",
				Help:    "Duration of rate limit check operations",
				Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1},
			},
			[]string{"limiter_type"},
		),
		activeKeys: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_rate_limit_active_keys",
				Help: "Current number of tracked identities by limiter type",
			},
			[]string{"limiter_type"},
		),
		evictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_rate_limit_evictions_total",
				Help: "Total LRU evictions by limiter type",
			},
			[]string{"limiter_type"},
		),
		cleanupRemovedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_rate_limit_cleanup_removed_total",
				Help: "Total expired windows removed by cleanup",
			},
			[]string{"limiter_type"},
		),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.checkDuration,
		m.activeKeys,
		m.evictionsTotal,
		m.cleanupRemovedTotal,
	)
	return m
}

// Registry returns the registry holding all limiter metrics.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAllowed records an allowed acquisition.
func (m *PrometheusMetrics) RecordAllowed(limiterType, endpoint string) {
	m.requestsTotal.WithLabelValues(limiterType, "allowed", endpoint).Inc()
}

// RecordDenied records a denied acquisition.
func (m *PrometheusMetrics) RecordDenied(limiterType, endpoint string) {
	m.requestsTotal.WithLabelValues(limiterType, "denied", endpoint).Inc()
}

// RecordCheckDuration records how long one store round-trip took.
func (m *PrometheusMetrics) RecordCheckDuration(limiterType string, duration time.Duration) {
	m.checkDuration.WithLabelValues(limiterType).Observe(duration.Seconds())
}

// SetActiveKeys records the number of tracked identities.
func (m *PrometheusMetrics) SetActiveKeys(limiterType string, count int) {
	m.activeKeys.WithLabelValues(limiterType).Set(float64(count))
}

// RecordEviction records identities evicted because the store was full.
// A sustained eviction rate means MaxKeys is too small for the caller
// population or the relay is being flooded.
func (m *PrometheusMetrics) RecordEviction(limiterType string, count int) {
	m.evictionsTotal.WithLabelValues(limiterType).Add(float64(count))
}

// RecordCleanup records windows removed by periodic cleanup.
func (m *PrometheusMetrics) RecordCleanup(limiterType string, removed int) {
	m.cleanupRemovedTotal.WithLabelValues(limiterType).Add(float64(removed))
}
