package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for email delivery. The chat queue has its own set in
// the dispatch package.
var (
	// notificationDispatchedTotal counts delivery attempts per channel
	notificationDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_notification_dispatched_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"channel"},
	)

	// notificationSentTotal counts delivery results per channel
	notificationSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_notification_sent_total",
			Help: "Total number of notifications by delivery result",
		},
		[]string{"channel", "status"}, // status: success|failure
	)

	// notificationDuration tracks backend call latency
	notificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_notification_duration_seconds",
			Help:    "Backend delivery duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"channel"},
	)

	// notificationDroppedTotal counts requests discarded without an attempt
	notificationDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_notification_dropped_total",
			Help: "Total number of notifications dropped before delivery",
		},
		[]string{"channel", "reason"}, // reason: circuit_open
	)

	// circuitBreakerOpenTotal counts transitions into the open state
	circuitBreakerOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_circuit_breaker_open_total",
			Help: "Total number of circuit breaker open events",
		},
		[]string{"channel"},
	)
)

// RecordDispatch records a delivery attempt.
func RecordDispatch(channel string) {
	notificationDispatchedTotal.WithLabelValues(channel).Inc()
}

// RecordSuccess records a successful delivery and its duration.
func RecordSuccess(channel string, duration time.Duration) {
	notificationSentTotal.WithLabelValues(channel, "success").Inc()
	notificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordFailure records a failed delivery and the time spent before it failed.
func RecordFailure(channel string, duration time.Duration) {
	notificationSentTotal.WithLabelValues(channel, "failure").Inc()
	notificationDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordDropped records a request discarded without a backend call.
func RecordDropped(channel string, reason string) {
	notificationDroppedTotal.WithLabelValues(channel, reason).Inc()
}

// RecordCircuitBreakerOpen records a breaker opening for channel.
func RecordCircuitBreakerOpen(channel string) {
	circuitBreakerOpenTotal.WithLabelValues(channel).Inc()
}
