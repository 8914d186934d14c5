package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_chat_queue_depth",
			Help: "Number of chat notifications waiting to be sent",
		},
	)

	// result: delivered|failed|dropped
	queueItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_chat_queue_items_total",
			Help: "Chat notifications taken off the queue, by outcome",
		},
		[]string{"result", "reason"},
	)

	chatSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_chat_send_duration_seconds",
			Help:    "Bot API send duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15},
		},
	)
)

const (
	resultDelivered = "delivered"
	resultFailed    = "failed"
	resultDropped   = "dropped"

	reasonNone               = ""
	reasonAliasNotConfigured = "alias_not_configured"
	reasonShutdown           = "shutdown"
)

func recordOutcome(result, reason string) {
	queueItemsTotal.WithLabelValues(result, reason).Inc()
}
