package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// authRequestsTotal counts token checks by channel and result.
	authRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_auth_requests_total",
			Help: "Total API token checks by channel and result",
		},
		[]string{"channel", "result"}, // result: success | failure
	)
)

// RecordAuthRequest records one token check.
func RecordAuthRequest(channel, result string) {
	authRequestsTotal.WithLabelValues(channel, result).Inc()
}
