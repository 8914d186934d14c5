package ratelimit

import "time"

// NoOpMetrics discards all limiter metrics. Used in tests and when no
// registry is wired.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (m *NoOpMetrics) RecordAllowed(limiterType, endpoint string)                    {}
func (m *NoOpMetrics) RecordDenied(limiterType, endpoint string)                     {}
func (m *NoOpMetrics) RecordCheckDuration(limiterType string, duration time.Duration) {}
func (m *NoOpMetrics) SetActiveKeys(limiterType string, count int)                   {}
func (m *NoOpMetrics) RecordEviction(limiterType string, count int)                  {}
func (m *NoOpMetrics) RecordCleanup(limiterType string, removed int)                 {}
