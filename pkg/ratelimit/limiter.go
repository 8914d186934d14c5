package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// FixedWindowLimiter enforces at most Limit acquisitions per identity per Window.
type FixedWindowLimiter struct {
	name    string
	limit   int
	window  time.Duration
	store   WindowStore
	clock   Clock
	metrics RateLimitMetrics
}

// NewFixedWindowLimiter creates a limiter from a validated LimiterConfig.
//
// Parameters:
//   - config: Name, ceiling and window duration
//   - store: Window state storage (shared stores must use distinct key spaces)
//   - clock: Time source; nil uses SystemClock
//   - metrics: Metrics sink; nil uses NoOpMetrics
//
// Returns:
//   - *FixedWindowLimiter: Ready-to-use limiter
func NewFixedWindowLimiter(config LimiterConfig, store WindowStore, clock Clock, metrics RateLimitMetrics) *FixedWindowLimiter {
	config.ApplyDefaults()
	if clock == nil {
		clock = &SystemClock{}
	}
	if metrics == nil {
		metrics = NewNoOpMetrics()
	}
	return &FixedWindowLimiter{
		name:    config.Name,
		limit:   config.Limit,
		window:  config.Window,
		store:   store,
		clock:   clock,
		metrics: metrics,
	}
}

// Check records one acquisition for identity and returns the decision.
func (l *FixedWindowLimiter) Check(ctx context.Context, identity string) (*RateLimitDecision, error) {
	start := time.Now()
	now := l.clock.Now()

	w, err := l.store.Increment(ctx, identity, now, l.window)
	l.metrics.RecordCheckDuration(l.name, time.Since(start))
	if err != nil {
		return nil, err
	}

	return newDecision(identity, l.name, l.limit, l.window, w, now), nil
}

// TryAcquire records one acquisition and reports whether it is allowed.
// A store failure is logged and treated as allowed (fail-open).
func (l *FixedWindowLimiter) TryAcquire(identity string) bool {
	decision, err := l.Check(context.Background(), identity)
	if err != nil {
		slog.Error("rate limit check failed, allowing",
			slog.String("limiter_type", l.name),
			slog.String("key", identity),
			slog.Any("error", err))
		return true
	}
	if decision.Allowed {
		l.metrics.RecordAllowed(l.name, "")
	} else {
		l.metrics.RecordDenied(l.name, "")
	}
	return decision.Allowed
}

// Name returns the limiter name used in metrics and logs.
func (l *FixedWindowLimiter) Name() string { return l.name }

// Limit returns the ceiling per window.
func (l *FixedWindowLimiter) Limit() int { return l.limit }

// Window returns the window duration.
func (l *FixedWindowLimiter) Window() time.Duration { return l.window }

// Metrics returns the metrics sink shared with HTTP adapters.
func (l *FixedWindowLimiter) Metrics() RateLimitMetrics { return l.metrics }
