package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Cleaner purges expired windows from a store and reports the result.
type Cleaner struct {
	Store       WindowStore
	LimiterType string
	Window      time.Duration
	Clock       Clock
	Metrics     RateLimitMetrics
}

// Run removes every window that expired before now. An expired window
// carries no information, since the next acquisition would reset it anyway.
func (c *Cleaner) Run(ctx context.Context) {
	clock := c.Clock
	if clock == nil {
		clock = &SystemClock{}
	}
	metrics := c.Metrics
	if metrics == nil {
		metrics = NewNoOpMetrics()
	}

	removed, err := c.Store.Cleanup(ctx, clock.Now(), c.Window)
	if err != nil {
		slog.Error("rate limit cleanup failed",
			slog.String("limiter_type", c.LimiterType),
			slog.Any("error", err))
		return
	}

	active, err := c.Store.KeyCount(ctx)
	if err == nil {
		metrics.SetActiveKeys(c.LimiterType, active)
	}
	metrics.RecordCleanup(c.LimiterType, removed)

	slog.Debug("rate limit cleanup completed",
		slog.String("limiter_type", c.LimiterType),
		slog.Int("removed", removed),
		slog.Int("active_keys", active))
}

// Schedule registers Run on the cron scheduler every interval.
//
// Example:
//
//	c := cron.New()
//	_, err := cleaner.Schedule(c, 5*time.Minute)
//	c.Start()
//	defer c.Stop()
func (c *Cleaner) Schedule(scheduler *cron.Cron, interval time.Duration) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("cleanup interval must be positive, got %s", interval)
	}
	return scheduler.AddFunc("@every "+interval.String(), func() {
		c.Run(context.Background())
	})
}
