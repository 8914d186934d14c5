// Package ratelimit provides framework-agnostic fixed-window rate limiting.
//
// A FixedWindowLimiter counts operations per identity (an IP address, an
// alias, any opaque string) inside windows of a fixed duration. The first
// operation of an identity opens a window with count 1; later operations
// increment the count until the window expires, at which point the next
// operation opens a fresh window.
//
// Window state lives in a WindowStore. The in-memory store is bounded by a
// maximum key count and evicts the least recently touched identity when full.
package ratelimit

import (
	"context"
	"time"
)

// RateWindow is the per-identity counter state.
type RateWindow struct {
	// WindowStart is when the current window was opened.
	WindowStart time.Time

	// Count is the number of acquisitions recorded in the current window,
	// including denied ones.
	Count int
}

// ExpiresAt returns the last instant the window still counts.
func (w RateWindow) ExpiresAt(window time.Duration) time.Time {
	return w.WindowStart.Add(window)
}

// Expired reports whether now is past WindowStart+window. The boundary
// instant itself still belongs to the old window.
func (w RateWindow) Expired(now time.Time, window time.Duration) bool {
	return now.After(w.ExpiresAt(window))
}

// WindowStore persists RateWindow state per identity.
//
// Implementations must make Increment an atomic read-modify-write of a
// single record.
type WindowStore interface {
	// Increment opens a new window (count 1) for key if none exists or the
	// existing one has expired at now; otherwise it increments the count.
	// It returns the window after the update.
	Increment(ctx context.Context, key string, now time.Time, window time.Duration) (RateWindow, error)

	// Get returns the window for key without modifying it.
	Get(ctx context.Context, key string) (RateWindow, bool, error)

	// Cleanup removes windows that expired before cutoff and returns how
	// many were removed.
	Cleanup(ctx context.Context, cutoff time.Time, window time.Duration) (int, error)

	// KeyCount returns the number of identities currently tracked.
	KeyCount(ctx context.Context) (int, error)
}

// RateLimitMetrics records limiter activity.
type RateLimitMetrics interface {
	RecordAllowed(limiterType, endpoint string)
	RecordDenied(limiterType, endpoint string)
	RecordCheckDuration(limiterType string, duration time.Duration)
	SetActiveKeys(limiterType string, count int)
	RecordEviction(limiterType string, count int)
	RecordCleanup(limiterType string, removed int)
}

// Clock abstracts time for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
