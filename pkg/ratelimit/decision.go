package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitDecision is the outcome of one acquisition attempt.
type RateLimitDecision struct {
	// Key is the identity that was checked.
	Key string

	// Allowed is true when the post-increment count is within the limit.
	Allowed bool

	// Limit is the configured ceiling per window.
	Limit int

	// Remaining is how many further acquisitions the current window allows.
	Remaining int

	// ResetAt is when the current window expires.
	ResetAt time.Time

	// RetryAfter is the time left until ResetAt, never negative.
	RetryAfter time.Duration

	// LimiterType names the limiter (e.g. "telegram", "email").
	LimiterType string
}

// String returns a compact description for debug logs.
func (d *RateLimitDecision) String() string {
	if d.Allowed {
		return fmt.Sprintf("RateLimitDecision{Allowed: true, Key: %s, Type: %s, Remaining: %d/%d, ResetAt: %s}",
			d.Key, d.LimiterType, d.Remaining, d.Limit, d.ResetAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("RateLimitDecision{Allowed: false, Key: %s, Type: %s, Limit: %d, RetryAfter: %s}",
		d.Key, d.LimiterType, d.Limit, d.RetryAfter)
}

// IsDenied reports whether the caller must surface "too many requests".
func (d *RateLimitDecision) IsDenied() bool {
	return !d.Allowed
}

// ResetAtUnix returns ResetAt as a Unix timestamp for X-RateLimit-Reset.
func (d *RateLimitDecision) ResetAtUnix() int64 {
	return d.ResetAt.Unix()
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for Retry-After.
func (d *RateLimitDecision) RetryAfterSeconds() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}
	secs := int64(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// newDecision derives a decision from the updated window.
func newDecision(key, limiterType string, limit int, window time.Duration, w RateWindow, now time.Time) *RateLimitDecision {
	resetAt := w.ExpiresAt(window)
	retryAfter := resetAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}

	remaining := limit - w.Count
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitDecision{
		Key:         key,
		Allowed:     w.Count <= limit,
		Limit:       limit,
		Remaining:   remaining,
		ResetAt:     resetAt,
		RetryAfter:  retryAfter,
		LimiterType: limiterType,
	}
}
