package email

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"notify-relay/internal/domain/notification"
)

// Throttled wraps a Backend with a token bucket so bursts of submissions
// do not exceed the provider's sending rate.
type Throttled struct {
	next    Backend
	limiter *rate.Limiter
}

// NewThrottled creates a throttled backend.
//
// The bucket allows up to burst sends immediately, then refills at
// perSecond tokens per second. perSecond <= 0 disables throttling.
//
// Example:
//
//	backend := NewThrottled(NewSendGridBackend(cfg), 10, 5)
func NewThrottled(next Backend, perSecond float64, burst int) *Throttled {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Name returns the wrapped backend's name.
func (t *Throttled) Name() string {
	return t.next.Name()
}

// Send waits for a token, then makes the single delivery attempt.
func (t *Throttled) Send(ctx context.Context, req notification.Request) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email throttle: %w", err)
	}
	return t.next.Send(ctx, req)
}
