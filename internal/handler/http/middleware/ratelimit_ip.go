// Package middleware holds the per-route HTTP adapters in front of the
// /email and /telegram handlers.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"notify-relay/internal/handler/http/respond"
	"notify-relay/internal/resilience/circuitbreaker"
	"notify-relay/pkg/ratelimit"
)

// IPRateLimiter applies a FixedWindowLimiter keyed by client IP.
//
// Every request, allowed or denied, consumes one acquisition. Responses carry
// X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset and
// X-RateLimit-Type. A denied request gets 429 with Retry-After.
//
// The limiter fails open: when the IP cannot be determined, the store errors
// or the breaker around the store is open, the request passes.
type IPRateLimiter struct {
	limiter   *ratelimit.FixedWindowLimiter
	extractor IPExtractor
	breaker   *circuitbreaker.CircuitBreaker
	enabled   bool
}

// NewIPRateLimiter creates the adapter. A nil extractor uses RemoteAddr;
// a nil breaker disables fault isolation.
func NewIPRateLimiter(
	limiter *ratelimit.FixedWindowLimiter,
	extractor IPExtractor,
	breaker *circuitbreaker.CircuitBreaker,
	enabled bool,
) *IPRateLimiter {
	if extractor == nil {
		extractor = &RemoteAddrExtractor{}
	}
	return &IPRateLimiter{
		limiter:   limiter,
		extractor: extractor,
		breaker:   breaker,
		enabled:   enabled,
	}
}

// Middleware wraps next with the limit.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled || rl.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip, err := rl.extractor.ExtractIP(r)
		if err != nil {
			slog.Error("rate limiter: cannot determine client IP, allowing request",
				slog.String("limiter_type", rl.limiter.Name()),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}

		decision, err := rl.check(r.Context(), ip)
		if err != nil {
			slog.Error("rate limiter: check failed, allowing request",
				slog.String("limiter_type", rl.limiter.Name()),
				slog.String("key", ip),
				slog.Bool("circuit_open", errors.Is(err, circuitbreaker.ErrOpen)),
				slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}

		slog.Debug("rate limit check completed",
			slog.String("limiter_type", decision.LimiterType),
			slog.String("key", ip),
			slog.Int("limit", decision.Limit),
			slog.Int("remaining", decision.Remaining),
			slog.Bool("allowed", decision.Allowed))

		setRateLimitHeaders(w, decision)

		if decision.IsDenied() {
			rl.limiter.Metrics().RecordDenied(decision.LimiterType, r.URL.Path)
			slog.Warn("rate limit exceeded",
				slog.String("limiter_type", decision.LimiterType),
				slog.String("key", ip),
				slog.Int("limit", decision.Limit),
				slog.Int64("retry_after", decision.RetryAfterSeconds()),
				slog.String("path", r.URL.Path))
			w.Header().Set("Retry-After", strconv.FormatInt(decision.RetryAfterSeconds(), 10))
			respond.Error(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		rl.limiter.Metrics().RecordAllowed(decision.LimiterType, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (rl *IPRateLimiter) check(ctx context.Context, ip string) (*ratelimit.RateLimitDecision, error) {
	if rl.breaker == nil {
		return rl.limiter.Check(ctx, ip)
	}

	var decision *ratelimit.RateLimitDecision
	err := rl.breaker.Do(ctx, func(ctx context.Context) error {
		var checkErr error
		decision, checkErr = rl.limiter.Check(ctx, ip)
		return checkErr
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}

func setRateLimitHeaders(w http.ResponseWriter, d *ratelimit.RateLimitDecision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAtUnix(), 10))
	h.Set("X-RateLimit-Type", d.LimiterType)
}
