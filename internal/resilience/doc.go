// Package resilience provides fault tolerance around the relay's outbound
// backends (SendGrid, SMTP relay, Telegram Bot API).
//
// The relay makes exactly one delivery attempt per request, so there is no
// retry helper here. A circuit breaker stops a failing backend from being
// hammered: while it is open, calls fail fast without an attempt.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.SendGridConfig())
//	err := cb.Do(ctx, func(ctx context.Context) error {
//	    return backend.Send(ctx, req)
//	})
package resilience
