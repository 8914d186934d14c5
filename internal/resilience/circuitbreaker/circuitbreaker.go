// Package circuitbreaker wraps github.com/sony/gobreaker for the relay's
// outbound backends.
package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"notify-relay/internal/domain/notification"
)

// ErrOpen is returned by Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and metrics
	Name string

	// MaxRequests is the maximum number of requests allowed in half-open state
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear counts
	Interval time.Duration

	// Timeout is how long to stay open before probing again
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the circuit (0.6 = 60%)
	FailureThreshold float64

	// MinRequests is the minimum number of requests before the ratio is evaluated
	MinRequests uint32

	// IsSuccessful decides whether a returned error counts against the
	// breaker. Defaults to IgnoreRejected.
	IsSuccessful func(err error) bool

	// OnStateChange is called after every transition. Optional.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns a default configuration for circuit breakers.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// SendGridConfig returns configuration for the transactional email API.
func SendGridConfig() Config {
	return DefaultConfig("sendgrid")
}

// SMTPRelayConfig returns configuration for the outbound SMTP relay.
// Relays tend to fail as a whole (DNS, TLS, auth), so it trips sooner.
func SMTPRelayConfig() Config {
	cfg := DefaultConfig("smtp-relay")
	cfg.FailureThreshold = 0.5
	cfg.MinRequests = 3
	return cfg
}

// TelegramConfig returns configuration for the Telegram Bot API.
// Drain pacing keeps request volume low, so the window is longer.
func TelegramConfig() Config {
	return Config{
		Name:             "telegram",
		MaxRequests:      1,
		Interval:         5 * time.Minute,
		Timeout:          2 * time.Minute,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// RateLimitStoreConfig returns configuration for a rate limit store check.
// The HTTP adapter fails open while it is tripped.
func RateLimitStoreConfig(limiter string) Config {
	cfg := DefaultConfig("ratelimit-" + limiter)
	cfg.Timeout = 30 * time.Second
	cfg.MinRequests = 10
	return cfg
}

// IgnoreRejected counts nil and *notification.RejectedError as success.
// A bad address or an unknown chat is the caller's problem and must not
// open the circuit for everyone else.
func IgnoreRejected(err error) bool {
	return err == nil || errors.Is(err, notification.ErrRejected)
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with a context-aware API.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	isSuccessful := cfg.IsSuccessful
	if isSuccessful == nil {
		isSuccessful = IgnoreRejected
	}

	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: isSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Do runs fn through the breaker. When the breaker is open (or half-open
// and saturated) fn is not called and the returned error wraps ErrOpen.
// A canceled context is not counted as a backend failure.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var callErr error
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		callErr = fn(ctx)
		if callErr != nil && ctx.Err() != nil && errors.Is(callErr, ctx.Err()) {
			return nil, nil
		}
		return nil, callErr
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrOpen, err)
	}
	if err != nil {
		return err
	}
	return callErr
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}
