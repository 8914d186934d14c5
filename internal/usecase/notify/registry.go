// Package notify selects the email backend at startup and performs
// single-attempt email delivery through it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"notify-relay/internal/domain/notification"
	"notify-relay/internal/observability/requestid"
	"notify-relay/internal/observability/tracing"
	"notify-relay/internal/resilience/circuitbreaker"
)

// EmailBackend is the capability every email provider implements.
type EmailBackend interface {
	Send(ctx context.Context, req notification.Request) error
	Name() string
}

// BackendFactory builds the backend for one provider.
type BackendFactory func() (EmailBackend, error)

// Option configures a Registry.
type Option func(*registryOptions)

type registryOptions struct {
	breaker *circuitbreaker.Config
}

// WithBreaker overrides the circuit breaker configuration.
func WithBreaker(cfg circuitbreaker.Config) Option {
	return func(o *registryOptions) { o.breaker = &cfg }
}

// Registry holds the one email backend chosen at startup.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	provider Provider
	backend  EmailBackend
	breaker  *circuitbreaker.CircuitBreaker
}

// NewRegistry parses name, builds the matching backend from factories and
// wraps it in a circuit breaker. An unknown name, or a provider without a
// factory, returns a *notification.ConfigError and nothing is built.
func NewRegistry(name string, factories map[Provider]BackendFactory, opts ...Option) (*Registry, error) {
	provider, err := ParseProvider(name)
	if err != nil {
		return nil, err
	}
	factory, ok := factories[provider]
	if !ok || factory == nil {
		return nil, &notification.ConfigError{
			Code:         notification.UnsupportedProvider,
			Provider:     name,
			ExpectedKeys: []string{"EMAIL_PROVIDER"},
		}
	}

	backend, err := factory()
	if err != nil {
		return nil, fmt.Errorf("build %s backend: %w", provider, err)
	}

	o := &registryOptions{}
	for _, opt := range opts {
		opt(o)
	}
	cfg := defaultBreakerConfig(provider)
	if o.breaker != nil {
		cfg = *o.breaker
	}
	userHook := cfg.OnStateChange
	cfg.OnStateChange = func(n string, from, to gobreaker.State) {
		if to == gobreaker.StateOpen {
			RecordCircuitBreakerOpen(string(notification.KindEmail))
		}
		if userHook != nil {
			userHook(n, from, to)
		}
	}

	return &Registry{
		provider: provider,
		backend:  backend,
		breaker:  circuitbreaker.New(cfg),
	}, nil
}

func defaultBreakerConfig(p Provider) circuitbreaker.Config {
	if p == ProviderSMTP {
		return circuitbreaker.SMTPRelayConfig()
	}
	return circuitbreaker.SendGridConfig()
}

// Provider returns the selected provider.
func (r *Registry) Provider() Provider {
	return r.provider
}

// Breaker exposes the circuit breaker for health reporting.
func (r *Registry) Breaker() *circuitbreaker.CircuitBreaker {
	return r.breaker
}

// Send validates req as an email and makes exactly one backend call.
// There is no retry. Failures are returned as *notification.DeliveryError;
// an open circuit fails without calling the backend.
func (r *Registry) Send(ctx context.Context, req notification.Request) error {
	if req.Kind != notification.KindEmail {
		return &notification.ValidationError{Field: "kind", Message: "not an email request"}
	}
	if err := req.Validate(); err != nil {
		return err
	}

	channel := string(notification.KindEmail)
	logger := slog.Default().With(
		slog.String("request_id", requestid.FromContext(ctx)),
		slog.String("provider", string(r.provider)))

	ctx, span := tracing.StartSpan(ctx, "email.send",
		attribute.String("email.provider", string(r.provider)))

	RecordDispatch(channel)
	start := time.Now()
	err := r.breaker.Do(ctx, func(ctx context.Context) error {
		return r.backend.Send(ctx, req)
	})
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpen) {
			RecordDropped(channel, "circuit_open")
		}
		RecordFailure(channel, duration)
		tracing.EndSpan(span, err)
		logger.Error("email delivery failed",
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return &notification.DeliveryError{Channel: string(r.provider), Err: err}
	}

	RecordSuccess(channel, duration)
	tracing.EndSpan(span, nil)
	logger.Info("email delivered", slog.Duration("duration", duration))
	return nil
}
