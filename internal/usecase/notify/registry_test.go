package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"notify-relay/internal/domain/notification"
	"notify-relay/internal/resilience/circuitbreaker"
)

type fakeBackend struct {
	name string
	err  error

	mu    sync.Mutex
	calls []notification.Request
}

func (f *fakeBackend) Send(_ context.Context, req notification.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.err
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func factoriesFor(sg, relay *fakeBackend) map[Provider]BackendFactory {
	return map[Provider]BackendFactory{
		ProviderSendGrid: func() (EmailBackend, error) { return sg, nil },
		ProviderSMTP:     func() (EmailBackend, error) { return relay, nil },
	}
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"sendgrid", ProviderSendGrid, false},
		{"SendGrid", ProviderSendGrid, false},
		{"smtp", ProviderSMTP, false},
		{"nodemailer", ProviderSMTP, false},
		{" relay ", ProviderSMTP, false},
		{"mailgun", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProvider(tt.in)
			if tt.wantErr {
				var cfgErr *notification.ConfigError
				require.ErrorAs(t, err, &cfgErr)
				assert.Equal(t, notification.UnsupportedProvider, cfgErr.Code)
				assert.Equal(t, tt.in, cfgErr.Provider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRegistry_SelectsBackend(t *testing.T) {
	sg := &fakeBackend{name: "sendgrid"}
	relay := &fakeBackend{name: "smtp"}

	reg, err := NewRegistry("nodemailer", factoriesFor(sg, relay))
	require.NoError(t, err)
	assert.Equal(t, ProviderSMTP, reg.Provider())

	req := notification.NewEmail("ops@example.com", "", "s", "t", "h")
	require.NoError(t, reg.Send(context.Background(), req))

	assert.Equal(t, 1, relay.callCount())
	assert.Equal(t, 0, sg.callCount())
}

func TestNewRegistry_UnsupportedProviderBuildsNothing(t *testing.T) {
	built := 0
	factories := map[Provider]BackendFactory{
		ProviderSendGrid: func() (EmailBackend, error) { built++; return &fakeBackend{}, nil },
		ProviderSMTP:     func() (EmailBackend, error) { built++; return &fakeBackend{}, nil },
	}

	reg, err := NewRegistry("carrier-pigeon", factories)

	assert.Nil(t, reg)
	assert.ErrorIs(t, err, notification.ErrConfig)
	assert.Contains(t, err.Error(), "carrier-pigeon")
	assert.Equal(t, 0, built)
}

func TestNewRegistry_MissingFactory(t *testing.T) {
	_, err := NewRegistry("smtp", map[Provider]BackendFactory{})
	assert.ErrorIs(t, err, notification.ErrConfig)
}

func TestNewRegistry_FactoryError(t *testing.T) {
	factories := map[Provider]BackendFactory{
		ProviderSendGrid: func() (EmailBackend, error) { return nil, errors.New("SENDGRID_API_KEY is empty") },
	}
	_, err := NewRegistry("sendgrid", factories)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SENDGRID_API_KEY")
}

func TestRegistry_Send_ExactlyOneCallWithVerbatimFields(t *testing.T) {
	sg := &fakeBackend{name: "sendgrid"}
	reg, err := NewRegistry("sendgrid", factoriesFor(sg, &fakeBackend{}))
	require.NoError(t, err)

	req := notification.NewEmail("a@b.c", "", "S", "T", "<p>H</p>")
	require.NoError(t, reg.Send(context.Background(), req))

	require.Equal(t, 1, sg.callCount())
	got := sg.calls[0]
	assert.Equal(t, "a@b.c", got.Recipient)
	assert.Equal(t, "", got.Sender)
	assert.Equal(t, "S", got.Subject)
	assert.Equal(t, "T", got.Text)
	assert.Equal(t, "<p>H</p>", got.HTML)
}

func TestRegistry_Send_NoRetryOnFailure(t *testing.T) {
	backendErr := errors.New("421 service not available")
	relay := &fakeBackend{name: "smtp", err: backendErr}
	reg, err := NewRegistry("smtp", factoriesFor(&fakeBackend{}, relay))
	require.NoError(t, err)

	err = reg.Send(context.Background(), notification.NewEmail("a@b.c", "", "S", "T", "H"))

	var delivery *notification.DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, "smtp", delivery.Channel)
	assert.ErrorIs(t, err, backendErr)
	assert.Equal(t, 1, relay.callCount())
}

func TestRegistry_Send_ValidationFailureMakesNoCall(t *testing.T) {
	sg := &fakeBackend{name: "sendgrid"}
	reg, err := NewRegistry("sendgrid", factoriesFor(sg, &fakeBackend{}))
	require.NoError(t, err)

	tests := []struct {
		name  string
		req   notification.Request
		field string
	}{
		{"missing to", notification.NewEmail("", "", "S", "T", "H"), "to"},
		{"missing subject", notification.NewEmail("a@b.c", "", "", "T", "H"), "subject"},
		{"missing html", notification.NewEmail("a@b.c", "", "S", "T", ""), "html"},
		{"chat request", notification.NewChat("ops", "m", "", false, false), "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Send(context.Background(), tt.req)
			var vErr *notification.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
	assert.Equal(t, 0, sg.callCount())
}

func TestRegistry_Send_OpenCircuitSkipsBackend(t *testing.T) {
	relay := &fakeBackend{name: "smtp", err: errors.New("connection refused")}
	reg, err := NewRegistry("smtp", factoriesFor(&fakeBackend{}, relay), WithBreaker(circuitbreaker.Config{
		Name:             "smtp-test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}))
	require.NoError(t, err)

	openedBefore := testutil.ToFloat64(circuitBreakerOpenTotal.WithLabelValues("email"))
	droppedBefore := testutil.ToFloat64(notificationDroppedTotal.WithLabelValues("email", "circuit_open"))

	req := notification.NewEmail("a@b.c", "", "S", "T", "H")
	_ = reg.Send(context.Background(), req)
	_ = reg.Send(context.Background(), req)
	err = reg.Send(context.Background(), req)

	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.ErrorIs(t, err, notification.ErrDelivery)
	assert.Equal(t, 2, relay.callCount())
	assert.Equal(t, openedBefore+1, testutil.ToFloat64(circuitBreakerOpenTotal.WithLabelValues("email")))
	assert.Equal(t, droppedBefore+1, testutil.ToFloat64(notificationDroppedTotal.WithLabelValues("email", "circuit_open")))
}

func TestRegistry_Send_RejectedRequestsKeepCircuitClosed(t *testing.T) {
	relay := &fakeBackend{name: "smtp", err: notification.Rejected(errors.New("550 5.1.1 mailbox unavailable"))}
	reg, err := NewRegistry("smtp", factoriesFor(&fakeBackend{}, relay), WithBreaker(circuitbreaker.Config{
		Name:             "smtp-test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 0.5,
		MinRequests:      2,
	}))
	require.NoError(t, err)

	bad := notification.NewEmail("nobody@example.com", "", "S", "T", "H")
	for i := 0; i < 5; i++ {
		err := reg.Send(context.Background(), bad)
		assert.ErrorIs(t, err, notification.ErrRejected)
		assert.NotErrorIs(t, err, circuitbreaker.ErrOpen)
	}
	assert.False(t, reg.Breaker().IsOpen())

	// 正常な宛先は引き続き届く
	relay.mu.Lock()
	relay.err = nil
	relay.mu.Unlock()
	require.NoError(t, reg.Send(context.Background(), notification.NewEmail("ops@example.com", "", "S", "T", "H")))
	assert.Equal(t, 6, relay.callCount())
}

func TestRegistry_Send_RecordsMetricsAndSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)))
	t.Cleanup(func() { otel.SetTracerProvider(sdktrace.NewTracerProvider()) })

	reg, err := NewRegistry("sendgrid", factoriesFor(&fakeBackend{name: "sendgrid"}, &fakeBackend{}))
	require.NoError(t, err)

	dispatched := testutil.ToFloat64(notificationDispatchedTotal.WithLabelValues("email"))
	succeeded := testutil.ToFloat64(notificationSentTotal.WithLabelValues("email", "success"))

	require.NoError(t, reg.Send(context.Background(), notification.NewEmail("a@b.c", "", "S", "T", "H")))

	assert.Equal(t, dispatched+1, testutil.ToFloat64(notificationDispatchedTotal.WithLabelValues("email")))
	assert.Equal(t, succeeded+1, testutil.ToFloat64(notificationSentTotal.WithLabelValues("email", "success")))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "email.send", spans[0].Name)
}
