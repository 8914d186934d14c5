// Package email provides the outbound email backends used by the relay.
//
// Two implementations exist: SendGridBackend talks to the SendGrid v3 mail
// API, RelayBackend speaks SMTP to a configured relay. Both make a single
// attempt per call. Retrying (or not) is the caller's decision.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"

	"notify-relay/internal/domain/notification"
)

// Backend delivers one email request.
type Backend interface {
	// Send performs exactly one delivery attempt.
	Send(ctx context.Context, req notification.Request) error

	// Name identifies the backend in logs and metrics.
	Name() string
}

// ErrNoSender is returned when neither the request nor the backend
// configuration provides a From address.
var ErrNoSender = errors.New("no sender address configured")

// APIError is a non-2xx answer from an email provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// rejectedStatus reports whether an HTTP status blames the request rather
// than the provider. Auth and quota answers affect every call, so they do not.
func rejectedStatus(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}

// parseRecipients accepts a single address or a comma separated list.
// Errors are *notification.RejectedError.
func parseRecipients(to string) ([]*mail.Address, error) {
	addrs, err := mail.ParseAddressList(to)
	if err != nil {
		return nil, notification.Rejected(fmt.Errorf("parse recipients %q: %w", to, err))
	}
	return addrs, nil
}

// parseSender parses the From address. An empty value returns ErrNoSender.
// Errors are *notification.RejectedError.
func parseSender(from string) (*mail.Address, error) {
	if from == "" {
		return nil, notification.Rejected(ErrNoSender)
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return nil, notification.Rejected(fmt.Errorf("parse sender %q: %w", from, err))
	}
	return addr, nil
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
