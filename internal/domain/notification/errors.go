package notification

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the relay's error taxonomy.
var (
	// ErrUnauthorized indicates a missing or wrong bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrConfig is matched by every *ConfigError.
	ErrConfig = errors.New("configuration error")

	// ErrDelivery is matched by every *DeliveryError.
	ErrDelivery = errors.New("delivery failed")

	// ErrRejected is matched by every *RejectedError.
	ErrRejected = errors.New("rejected by provider")

	// ErrProtocol indicates an inbound mail transaction that could not be
	// authenticated or decoded.
	ErrProtocol = errors.New("protocol error")
)

// ValidationError represents a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the user-facing message, e.g. "subject is required".
func (e *ValidationError) Error() string {
	return e.Message
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConfigCode classifies a ConfigError.
type ConfigCode string

const (
	// UnsupportedProvider is returned at startup for an unknown email backend name.
	UnsupportedProvider ConfigCode = "unsupported_provider"
	// AliasNotConfigured is returned when either alias key is absent.
	AliasNotConfigured ConfigCode = "alias_not_configured"
)

// ConfigError reports a configuration problem. Startup instances are fatal;
// per-request instances surface as a delivery failure to the caller.
type ConfigError struct {
	Code ConfigCode

	// Alias is set for AliasNotConfigured.
	Alias string

	// ExpectedKeys lists the configuration keys an operator must define.
	ExpectedKeys []string

	// Provider is set for UnsupportedProvider.
	Provider string
}

func (e *ConfigError) Error() string {
	switch e.Code {
	case AliasNotConfigured:
		return fmt.Sprintf("alias %q not configured: expected %s", e.Alias, strings.Join(e.ExpectedKeys, " and "))
	case UnsupportedProvider:
		return fmt.Sprintf("unsupported email provider %q: use \"sendgrid\" or \"smtp\"", e.Provider)
	default:
		return "configuration error: " + string(e.Code)
	}
}

// Is reports whether target is ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// DeliveryError wraps a failed backend call.
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

// Unwrap returns the backend error.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDelivery.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

// RejectedError marks a failure caused by the request itself: an address
// that does not parse, a chat the bot cannot reach, a 4xx from the
// provider. Sending it again cannot succeed and it says nothing about the
// provider's health.
type RejectedError struct {
	Err error
}

func (e *RejectedError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *RejectedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRejected.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Rejected wraps err as a *RejectedError. A nil err stays nil.
func Rejected(err error) error {
	if err == nil {
		return nil
	}
	return &RejectedError{Err: err}
}
