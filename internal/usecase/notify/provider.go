package notify

import (
	"strings"

	"notify-relay/internal/domain/notification"
)

// Provider names an email backend.
type Provider string

const (
	// ProviderSendGrid is the transactional API backend.
	ProviderSendGrid Provider = "sendgrid"
	// ProviderSMTP is the SMTP relay backend.
	ProviderSMTP Provider = "smtp"
)

// ParseProvider resolves a configured backend name. "nodemailer" and
// "relay" are accepted as names for the SMTP relay. Matching is case
// insensitive. Anything else is an UnsupportedProvider ConfigError.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sendgrid":
		return ProviderSendGrid, nil
	case "smtp", "nodemailer", "relay":
		return ProviderSMTP, nil
	default:
		return "", &notification.ConfigError{
			Code:         notification.UnsupportedProvider,
			Provider:     name,
			ExpectedKeys: []string{"EMAIL_PROVIDER"},
		}
	}
}
