// Package config loads the relay's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"time"

	pkgconfig "notify-relay/pkg/config"
	"notify-relay/pkg/ratelimit"

	"notify-relay/internal/infra/email"
	"notify-relay/internal/infra/smtpbridge"
	"notify-relay/internal/infra/telegram"
	"notify-relay/internal/usecase/alias"
	"notify-relay/internal/usecase/dispatch"
	"notify-relay/internal/usecase/notify"
)

// Config is everything cmd/api needs to wire the relay.
type Config struct {
	Port    int
	Version string

	Email    EmailConfig
	Telegram TelegramConfig
	Bridge   smtpbridge.Config

	RateLimit *ratelimit.RateLimitConfig

	// ShutdownTimeout bounds the graceful stop of the HTTP server and bridge.
	ShutdownTimeout time.Duration
}

// EmailConfig holds the outbound email settings.
type EmailConfig struct {
	// Provider is the raw EMAIL_PROVIDER value. Validate rejects unknown names.
	Provider string

	// APIToken is the bearer accepted by POST /email. Empty rejects every call.
	APIToken string

	SendGrid email.SendGridConfig
	SMTP     email.RelayConfig

	// 送信レート (token bucket)
	MaxPerSecond float64
	Burst        int
}

// TelegramConfig holds the chat settings.
type TelegramConfig struct {
	// APIToken is the bearer accepted by POST /telegram.
	APIToken string

	APIURL    string
	KeyPrefix string

	// AliasFile is an optional YAML alias table read before the environment.
	AliasFile string

	SendInterval time.Duration

	// DeliveryModeRaw is TELEGRAM_DELIVERY_MODE as given.
	DeliveryModeRaw string
}

// DeliveryMode returns the parsed mode, falling back to queue mode.
// Validate reports an unparseable value.
func (c TelegramConfig) DeliveryMode() dispatch.Mode {
	mode, err := dispatch.ParseMode(c.DeliveryModeRaw)
	if err != nil {
		return dispatch.ModeQueue
	}
	return mode
}

// Client returns the Bot API client settings.
func (c TelegramConfig) Client() telegram.Config {
	cfg := telegram.DefaultConfig()
	if c.APIURL != "" {
		cfg.APIURL = c.APIURL
	}
	return cfg
}

// Load reads the environment. Malformed numbers fall back to their
// defaults with a warning; call Validate for the fatal checks.
func Load() *Config {
	cfg := &Config{
		Port:    pkgconfig.GetEnvInt("PORT", 0),
		Version: pkgconfig.GetEnvString("VERSION", "dev"),
		Email: EmailConfig{
			Provider: pkgconfig.GetEnvFirst("", "EMAIL_PROVIDER", "PROVEEDOR_EMAIL"),
			APIToken: pkgconfig.GetEnvString("EMAIL_API_TOKEN", ""),
			SendGrid: email.SendGridConfig{
				APIKey:      pkgconfig.GetEnvString("SENDGRID_API_KEY", ""),
				Host:        pkgconfig.GetEnvString("SENDGRID_HOST", ""),
				DefaultFrom: pkgconfig.GetEnvString("EMAIL_DEFAULT_FROM", ""),
			},
			SMTP: email.RelayConfig{
				Host:     pkgconfig.GetEnvString("SMTP_HOST", ""),
				Port:     pkgconfig.GetEnvInt("SMTP_PORT", 587),
				Secure:   pkgconfig.GetEnvBool("SMTP_SECURE", false),
				User:     pkgconfig.GetEnvString("SMTP_USER", ""),
				Password: pkgconfig.GetEnvString("SMTP_PASS", ""),
				From:     pkgconfig.GetEnvString("SMTP_FROM", ""),
				Timeout:  pkgconfig.GetEnvDuration("SMTP_TIMEOUT", 30*time.Second),
			},
			MaxPerSecond: pkgconfig.GetEnvFloat("EMAIL_MAX_PER_SECOND", 10),
			Burst:        pkgconfig.GetEnvInt("EMAIL_BURST", 5),
		},
		Telegram: TelegramConfig{
			APIToken:        pkgconfig.GetEnvString("TELEGRAM_API_TOKEN", ""),
			APIURL:          pkgconfig.GetEnvString("TELEGRAM_API_URL", telegram.DefaultAPIURL),
			KeyPrefix:       pkgconfig.GetEnvString("TELEGRAM_KEY_PREFIX", alias.DefaultPrefix),
			AliasFile:       pkgconfig.GetEnvString("TELEGRAM_ALIAS_FILE", ""),
			SendInterval:    pkgconfig.GetEnvMillis("TELEGRAM_SEND_INTERVAL_MS", dispatch.DefaultInterval),
			DeliveryModeRaw: pkgconfig.GetEnvString("TELEGRAM_DELIVERY_MODE", string(dispatch.ModeQueue)),
		},
		Bridge: smtpbridge.Config{
			Host:            pkgconfig.GetEnvString("SMTP_LISTEN_HOST", ""),
			Port:            pkgconfig.GetEnvInt("SMTP_LISTEN_PORT", 0),
			User:            pkgconfig.GetEnvString("SMTP_LISTEN_USER", ""),
			Password:        pkgconfig.GetEnvString("SMTP_LISTEN_PASS", ""),
			Domain:          pkgconfig.GetEnvString("SMTP_LISTEN_DOMAIN", "localhost"),
			MaxMessageBytes: pkgconfig.GetEnvInt64("SMTP_LISTEN_MAX_BYTES", 10<<20),
		},
		RateLimit:       pkgconfig.LoadRateLimitConfig(),
		ShutdownTimeout: pkgconfig.GetEnvDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
	}

	// PUERTO は旧名
	if cfg.Port == 0 {
		cfg.Port = pkgconfig.GetEnvInt("PUERTO", 3000)
	}
	cfg.Bridge.Sender = cfg.bridgeSender()
	return cfg
}

// bridgeSender picks the From address for bridged mail. On the relay
// backend that is the listener account when it is an address, else
// SMTP_FROM, else SMTP_USER. The transactional backend uses its default
// sender.
func (c *Config) bridgeSender() string {
	provider, err := notify.ParseProvider(c.Email.Provider)
	if err != nil {
		return ""
	}
	if provider != notify.ProviderSMTP {
		return c.Email.SendGrid.DefaultFrom
	}
	// SMTP_LISTEN_USER は "usuario_local" のような単なるユーザー名でもよい
	for _, candidate := range []string{c.Bridge.User, c.Email.SMTP.From, c.Email.SMTP.User} {
		if _, err := mail.ParseAddress(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Provider returns the parsed email provider.
func (c *Config) Provider() (notify.Provider, error) {
	return notify.ParseProvider(c.Email.Provider)
}

// Validate returns every fatal problem joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}

	provider, err := c.Provider()
	if err != nil {
		errs = append(errs, err)
	}
	switch provider {
	case notify.ProviderSendGrid:
		if c.Email.SendGrid.APIKey == "" {
			errs = append(errs, errors.New("SENDGRID_API_KEY is required for the sendgrid provider"))
		}
	case notify.ProviderSMTP:
		if c.Email.SMTP.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for the smtp provider"))
		}
		if c.Email.SMTP.Port <= 0 {
			errs = append(errs, fmt.Errorf("SMTP_PORT must be positive, got %d", c.Email.SMTP.Port))
		}
	}

	if c.Email.MaxPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("EMAIL_MAX_PER_SECOND must be positive, got %v", c.Email.MaxPerSecond))
	}
	if c.Email.Burst <= 0 {
		errs = append(errs, fmt.Errorf("EMAIL_BURST must be positive, got %d", c.Email.Burst))
	}

	if provider == notify.ProviderSMTP {
		if err := pkgconfig.ValidateDurationRange(c.Email.SMTP.Timeout, time.Second, 5*time.Minute); err != nil {
			errs = append(errs, fmt.Errorf("SMTP_TIMEOUT: %w", err))
		}
	}
	if err := pkgconfig.ValidatePositiveDuration(c.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT: %w", err))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Telegram.SendInterval); err != nil {
		errs = append(errs, fmt.Errorf("TELEGRAM_SEND_INTERVAL_MS: %w", err))
	}
	if _, err := dispatch.ParseMode(c.Telegram.DeliveryModeRaw); err != nil {
		errs = append(errs, fmt.Errorf("TELEGRAM_DELIVERY_MODE: %w", err))
	}

	if c.RateLimit != nil {
		if err := c.RateLimit.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rate limit: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Warnings lists settings that are legal but leave part of the relay unusable.
func (c *Config) Warnings() []string {
	var w []string
	if c.Email.APIToken == "" {
		w = append(w, "EMAIL_API_TOKEN is empty: every POST /email will be rejected")
	}
	if c.Telegram.APIToken == "" {
		w = append(w, "TELEGRAM_API_TOKEN is empty: every POST /telegram will be rejected")
	}
	if !smtpbridge.Enabled(c.Bridge) && (c.Bridge.Host != "" || c.Bridge.Port != 0) {
		w = append(w, "SMTP_LISTEN_* is incomplete: the inbound bridge stays off")
	}
	return w
}
