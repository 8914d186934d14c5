package smtpbridge

import (
	"net"
	"strconv"
	"time"
)

// Config holds the inbound listener settings (SMTP_LISTEN_*).
type Config struct {
	Host     string
	Port     int
	User     string
	Password string

	// Domain is announced in the greeting.
	Domain string

	// MaxMessageBytes bounds one DATA payload.
	MaxMessageBytes int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ForwardTimeout bounds the hand-off of one message to the email backend.
	ForwardTimeout time.Duration

	// Sender is the From address put on forwarded mail. It depends on the
	// outbound backend and is chosen by the caller.
	Sender string
}

// Enabled reports whether the listener should bind: host, port, user and
// password must all be set.
func Enabled(cfg Config) bool {
	return cfg.Host != "" && cfg.Port > 0 && cfg.User != "" && cfg.Password != ""
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) withDefaults() Config {
	if c.Domain == "" {
		c.Domain = "localhost"
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 10 << 20
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.ForwardTimeout <= 0 {
		c.ForwardTimeout = 60 * time.Second
	}
	return c
}
