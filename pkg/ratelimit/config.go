package ratelimit

import (
	"fmt"
	"time"
)

const (
	// DefaultLimit is the ceiling applied when none is configured.
	DefaultLimit = 5
	// DefaultWindow is the window applied when none is configured.
	DefaultWindow = 1 * time.Hour
)

// LimiterConfig configures one FixedWindowLimiter.
type LimiterConfig struct {
	// Name identifies the limiter in metrics and headers (e.g. "telegram").
	Name string

	// Limit is the maximum acquisitions per identity within Window.
	// Default: 5
	Limit int

	// Window is the fixed window duration.
	// Default: 1 hour
	Window time.Duration
}

// ApplyDefaults fills zero values.
func (c *LimiterConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
}

// Validate rejects negative values.
func (c LimiterConfig) Validate() error {
	if c.Limit < 0 {
		return fmt.Errorf("limit must be non-negative, got %d", c.Limit)
	}
	if c.Window < 0 {
		return fmt.Errorf("window must be non-negative, got %s", c.Window)
	}
	return nil
}

// RateLimitConfig groups the limiters of the relay's HTTP surface.
type RateLimitConfig struct {
	// Enabled toggles all HTTP rate limiting.
	Enabled bool

	// Telegram limits chat submissions per caller.
	Telegram LimiterConfig

	// Email limits email submissions per caller.
	Email LimiterConfig

	// MaxActiveKeys bounds each in-memory store.
	MaxActiveKeys int

	// CleanupInterval is how often expired windows are purged.
	CleanupInterval time.Duration
}

// Validate checks every nested value.
func (c *RateLimitConfig) Validate() error {
	if err := c.Telegram.Validate(); err != nil {
		return fmt.Errorf("telegram limiter: %w", err)
	}
	if err := c.Email.Validate(); err != nil {
		return fmt.Errorf("email limiter: %w", err)
	}
	if c.MaxActiveKeys < 0 {
		return fmt.Errorf("MaxActiveKeys must be non-negative, got %d", c.MaxActiveKeys)
	}
	if c.CleanupInterval < 0 {
		return fmt.Errorf("CleanupInterval must be non-negative, got %s", c.CleanupInterval)
	}
	return nil
}

// ApplyDefaults sets safe defaults for zero values.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.Telegram.Name == "" {
		c.Telegram.Name = "telegram"
	}
	c.Telegram.ApplyDefaults()

	if c.Email.Name == "" {
		c.Email.Name = "email"
	}
	if c.Email.Limit <= 0 {
		c.Email.Limit = 60
	}
	if c.Email.Window <= 0 {
		c.Email.Window = 1 * time.Minute
	}

	if c.MaxActiveKeys <= 0 {
		c.MaxActiveKeys = 10000
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
}
