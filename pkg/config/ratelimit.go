package config

import (
	"log/slog"
	"time"

	"notify-relay/pkg/ratelimit"
)

// LoadRateLimitConfig loads the HTTP submission limiters from the environment.
//
// Environment variables:
//   - RATELIMIT_ENABLED: Enable/disable rate limiting (default: true)
//   - TELEGRAM_RATE_LIMIT: chat submissions per caller per window (default: 5)
//   - TELEGRAM_RATE_WINDOW: chat window (default: 1h)
//   - EMAIL_RATE_LIMIT: email submissions per caller per window (default: 60)
//   - EMAIL_RATE_WINDOW: email window (default: 1m)
//   - RATELIMIT_MAX_KEYS: maximum identities per store (default: 10000)
//   - RATELIMIT_CLEANUP_INTERVAL: expired-window purge interval (default: 5m)
//
// Invalid values are logged and replaced by their defaults, so this never
// fails.
func LoadRateLimitConfig() *ratelimit.RateLimitConfig {
	cfg := &ratelimit.RateLimitConfig{
		Enabled: GetEnvBool("RATELIMIT_ENABLED", true),
		Telegram: ratelimit.LimiterConfig{
			Name:   "telegram",
			Limit:  nonNegativeInt("TELEGRAM_RATE_LIMIT", ratelimit.DefaultLimit),
			Window: positiveDuration("TELEGRAM_RATE_WINDOW", ratelimit.DefaultWindow),
		},
		Email: ratelimit.LimiterConfig{
			Name:   "email",
			Limit:  nonNegativeInt("EMAIL_RATE_LIMIT", 60),
			Window: positiveDuration("EMAIL_RATE_WINDOW", 1*time.Minute),
		},
		MaxActiveKeys:   nonNegativeInt("RATELIMIT_MAX_KEYS", 10000),
		CleanupInterval: positiveDuration("RATELIMIT_CLEANUP_INTERVAL", 5*time.Minute),
	}
	cfg.ApplyDefaults()
	return cfg
}

func nonNegativeInt(key string, defaultValue int) int {
	value := GetEnvInt(key, defaultValue)
	if value < 0 {
		slog.Warn("negative value for environment variable, using default",
			slog.String("key", key),
			slog.Int("value", value),
			slog.Int("default", defaultValue))
		return defaultValue
	}
	return value
}

func positiveDuration(key string, defaultValue time.Duration) time.Duration {
	value := GetEnvDuration(key, defaultValue)
	if err := ValidatePositiveDuration(value); err != nil {
		slog.Warn("invalid duration for environment variable, using default",
			slog.String("key", key),
			slog.String("default", defaultValue.String()),
			slog.String("error", err.Error()))
		return defaultValue
	}
	return value
}
