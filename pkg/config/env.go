// Package config provides helpers for reading typed configuration values
// from environment variables. Invalid values never fail hard: they are
// logged at WARN and the caller's default is used instead.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnvString returns the value of key, or defaultValue when unset or empty.
//
// Example:
//
//	host := GetEnvString("SMTP_HOST", "localhost")
func GetEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvFirst returns the first non-empty value among keys, or defaultValue.
// It lets a renamed variable keep accepting its legacy name.
//
// Example:
//
//	provider := GetEnvFirst("", "EMAIL_PROVIDER", "PROVEEDOR_EMAIL")
func GetEnvFirst(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

// GetEnvInt returns key parsed as a base-10 integer.
//
// Parameters:
//   - key: Environment variable name
//   - defaultValue: Value to return on error or if not set
//
// Returns:
//   - int: The parsed integer value or defaultValue
func GetEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		warnInvalid(key, raw, strconv.Itoa(defaultValue), err)
		return defaultValue
	}
	return value
}

// GetEnvInt64 is GetEnvInt for 64-bit values such as byte sizes.
func GetEnvInt64(key string, defaultValue int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		warnInvalid(key, raw, strconv.FormatInt(defaultValue, 10), err)
		return defaultValue
	}
	return value
}

// GetEnvFloat returns key parsed as a float64.
func GetEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		warnInvalid(key, raw, strconv.FormatFloat(defaultValue, 'f', -1, 64), err)
		return defaultValue
	}
	return value
}

// GetEnvBool returns key parsed with strconv.ParseBool
// ("1", "t", "true", "0", "f", "false" in any case).
//
// Example:
//
//	secure := GetEnvBool("SMTP_SECURE", false)
func GetEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		warnInvalid(key, raw, strconv.FormatBool(defaultValue), err)
		return defaultValue
	}
	return value
}

// GetEnvDuration returns key parsed by time.ParseDuration ("30s", "1h").
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		warnInvalid(key, raw, defaultValue.String(), err)
		return defaultValue
	}
	return value
}

// GetEnvMillis returns key, an integer count of milliseconds, as a Duration.
//
// Example:
//
//	interval := GetEnvMillis("TELEGRAM_SEND_INTERVAL_MS", 10*time.Second)
func GetEnvMillis(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		warnInvalid(key, raw, defaultValue.String(), err)
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

// GetEnvStringList splits key on commas, trimming blanks and dropping
// empty items.
//
// Example:
//
//	// RATELIMIT_TRUSTED_PROXIES="10.0.0.0/8, 172.16.0.0/12"
//	proxies := GetEnvStringList("RATELIMIT_TRUSTED_PROXIES", nil)
func GetEnvStringList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

func warnInvalid(key, value, defaultValue string, err error) {
	slog.Warn("invalid value for environment variable, using default",
		slog.String("key", key),
		slog.String("value", value),
		slog.String("default", defaultValue),
		slog.String("error", err.Error()))
}
