// Package auth checks the shared API token that callers of /email and
// /telegram present in the request body.
//
// Each channel family has one token (EMAIL_API_TOKEN, TELEGRAM_API_TOKEN).
// When no token is configured every request is rejected.
package auth

import (
	"crypto/subtle"
	"strings"

	"notify-relay/internal/domain/notification"
)

// TokenChecker compares presented tokens against one configured secret.
type TokenChecker struct {
	channel  string
	expected []byte
}

// NewTokenChecker creates a checker for channel ("email" or "telegram").
func NewTokenChecker(channel, expected string) *TokenChecker {
	return &TokenChecker{
		channel:  channel,
		expected: []byte(strings.TrimSpace(expected)),
	}
}

// Check returns notification.ErrUnauthorized unless presented matches the
// configured token exactly.
func (c *TokenChecker) Check(presented string) error {
	if len(c.expected) == 0 || presented == "" {
		RecordAuthRequest(c.channel, "failure")
		return notification.ErrUnauthorized
	}

	// 定数時間で比較する
	if subtle.ConstantTimeCompare([]byte(presented), c.expected) != 1 {
		RecordAuthRequest(c.channel, "failure")
		return notification.ErrUnauthorized
	}

	RecordAuthRequest(c.channel, "success")
	return nil
}

// Configured reports whether a token is set.
func (c *TokenChecker) Configured() bool {
	return len(c.expected) > 0
}

// Channel returns the channel name used in metrics.
func (c *TokenChecker) Channel() string {
	return c.channel
}
