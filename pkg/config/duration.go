package config

import (
	"fmt"
	"time"
)

// ValidatePositiveDuration rejects zero and negative durations.
func ValidatePositiveDuration(d time.Duration) error {
	if d > 0 {
		return nil
	}
	return fmt.Errorf("duration must be positive, got %v", d)
}

// ValidateDurationRange checks lo <= d <= hi (both bounds inclusive).
//
//	// SMTP_TIMEOUT は 1s〜5m
//	err := ValidateDurationRange(timeout, time.Second, 5*time.Minute)
func ValidateDurationRange(d, lo, hi time.Duration) error {
	switch {
	case lo > hi:
		return fmt.Errorf("invalid range: lower bound %v is above upper bound %v", lo, hi)
	case d < lo:
		return fmt.Errorf("duration %v is below minimum %v", d, lo)
	case d > hi:
		return fmt.Errorf("duration %v exceeds maximum %v", d, hi)
	}
	return nil
}
