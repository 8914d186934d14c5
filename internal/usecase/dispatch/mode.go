package dispatch

import (
	"fmt"
	"strings"
)

// Mode selects how POST /telegram delivers.
type Mode string

const (
	// ModeQueue appends to the queue and responds with the depth.
	ModeQueue Mode = "queue"
	// ModeImmediate sends before responding.
	ModeImmediate Mode = "immediate"
)

// ParseMode accepts "queue" (also "" and "queued") and "immediate"
// (also "direct"), case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "queue", "queued":
		return ModeQueue, nil
	case "immediate", "direct":
		return ModeImmediate, nil
	default:
		return "", fmt.Errorf("unsupported delivery mode %q: use \"queue\" or \"immediate\"", s)
	}
}
