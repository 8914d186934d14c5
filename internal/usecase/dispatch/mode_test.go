package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"":          ModeQueue,
		"queue":     ModeQueue,
		" Queued ":  ModeQueue,
		"IMMEDIATE": ModeImmediate,
		"direct":    ModeImmediate,
	}
	for in, want := range tests {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("batch")
	assert.ErrorContains(t, err, "batch")
}
