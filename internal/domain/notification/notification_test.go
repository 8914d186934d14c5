package notification

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Validate_Email(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantField string
	}{
		{
			name: "complete",
			req:  NewEmail("a@b.com", "", "s", "t", "<p>t</p>"),
		},
		{
			name:      "missing to",
			req:       NewEmail("", "", "s", "t", "<p>t</p>"),
			wantField: "to",
		},
		{
			name:      "missing subject",
			req:       NewEmail("a@b.com", "", "", "t", "<p>t</p>"),
			wantField: "subject",
		},
		{
			name:      "missing text",
			req:       NewEmail("a@b.com", "", "s", "", "<p>t</p>"),
			wantField: "text",
		},
		{
			name:      "missing html",
			req:       NewEmail("a@b.com", "", "s", "t", ""),
			wantField: "html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.Equal(t, tt.wantField+" is required", vErr.Error())
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRequest_Validate_Chat(t *testing.T) {
	assert.NoError(t, NewChat("alertas", "hi", "", false, false).Validate())

	var vErr *ValidationError
	require.ErrorAs(t, NewChat(" ", "hi", "", false, false).Validate(), &vErr)
	assert.Equal(t, "alias", vErr.Field)

	require.ErrorAs(t, NewChat("alertas", "", "", false, false).Validate(), &vErr)
	assert.Equal(t, "message", vErr.Field)
}

func TestRequest_EffectiveParseMode(t *testing.T) {
	assert.Equal(t, "HTML", NewChat("a", "m", "", false, false).EffectiveParseMode())
	assert.Equal(t, "MarkdownV2", NewChat("a", "m", "MarkdownV2", false, false).EffectiveParseMode())
}

func TestConfigError_AliasNotConfigured(t *testing.T) {
	err := &ConfigError{
		Code:         AliasNotConfigured,
		Alias:        "alertas",
		ExpectedKeys: []string{"TELEGRAM_BOT_ALERTAS_TOKEN", "TELEGRAM_ALERTAS_CHAT_ID"},
	}

	assert.Contains(t, err.Error(), "TELEGRAM_BOT_ALERTAS_TOKEN")
	assert.Contains(t, err.Error(), "TELEGRAM_ALERTAS_CHAT_ID")
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestDeliveryError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&DeliveryError{Channel: "sendgrid", Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Equal(t, "sendgrid delivery failed: connection refused", err.Error())
}

func TestRejected(t *testing.T) {
	assert.NoError(t, Rejected(nil))

	cause := errors.New("mail: missing '@' or angle-addr")
	err := error(&DeliveryError{Channel: "smtp", Err: Rejected(cause)})

	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "smtp delivery failed: mail: missing '@' or angle-addr", err.Error())
	assert.NotErrorIs(t, &DeliveryError{Channel: "smtp", Err: cause}, ErrRejected)
}
