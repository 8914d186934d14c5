package auth

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"notify-relay/internal/domain/notification"
)

func TestTokenChecker_Check(t *testing.T) {
	tests := []struct {
		name      string
		expected  string
		presented string
		wantErr   bool
	}{
		{name: "exact match", expected: "s3cret", presented: "s3cret"},
		{name: "configured value is trimmed", expected: "  s3cret\n", presented: "s3cret"},
		{name: "wrong token", expected: "s3cret", presented: "s3cre", wantErr: true},
		{name: "case differs", expected: "s3cret", presented: "S3CRET", wantErr: true},
		{name: "missing token", expected: "s3cret", presented: "", wantErr: true},
		{name: "nothing configured", expected: "", presented: "anything", wantErr: true},
		{name: "nothing configured nothing presented", expected: "", presented: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewTokenChecker("email", tt.expected).Check(tt.presented)
			if tt.wantErr {
				assert.ErrorIs(t, err, notification.ErrUnauthorized)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTokenChecker_RecordsMetrics(t *testing.T) {
	checker := NewTokenChecker("metrics-test", "tok")
	success := testutil.ToFloat64(authRequestsTotal.WithLabelValues("metrics-test", "success"))
	failure := testutil.ToFloat64(authRequestsTotal.WithLabelValues("metrics-test", "failure"))

	_ = checker.Check("tok")
	_ = checker.Check("nope")
	_ = checker.Check("")

	assert.Equal(t, success+1, testutil.ToFloat64(authRequestsTotal.WithLabelValues("metrics-test", "success")))
	assert.Equal(t, failure+2, testutil.ToFloat64(authRequestsTotal.WithLabelValues("metrics-test", "failure")))
}

func TestTokenChecker_Accessors(t *testing.T) {
	assert.True(t, NewTokenChecker("telegram", "x").Configured())
	assert.False(t, NewTokenChecker("telegram", " ").Configured())
	assert.Equal(t, "telegram", NewTokenChecker("telegram", "x").Channel())
}
