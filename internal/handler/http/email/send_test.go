package email_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-relay/internal/domain/notification"
	"notify-relay/internal/handler/http/auth"
	"notify-relay/internal/handler/http/email"
	"notify-relay/internal/resilience/circuitbreaker"
)

type stubSender struct {
	calls []notification.Request
	err   error
}

func (s *stubSender) Send(_ context.Context, req notification.Request) error {
	s.calls = append(s.calls, req)
	return s.err
}

func serve(t *testing.T, sender email.Sender, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	email.Register(mux, sender, auth.NewTokenChecker("email", "secret-token"), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/email", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSendHandler_Success(t *testing.T) {
	sender := &stubSender{}
	rec := serve(t, sender, `{
		"to": "ops@example.com",
		"from": "alerts@example.com",
		"subject": "Disk usage",
		"text": "93%",
		"html": "<b>93%</b>",
		"token": "secret-token"
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stat":true}`, rec.Body.String())

	// 値はそのまま一度だけ渡される
	want := []notification.Request{notification.NewEmail("ops@example.com", "alerts@example.com", "Disk usage", "93%", "<b>93%</b>")}
	if diff := cmp.Diff(want, sender.calls); diff != "" {
		t.Errorf("backend calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSendHandler_RecipientArray(t *testing.T) {
	sender := &stubSender{}
	rec := serve(t, sender, `{"to":["a@example.com"," b@example.com",""],"subject":"s","text":"t","html":"h","token":"secret-token"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sender.calls, 1)
	assert.Equal(t, "a@example.com, b@example.com", sender.calls[0].Recipient)
	assert.Empty(t, sender.calls[0].Sender)
}

func TestSendHandler_Unauthorized(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "wrong token", body: `{"to":"a@example.com","subject":"s","text":"t","html":"h","token":"nope"}`},
		{name: "missing token", body: `{"to":"a@example.com","subject":"s","text":"t","html":"h"}`},
		{name: "missing fields still 401 first", body: `{"token":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{}
			rec := serve(t, sender, tt.body)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"stat":false,"error":"unauthorized"}`, rec.Body.String())
			assert.Empty(t, sender.calls)
		})
	}
}

func TestSendHandler_MissingField(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "to", body: `{"subject":"s","text":"t","html":"h","token":"secret-token"}`, field: "to"},
		{name: "subject", body: `{"to":"a@example.com","text":"t","html":"h","token":"secret-token"}`, field: "subject"},
		{name: "text", body: `{"to":"a@example.com","subject":"s","html":"h","token":"secret-token"}`, field: "text"},
		{name: "html", body: `{"to":"a@example.com","subject":"s","text":"t","token":"secret-token"}`, field: "html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{}
			rec := serve(t, sender, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"stat":false,"error":"`+tt.field+` is required"}`, rec.Body.String())
			assert.Empty(t, sender.calls)
		})
	}
}

func TestSendHandler_MalformedBody(t *testing.T) {
	for _, body := range []string{`{`, `not json`, `{"to":42,"token":"secret-token"}`} {
		sender := &stubSender{}
		rec := serve(t, sender, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"stat":false,"error":"invalid JSON body"}`, rec.Body.String())
		assert.Empty(t, sender.calls)
	}
}

func TestSendHandler_ProviderFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "backend error", err: &notification.DeliveryError{Channel: "sendgrid", Err: errors.New("403 Forbidden SG.abcdefgh1234.secretsecretsecret")}},
		{name: "open circuit", err: &notification.DeliveryError{Channel: "smtp", Err: circuitbreaker.ErrOpen}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &stubSender{err: tt.err}
			rec := serve(t, sender, `{"to":"a@example.com","subject":"s","text":"t","html":"h","token":"secret-token"}`)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, `{"stat":false}`, rec.Body.String())
			assert.Len(t, sender.calls, 1)
		})
	}
}

func TestSendHandler_BackendValidationIsClientError(t *testing.T) {
	sender := &stubSender{err: &notification.ValidationError{Field: "to", Message: "to is invalid: mail: missing '@'"}}
	rec := serve(t, sender, `{"to":"nobody","subject":"s","text":"t","html":"h","token":"secret-token"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "to is invalid")
}

func TestRegister_OnlyPost(t *testing.T) {
	mux := http.NewServeMux()
	email.Register(mux, &stubSender{}, auth.NewTokenChecker("email", "x"), nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/email", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRegister_AppliesWrapper(t *testing.T) {
	mux := http.NewServeMux()
	wrapped := false
	email.Register(mux, &stubSender{}, auth.NewTokenChecker("email", "x"), nil, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped = true
			next.ServeHTTP(w, r)
		})
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/email", strings.NewReader(`{}`)))
	assert.True(t, wrapped)
}
