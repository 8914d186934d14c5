// Package requestid assigns a correlation ID to every inbound request and
// carries it through the context. The SMTP bridge has no headers and
// generates one per session with the same helpers.
package requestid

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RequestIDKey is the context key for storing request IDs.
	RequestIDKey contextKey = "request_id"
	// RequestIDHeader is the HTTP header name for request IDs.
	RequestIDHeader = "X-Request-ID"
)

// 外部から受け取る ID はログに出すので、英数字と - _ . のみ許可
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// FromContext returns the request ID stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// New returns a fresh UUID v4 string.
func New() string {
	return uuid.New().String()
}

// Ensure returns ctx unchanged if it already carries an ID, otherwise a
// child context with a new one.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return WithRequestID(ctx, id), id
}

// IsValid reports whether a caller-supplied ID is safe to propagate.
func IsValid(id string) bool {
	return validID.MatchString(id)
}

// Middleware propagates X-Request-ID when the caller sends a well-formed
// one and generates a UUID v4 otherwise. The ID is echoed in the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !IsValid(requestID) {
			requestID = New()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
