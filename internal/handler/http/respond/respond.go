// Package respond writes the relay's JSON responses.
//
// Every response carries a boolean "stat" field. Failures use the Failure
// envelope and never expose backend details: 5xx bodies are reduced to
// {"stat":false} and the sanitized cause is logged instead.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Failure is the body of every error response.
type Failure struct {
	Stat         bool     `json:"stat"`
	Error        string   `json:"error,omitempty"`
	ExpectedKeys []string `json:"expected_keys,omitempty"`
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// ヘッダー送信済みなのでログのみ
		slog.Default().Error("failed to encode JSON response",
			slog.Int("status_code", code),
			slog.Any("error", err))
	}
}

// Error writes {"stat":false,"error":msg}.
func Error(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, Failure{Error: msg})
}

// Fail writes a bare {"stat":false}.
func Fail(w http.ResponseWriter, code int) {
	JSON(w, code, Failure{})
}

// safeFragments mark messages that describe the caller's own mistake.
var safeFragments = []string{
	"required",
	"invalid",
	"not configured",
	"unauthorized",
	"too many requests",
	"must be",
	"too large",
}

// SafeError writes err for the caller only when it is known to be harmless.
// An *AppError always surfaces its UserMsg. Anything at 500 or above, and any
// message without a safe fragment, is logged in sanitized form and replaced.
func SafeError(w http.ResponseWriter, code int, err error) {
	if err == nil {
		return
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			slog.Default().Error("application error",
				slog.String("status", http.StatusText(appErr.Code)),
				slog.Int("code", appErr.Code),
				slog.String("user_message", appErr.UserMsg),
				slog.String("error", SanitizeError(appErr.Err)))
		}
		JSON(w, appErr.Code, Failure{Error: appErr.UserMsg, ExpectedKeys: appErr.ExpectedKeys})
		return
	}

	msg := err.Error()
	if code < http.StatusInternalServerError && isSafe(msg) {
		Error(w, code, msg)
		return
	}

	slog.Default().Error("request failed",
		slog.String("status", http.StatusText(code)),
		slog.Int("code", code),
		slog.String("error", SanitizeError(err)))
	if code >= http.StatusInternalServerError {
		Fail(w, code)
		return
	}
	Error(w, code, strings.ToLower(http.StatusText(code)))
}

func isSafe(msg string) bool {
	lower := strings.ToLower(msg)
	for _, frag := range safeFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// AppError carries a message meant for the caller next to the internal cause.
type AppError struct {
	UserMsg      string   // returned to the caller
	Err          error    // logged only
	Code         int      // HTTP status
	ExpectedKeys []string // optional hint for configuration errors
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.UserMsg
}

// Unwrap returns the internal cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError.
func NewAppError(code int, userMsg string, err error) *AppError {
	return &AppError{Code: code, UserMsg: userMsg, Err: err}
}
