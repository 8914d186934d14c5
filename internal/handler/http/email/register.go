package email

import (
	"log/slog"
	"net/http"

	"notify-relay/internal/handler/http/auth"
)

// Register mounts POST /email. wrap applies the route's rate limiter and
// may be nil.
func Register(mux *http.ServeMux, sender Sender, checker *auth.TokenChecker, logger *slog.Logger, wrap func(http.Handler) http.Handler) {
	var h http.Handler = SendHandler{Sender: sender, Auth: checker, Logger: logger}
	if wrap != nil {
		h = wrap(h)
	}
	mux.Handle("POST /email", h)
}
