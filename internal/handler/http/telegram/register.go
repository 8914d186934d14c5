package telegram

import (
	"log/slog"
	"net/http"

	"notify-relay/internal/handler/http/auth"
	"notify-relay/internal/usecase/dispatch"
)

// Register mounts POST /telegram. wrap may be nil.
func Register(mux *http.ServeMux, queue Dispatcher, resolver Resolver, checker *auth.TokenChecker, mode dispatch.Mode, logger *slog.Logger, wrap func(http.Handler) http.Handler) {
	var h http.Handler = SendHandler{
		Queue:    queue,
		Resolver: resolver,
		Auth:     checker,
		Mode:     mode,
		Logger:   logger,
	}
	if wrap != nil {
		h = wrap(h)
	}
	mux.Handle("POST /telegram", h)
}
