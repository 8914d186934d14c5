// Package logging builds the relay's log/slog logger.
//
// Output is JSON on stdout unless LOG_FORMAT=text. Request scoped loggers
// carry request_id and trace_id:
//
//	logger := logging.WithRequestID(r.Context(), slog.Default())
//	logger.Info("email accepted", slog.String("provider", "smtp"))
package logging
