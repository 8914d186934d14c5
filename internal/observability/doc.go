// Package observability groups the relay's logging and tracing helpers.
//
// Subpackages:
//   - logging: slog logger construction and request scoped loggers
//   - requestid: correlation IDs carried in the context, plus the X-Request-ID middleware
//   - tracing: OpenTelemetry HTTP middleware and span helpers
//
// Prometheus metrics live next to the code they measure (HTTP middleware,
// rate limiter, email registry, dispatch queue).
package observability
