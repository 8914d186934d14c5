// Package tracing provides OpenTelemetry tracing for the relay.
//
// The HTTP Middleware opens a server span per request and exposes the
// trace ID in the X-Trace-Id response header. StartSpan and EndSpan are
// used by the email registry and the chat dispatch queue so a delivery can
// be followed from submission to backend call.
//
// No exporter is configured here; with the default global provider spans
// are no-ops.
//
//	ctx, span := tracing.StartSpan(ctx, "email.send", attribute.String("provider", "smtp"))
//	err := backend.Send(ctx, req)
//	tracing.EndSpan(span, err)
package tracing
