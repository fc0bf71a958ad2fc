package httpmw

import (
	"cmp"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// Default headers used by TraceResponseHeaders.
const (
	TraceIDHeader = "X-Trace-Id"
	SpanIDHeader  = "X-Span-Id"
)

// TraceResponseHeaders echoes the ids of the active span so a client can
// quote them when reporting a failed tour or booking request. Requests the
// tracer did not sample still carry valid ids; untraced paths such as static
// assets get no headers.
func TraceResponseHeaders(traceHeader, spanHeader string) Middleware {
	traceHeader = cmp.Or(traceHeader, TraceIDHeader)
	spanHeader = cmp.Or(spanHeader, SpanIDHeader)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				h := w.Header()
				h.Set(traceHeader, sc.TraceID().String())
				h.Set(spanHeader, sc.SpanID().String())
			}
			next.ServeHTTP(w, r)
		})
	}
}
