package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestTraceResponseHeaders_EchoesActiveSpan(t *testing.T) {
	ctx, _ := recordingSpan(t)
	sc := trace.SpanContextFromContext(ctx)

	h := TraceResponseHeaders("", "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// headers are set before the handler writes
		w.WriteHeader(http.StatusBadRequest)
	}))
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/users/signup", nil).WithContext(ctx))

	if got := rec.Header().Get(TraceIDHeader); got != sc.TraceID().String() {
		t.Fatalf("%s = %q, want %s", TraceIDHeader, got, sc.TraceID())
	}
	if got := rec.Header().Get(SpanIDHeader); got != sc.SpanID().String() {
		t.Fatalf("%s = %q, want %s", SpanIDHeader, got, sc.SpanID())
	}
}

func TestTraceResponseHeaders_CustomNames(t *testing.T) {
	ctx, _ := recordingSpan(t)
	h := TraceResponseHeaders("Trace", "Span")(http.NotFoundHandler())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

	if rec.Header().Get("Trace") == "" || rec.Header().Get("Span") == "" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if rec.Header().Get(TraceIDHeader) != "" {
		t.Fatal("default trace header set alongside custom one")
	}
}

func TestTraceResponseHeaders_NoSpan(t *testing.T) {
	h := TraceResponseHeaders("", "")(http.NotFoundHandler())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/css/style.css", nil))

	if rec.Header().Get(TraceIDHeader) != "" || rec.Header().Get(SpanIDHeader) != "" {
		t.Fatalf("untraced request got trace headers: %v", rec.Header())
	}
}
