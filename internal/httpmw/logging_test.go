package httpmw

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keithlinneman/tours-api/internal/log"
)

func TestWithLogger_RequestFields(t *testing.T) {
	base := newMemLogger()
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Info(r.Context(), "listing tours")
	}), RequestID(""), ClientIPWithOptions(ClientIPOptions{TrustedHops: 1}), WithLogger(base))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/tours?difficulty=easy&token=secret", nil)
	r.RemoteAddr = "10.0.0.2:41000"
	r.Header.Set("X-Request-Id", "req-42")
	r.Header.Set("X-Forwarded-For", "198.51.100.7")
	r.Header.Set("X-Forwarded-Proto", "https")
	r.Header.Set("Cookie", "jwt=abc")
	serve(h, r)

	e := base.only(t)
	want := map[string]string{
		"request_id":           "req-42",
		"client.address":       "198.51.100.7",
		"network.peer.address": "10.0.0.2",
		"http.request.method":  http.MethodGet,
		"url.path":             "/api/v1/tours",
		"url.scheme":           "https",
	}
	for k, v := range want {
		if got, _ := e.field(k); got != v {
			t.Errorf("%s = %v, want %q", k, got, v)
		}
	}
	for _, k := range []string{"url.query", "http.request.header.cookie", "user_agent.original"} {
		if _, ok := e.field(k); ok {
			t.Errorf("%s must not be logged", k)
		}
	}
}

func TestWithLogger_PeerIsClientWithoutClientIP(t *testing.T) {
	base := newMemLogger()
	h := WithLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Info(r.Context(), "x")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.5:5000"
	serve(h, r)

	if got, _ := base.only(t).field("client.address"); got != "203.0.113.5" {
		t.Fatalf("client.address = %v", got)
	}
}

func TestWithLogger_SpanAttributes(t *testing.T) {
	ctx, end := recordingSpan(t)
	h := Chain(http.NotFoundHandler(), RequestID(""), WithLogger(nil))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil).WithContext(ctx)
	r.Header.Set("X-Request-Id", "req-7")
	r.RemoteAddr = "127.0.0.1:9000"
	serve(h, r)

	span := end()
	if got, _ := spanAttr(span, "request_id"); got != "req-7" {
		t.Fatalf("request_id = %q", got)
	}
	if got, _ := spanAttr(span, "client.address"); got != "127.0.0.1" {
		t.Fatalf("client.address = %q", got)
	}
}

func TestSchemeFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
		proto  string
		tls    bool
		want   string
	}{
		{"default", "/", "", false, "http"},
		{"forwarded https", "/", "https", false, "https"},
		{"forwarded upper case", "/", "HTTPS", false, "https"},
		{"first forwarded value wins", "/", "https, http", false, "https"},
		{"unknown forwarded scheme", "/", "ftp", false, "http"},
		{"absolute url", "https://natours.dev/tours", "", false, "https"},
		{"odd url scheme", "gopher://natours.dev/", "", false, "http"},
		{"tls", "/", "", true, "https"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.proto != "" {
				r.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if tt.tls {
				r.TLS = &tls.ConnectionState{}
			}
			if got := schemeFromRequest(r); got != tt.want {
				t.Fatalf("scheme = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScope_TagsRouterName(t *testing.T) {
	ctx, end := recordingSpan(t)
	base := newMemLogger()

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Info(r.Context(), "get review")
	}), WithLogger(base), Scope("review"))

	serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/reviews/1", nil).WithContext(ctx))

	if got, _ := base.only(t).field("handler"); got != "review" {
		t.Fatalf("handler = %v, want review", got)
	}
	if got, _ := spanAttr(end(), "app.handler"); got != "review" {
		t.Fatalf("app.handler = %q, want review", got)
	}
}

func TestScope_NestedRouterWins(t *testing.T) {
	// reviews mount under /tours/{tourId}/reviews
	base := newMemLogger()
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Info(r.Context(), "list reviews")
	}), WithLogger(base), Scope("tour"), Scope("review"))

	serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/tours/1/reviews", nil))

	if got, _ := base.only(t).field("handler"); got != "review" {
		t.Fatalf("handler = %v, want review", got)
	}
}
