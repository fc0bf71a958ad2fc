package stage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/httpmw"
	"github.com/keithlinneman/tours-api/internal/ratelimit"
	"github.com/keithlinneman/tours-api/internal/reqctx"
)

func TestBuild_StageOrder(t *testing.T) {
	dev := newFixture(t, false)
	want := "views,static,devlog,security-headers,ratelimit,body,cookies,sanitize,hpp,tag,dispatch,notfound"
	if got := strings.Join(dev.p.Names(), ","); got != want {
		t.Fatalf("dev order = %s\nwant        %s", got, want)
	}

	prod := newFixture(t, true)
	want = "views,static,security-headers,ratelimit,body,cookies,sanitize,hpp,tag,dispatch,notfound"
	if got := strings.Join(prod.p.Names(), ","); got != want {
		t.Fatalf("prod order = %s\nwant         %s", got, want)
	}
}

func TestBuild_LoadsViewsOnce(t *testing.T) {
	f := newFixture(t, true)
	f.get("/")
	f.get("/tour/the-forest-hiker")
	if f.views.loads != 1 {
		t.Fatalf("view engine loaded %d times, want 1", f.views.loads)
	}
}

func TestBuild_ViewLoadErrorFailsBuild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := Build(Options{
		Views:   &fakeViews{err: errBoom},
		Limiter: ratelimit.New(ctx),
		Errors:  &plainErrors{},
	})
	if err == nil {
		t.Fatal("expected Build to fail when templates cannot load")
	}
}

func TestBuild_RequiresErrorsAndLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := Build(Options{Views: &fakeViews{}, Limiter: ratelimit.New(ctx)}); err == nil {
		t.Fatal("expected error without error handler")
	}
	if _, err := Build(Options{Views: &fakeViews{}, Errors: &plainErrors{}}); err == nil {
		t.Fatal("expected error without limiter")
	}
}

func TestUnknownRoute_NotFoundWithOriginalURL(t *testing.T) {
	f := newFixture(t, true)

	rec := f.get("/api/v1/nope?x=<b>1</b>&x=2")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	want := "Can't find /api/v1/nope?x=<b>1</b>&x=2"
	if rec.Body.String() != want {
		t.Fatalf("body = %q, want %q", rec.Body.String(), want)
	}
	if n := f.hitCount(); n != 0 {
		t.Fatalf("%d routers ran for an unknown route", n)
	}
	ae, ok := apperr.As(lastErr(t, f.errs))
	if !ok || !ae.Operational() {
		t.Fatal("404 should be an operational error")
	}
}

func TestRateLimit_501stRequestRejected(t *testing.T) {
	f := newFixture(t, true)

	for i := 1; i <= 500; i++ {
		rec := f.get("/api/v1/tours")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
	rec := f.get("/api/v1/tours")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("501st status = %d, want 429", rec.Code)
	}
	if rec.Body.String() != ratelimit.Message {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After not set")
	}
	if f.hitCount() != 500 {
		t.Fatalf("router ran %d times, want 500", f.hitCount())
	}

	// pages outside /api are not limited
	if rec := f.get("/"); rec.Code != http.StatusOK {
		t.Fatalf("view status = %d after API limit, want 200", rec.Code)
	}

	// another client has its own budget
	r := httptest.NewRequest(http.MethodGet, "/api/v1/tours", http.NoBody)
	r.RemoteAddr = "198.51.100.7:5000"
	if rec := f.do(r); rec.Code != http.StatusOK {
		t.Fatalf("other client status = %d, want 200", rec.Code)
	}
}

func TestBody_OverLimitRejectedBeforeRouting(t *testing.T) {
	f := newFixture(t, true)
	big := `{"name":"` + strings.Repeat("a", 10<<10) + `"}`

	r := httptest.NewRequest(http.MethodPost, "/api/v1/tours", strings.NewReader(big))
	r.Header.Set("Content-Type", "application/json")
	rec := f.do(r)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if f.hitCount() != 0 {
		t.Fatal("router ran for an oversized body")
	}

	// unknown length is caught while reading
	r = httptest.NewRequest(http.MethodPost, "/api/v1/tours", strings.NewReader(big))
	r.Header.Set("Content-Type", "application/json")
	r.ContentLength = -1
	if rec := f.do(r); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("chunked status = %d, want 413", rec.Code)
	}
	if f.hitCount() != 0 {
		t.Fatal("router ran for an oversized chunked body")
	}

	// and so are chunked uploads the body stage does not decode
	r = httptest.NewRequest(http.MethodPatch, "/api/v1/users/updateMe", strings.NewReader(big))
	r.Header.Set("Content-Type", "application/octet-stream")
	r.ContentLength = -1
	if rec := f.do(r); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("chunked upload status = %d, want 413", rec.Code)
	}
	if f.hitCount() != 0 {
		t.Fatal("router ran for an oversized chunked upload")
	}
}

func TestBody_InvalidJSON(t *testing.T) {
	f := newFixture(t, true)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/tours", strings.NewReader(`{"name":`))
	r.Header.Set("Content-Type", "application/json")

	rec := f.do(r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if rec.Body.String() != "Invalid JSON in request body" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestHPP_LastValueUnlessWhitelisted(t *testing.T) {
	f := newFixture(t, true)

	rec := f.get("/api/v1/tours?sort=price&sort=duration&duration=5&duration=9")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	q := f.last.URL.Query()
	if got := q["sort"]; !reflect.DeepEqual(got, []string{"duration"}) {
		t.Fatalf("sort = %v, want [duration]", got)
	}
	if got := q["duration"]; !reflect.DeepEqual(got, []string{"5", "9"}) {
		t.Fatalf("duration = %v, want [5 9]", got)
	}
}

func TestSanitize_OperatorKeysAndMarkupNeutralized(t *testing.T) {
	f := newFixture(t, true)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"email":{"$gt":""},"password":"pass1234","name":"<script>alert(1)</script>Jonas"}`))
	r.Header.Set("Content-Type", "application/json")
	rec := f.do(r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := reqctx.Body(f.last.Context())
	email, ok := body["email"].(map[string]any)
	if !ok || len(email) != 0 {
		t.Fatalf("email = %#v, want empty object", body["email"])
	}
	if body["name"] != "Jonas" {
		t.Fatalf("name = %q, want markup stripped", body["name"])
	}
	if body["password"] != "pass1234" {
		t.Fatalf("password changed: %q", body["password"])
	}
}

func TestSanitize_QueryOperatorKeyDropped(t *testing.T) {
	f := newFixture(t, true)
	f.get("/api/v1/tours?" + url.Values{"price[$gte]": {"0"}, "difficulty": {"easy"}}.Encode())

	q := f.last.URL.Query()
	if _, ok := q["price[$gte]"]; ok {
		t.Fatal("operator query key reached the router")
	}
	if q.Get("difficulty") != "easy" {
		t.Fatalf("difficulty = %q", q.Get("difficulty"))
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := Sanitize()
	r := httptest.NewRequest(http.MethodGet, "/?q=<i>x</i>", http.NoBody)
	r = reqctx.WithBody(r, map[string]any{
		"a":    "<b>bold</b> &amp; plain",
		"list": []any{"<p>x</p>", map[string]any{"$where": "1", "ok": "y"}},
	})

	once := s.Run(httptest.NewRecorder(), r)
	r1 := requestOf(t, once)
	snap1 := fmt.Sprint(reqctx.Body(r1.Context()), r1.URL.RawQuery)

	twice := s.Run(httptest.NewRecorder(), r1)
	r2 := requestOf(t, twice)
	snap2 := fmt.Sprint(reqctx.Body(r2.Context()), r2.URL.RawQuery)

	if snap1 != snap2 {
		t.Fatalf("second pass changed the request:\n%s\n%s", snap1, snap2)
	}
}

func TestTag_StampsUTC(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, loc)
	out := Tag(func() time.Time { return at }).Run(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	got := reqctx.RequestTime(requestOf(t, out).Context())
	if !got.Equal(at) || got.Location() != time.UTC {
		t.Fatalf("request time = %v, want %v in UTC", got, at)
	}
}

func TestStatic_BypassesRest(t *testing.T) {
	f := newFixture(t, false)

	rec := f.get("/css/style.css")

	if rec.Code != http.StatusOK || rec.Body.String() != "body{}" {
		t.Fatalf("static: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "" {
		t.Fatal("security headers applied to a static file")
	}
	if f.hitCount() != 0 {
		t.Fatal("router ran for a static file")
	}
	if len(f.log.entries()) != 0 {
		t.Fatal("dev logger saw a static file")
	}
}

func TestStatic_DirectoryFallsThrough(t *testing.T) {
	f := newFixture(t, true)
	if rec := f.get("/css"); rec.Code != http.StatusNotFound {
		t.Fatalf("directory status = %d, want 404", rec.Code)
	}
	r := httptest.NewRequest(http.MethodPost, "/robots.txt", http.NoBody)
	if rec := f.do(r); rec.Code != http.StatusNotFound {
		t.Fatalf("POST to static file status = %d, want 404", rec.Code)
	}
}

func TestDevLog_LogsInDevelopmentOnly(t *testing.T) {
	dev := newFixture(t, false)
	dev.get("/api/v1/tours/5c88fa8cf4afda39709c2955")

	entries := dev.log.entries()
	if len(entries) != 1 || entries[0].msg != "http request" {
		t.Fatalf("dev log entries = %+v", entries)
	}
	if v, _ := kvValue(entries[0].kv, "http.route"); v != "/api/v1/tours/{id}" {
		t.Fatalf("http.route = %v", v)
	}
	if v, _ := kvValue(entries[0].kv, "http.response.status_code"); v != http.StatusOK {
		t.Fatalf("status = %v", v)
	}

	prod := newFixture(t, true)
	prod.get("/api/v1/tours")
	if n := len(prod.log.entries()); n != 0 {
		t.Fatalf("production logged %d access lines", n)
	}
}

func TestDevLog_LogsErrors(t *testing.T) {
	f := newFixture(t, false)
	f.get("/missing")

	entries := f.log.entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if v, _ := kvValue(entries[0].kv, "http.response.status_code"); v != http.StatusNotFound {
		t.Fatalf("status = %v, want 404", v)
	}
	if v, _ := kvValue(entries[0].kv, "http.route"); v != httpmw.UnmatchedRoute {
		t.Fatalf("http.route = %v, want %s", v, httpmw.UnmatchedRoute)
	}
}

func TestSecurityHeaders_OnErrorResponses(t *testing.T) {
	f := newFixture(t, true)
	rec := f.get("/api/v1/nope")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing on 404")
	}
}
