package stage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/log"
	"github.com/keithlinneman/tours-api/internal/pipeline"
	"github.com/keithlinneman/tours-api/internal/ratelimit"
)

// plainErrors writes the status and message of typed errors, 500 otherwise.
type plainErrors struct {
	mu   sync.Mutex
	errs []error
}

func (e *plainErrors) ServeError(w http.ResponseWriter, _ *http.Request, err error) {
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
	code, msg := http.StatusInternalServerError, "Something went very wrong!"
	if ae, ok := apperr.As(err); ok {
		code, msg = ae.StatusCode(), ae.Message()
	}
	w.WriteHeader(code)
	_, _ = io.WriteString(w, msg)
}

type fakeViews struct {
	loads int
	err   error
}

func (f *fakeViews) Load() error {
	f.loads++
	return f.err
}

// captureLogger records Info calls; With returns the same logger.
type captureLogger struct {
	mu    sync.Mutex
	infos []capturedInfo
}

type capturedInfo struct {
	msg string
	kv  []any
}

func (c *captureLogger) With(...any) log.Logger                      { return c }
func (c *captureLogger) Debug(context.Context, string, ...any)        {}
func (c *captureLogger) Warn(context.Context, string, ...any)         {}
func (c *captureLogger) Error(context.Context, error, string, ...any) {}
func (c *captureLogger) Sync() error                                  { return nil }
func (c *captureLogger) Info(_ context.Context, msg string, kv ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.infos = append(c.infos, capturedInfo{msg: msg, kv: kv})
}

func (c *captureLogger) entries() []capturedInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedInfo(nil), c.infos...)
}

func kvValue(kv []any, key string) (any, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			return kv[i+1], true
		}
	}
	return nil, false
}

// fixture is a built pipeline with two API routers and a root view router
// that record what reached them.
type fixture struct {
	p      *pipeline.Pipeline
	errs   *plainErrors
	views  *fakeViews
	log    *captureLogger
	hits   []string
	last   *http.Request
	mu     sync.Mutex
	public fstest.MapFS
}

func (f *fixture) hit(name string, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits = append(f.hits, name)
	f.last = r
}

func newFixture(t *testing.T, production bool) *fixture {
	t.Helper()
	f := &fixture{
		errs:  &plainErrors{},
		views: &fakeViews{},
		log:   &captureLogger{},
		public: fstest.MapFS{
			"css/style.css": {Data: []byte("body{}")},
			"robots.txt":    {Data: []byte("User-agent: *")},
		},
	}

	tours := chi.NewRouter()
	tours.Get("/", func(w http.ResponseWriter, r *http.Request) {
		f.hit("tours.list", r)
	})
	tours.Post("/", func(w http.ResponseWriter, r *http.Request) {
		f.hit("tours.create", r)
		w.WriteHeader(http.StatusCreated)
	})
	tours.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.hit("tours.get", r)
		_, _ = io.WriteString(w, chi.RouteContext(r.Context()).RoutePattern())
	})

	users := chi.NewRouter()
	users.Post("/login", func(w http.ResponseWriter, r *http.Request) {
		f.hit("users.login", r)
	})

	views := chi.NewRouter()
	views.Get("/", func(w http.ResponseWriter, r *http.Request) {
		f.hit("views.overview", r)
	})
	views.Get("/tour/{slug}", func(w http.ResponseWriter, r *http.Request) {
		f.hit("views.tour", r)
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.New(ctx,
		ratelimit.WithWindow(500, time.Hour),
		ratelimit.WithClock(func() time.Time { return fixed }),
	)

	p, err := Build(Options{
		Production: production,
		Logger:     f.log,
		Views:      f.views,
		PublicFS:   f.public,
		BodyLimit:  10 << 10,
		Limiter:    limiter,
		Now:        func() time.Time { return fixed },
		Errors:     f.errs,
		Mounts: []Mount{
			{Prefix: "/", Router: views},
			{Prefix: "/api/v1/tours", Router: tours},
			{Prefix: "/api/v1/users", Router: users},
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f.p = p
	return f
}

func (f *fixture) do(r *http.Request) *httptest.ResponseRecorder {
	if r.RemoteAddr == "" {
		r.RemoteAddr = "192.0.2.10:40000"
	}
	rec := httptest.NewRecorder()
	f.p.ServeHTTP(rec, r)
	return rec
}

func (f *fixture) get(target string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, target, http.NoBody))
}

func (f *fixture) hitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hits)
}

func lastErr(t *testing.T, e *plainErrors) error {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		t.Fatal("error handler never ran")
	}
	return e.errs[len(e.errs)-1]
}

var errBoom = errors.New("boom")
