package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/keithlinneman/tours-api/internal/log"
)

type logEntry struct {
	level string
	msg   string
	err   error
	kv    []any
}

// memLogger records entries with the fields accumulated through With.
type memLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  []any
}

func newMemLogger() *memLogger {
	return &memLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *memLogger) With(kv ...any) log.Logger {
	return &memLogger{mu: l.mu, entries: l.entries, fields: append(slices.Clone(l.fields), kv...)}
}

func (l *memLogger) add(level, msg string, err error, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, err: err, kv: append(slices.Clone(l.fields), kv...)})
}

func (l *memLogger) Debug(_ context.Context, msg string, kv ...any) { l.add("debug", msg, nil, kv) }
func (l *memLogger) Info(_ context.Context, msg string, kv ...any)  { l.add("info", msg, nil, kv) }
func (l *memLogger) Warn(_ context.Context, msg string, kv ...any)  { l.add("warn", msg, nil, kv) }
func (l *memLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	l.add("error", msg, err, kv)
}
func (l *memLogger) Sync() error { return nil }

func (l *memLogger) all() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(*l.entries)
}

func (l *memLogger) only(t *testing.T) logEntry {
	t.Helper()
	got := l.all()
	if len(got) != 1 {
		t.Fatalf("logged %d entries, want 1: %+v", len(got), got)
	}
	return got[0]
}

// field returns the last value logged under key.
func (e logEntry) field(key string) (any, bool) {
	var v any
	found := false
	for i := 0; i+1 < len(e.kv); i += 2 {
		if k, _ := e.kv[i].(string); k == key {
			v, found = e.kv[i+1], true
		}
	}
	return v, found
}

// recordingSpan starts a sampled span; end() finishes it and returns what
// the recorder saw.
func recordingSpan(t *testing.T) (context.Context, func() sdktrace.ReadOnlySpan) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("httpmw").Start(context.Background(), "GET /api/v1/tours")
	return ctx, func() sdktrace.ReadOnlySpan {
		span.End()
		ended := sr.Ended()
		if len(ended) != 1 {
			t.Fatalf("ended spans = %d, want 1", len(ended))
		}
		return ended[0]
	}
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) (string, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

// serve runs h for one request and returns the recorder.
func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}
