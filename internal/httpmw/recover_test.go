package httpmw

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stackTracer interface{ StackPCs() []uintptr }

func TestRecover_LogsErrorWithStack(t *testing.T) {
	L := newMemLogger()
	panics := 0
	boom := errors.New("template cache corrupted")
	h := Recover(L, func() { panics++ })(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(boom)
	}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/tour/the-sea-explorer", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Internal Server Error") {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if panics != 1 {
		t.Fatalf("onPanic called %d times", panics)
	}

	e := L.only(t)
	if e.level != "error" || e.msg != "httpserver panic recovered" {
		t.Fatalf("entry = %+v", e)
	}
	if !errors.Is(e.err, boom) {
		t.Fatalf("logged err = %v, want wrapped %v", e.err, boom)
	}
	var st stackTracer
	if !errors.As(e.err, &st) || len(st.StackPCs()) == 0 {
		t.Fatal("logged error carries no stack")
	}
	if got, _ := e.field("url.path"); got != "/tour/the-sea-explorer" {
		t.Fatalf("url.path = %v", got)
	}
}

func TestRecover_NonErrorValue(t *testing.T) {
	L := newMemLogger()
	h := Recover(L, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(42)
	}))

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/tours", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if e := L.only(t); e.err == nil || e.err.Error() != "42" {
		t.Fatalf("err = %v, want 42", e.err)
	}
}

func TestRecover_AbortHandlerPropagates(t *testing.T) {
	L := newMemLogger()
	panics := 0
	h := Recover(L, func() { panics++ })(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Fatalf("recovered %v, want ErrAbortHandler", v)
		}
		if panics != 0 || len(L.all()) != 0 {
			t.Fatalf("abort counted as a panic: %d calls, %d entries", panics, len(L.all()))
		}
	}()
	serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil))
	t.Fatal("ErrAbortHandler was swallowed")
}

func TestRecover_PassThrough(t *testing.T) {
	h := Recover(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	if rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/reviews", nil)); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}
