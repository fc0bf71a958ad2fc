package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"testing"
)

func stackContains(pcs []uintptr, substr string) bool {
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		if strings.Contains(fr.Function, substr) {
			return true
		}
		if !more {
			break
		}
	}
	return false
}

func TestNew_Fields(t *testing.T) {
	err := New("Can't find /nope", http.StatusNotFound)

	if err.Error() != "Can't find /nope" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if err.Message() != "Can't find /nope" {
		t.Fatalf("Message() = %q", err.Message())
	}
	if err.StatusCode() != http.StatusNotFound {
		t.Fatalf("StatusCode() = %d, want 404", err.StatusCode())
	}
	if err.Status() != StatusFail {
		t.Fatalf("Status() = %q, want fail", err.Status())
	}
	if !err.Operational() {
		t.Fatal("Operational() = false")
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[int]string{
		400: StatusFail,
		404: StatusFail,
		429: StatusFail,
		499: StatusFail,
		500: StatusError,
		503: StatusError,
		302: StatusError,
	}
	for code, want := range cases {
		if got := StatusFor(code); got != want {
			t.Errorf("StatusFor(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestNew_CapturesCaller(t *testing.T) {
	err := New("boom", http.StatusBadRequest)
	if !stackContains(err.StackPCs(), "TestNew_CapturesCaller") {
		t.Fatal("stack should contain calling function")
	}
}

func TestNewf_FormatsMessage(t *testing.T) {
	err := Newf(http.StatusTooManyRequests, "slow down %s", "please")
	if err.Message() != "slow down please" {
		t.Fatalf("Message() = %q", err.Message())
	}
	if err.Status() != StatusFail {
		t.Fatalf("Status() = %q", err.Status())
	}
}

func TestFromCause_KeepsCauseHidesMessage(t *testing.T) {
	cause := errors.New("E11000 duplicate key error collection: tours index: name_1")
	err := FromCause(cause, "Duplicate field value", http.StatusBadRequest)

	if err.Error() != "Duplicate field value" {
		t.Fatalf("Error() leaked cause: %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should find cause")
	}
}

func TestAs_FindsWrapped(t *testing.T) {
	inner := NotFound("No tour found with that ID")
	wrapped := fmt.Errorf("get tour: %w", inner)

	got, ok := As(wrapped)
	if !ok {
		t.Fatal("As should find *Error in chain")
	}
	if got != inner {
		t.Fatal("As returned a different *Error")
	}
	if !IsOperational(wrapped) {
		t.Fatal("IsOperational = false for wrapped *Error")
	}
}

func TestAs_PlainErrorIsDefect(t *testing.T) {
	if _, ok := As(errors.New("nil pointer")); ok {
		t.Fatal("plain error should not be operational")
	}
	if IsOperational(nil) {
		t.Fatal("nil should not be operational")
	}
}

func TestHelpers_StatusCodes(t *testing.T) {
	cases := []struct {
		err  *Error
		code int
	}{
		{BadRequest("bad %d", 1), http.StatusBadRequest},
		{Unauthorized("who"), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{NotFound("gone %s", "x"), http.StatusNotFound},
	}
	for _, c := range cases {
		if c.err.StatusCode() != c.code {
			t.Errorf("%q: code = %d, want %d", c.err.Message(), c.err.StatusCode(), c.code)
		}
		if c.err.Status() != StatusFail {
			t.Errorf("%q: status = %q, want fail", c.err.Message(), c.err.Status())
		}
		if len(c.err.StackPCs()) == 0 {
			t.Errorf("%q: missing stack", c.err.Message())
		}
	}
}

func TestTooManyRequests(t *testing.T) {
	err := TooManyRequests("Too many request from this IP, please try again in a hour")
	if err.StatusCode() != http.StatusTooManyRequests || err.Status() != StatusFail {
		t.Fatalf("got %d/%s", err.StatusCode(), err.Status())
	}
}

func TestDefect_StaysDefect(t *testing.T) {
	if Defect(nil) != nil {
		t.Fatal("Defect(nil) should be nil")
	}
	err := Defect(errors.New("index out of range"))
	if IsOperational(err) {
		t.Fatal("Defect should not be operational")
	}
	var hs interface{ StackPCs() []uintptr }
	if !errors.As(err, &hs) || !stackContains(hs.StackPCs(), "TestDefect_StaysDefect") {
		t.Fatal("Defect should capture the caller's stack")
	}
}
