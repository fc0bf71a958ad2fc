package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	StatusFail  = "fail"
	StatusError = "error"
)

// Error is an expected, user-facing failure. It is never mutated after
// construction.
type Error struct {
	message    string
	statusCode int
	status     string
	cause      error
	pcs        []uintptr
}

// New returns an operational error with the given client-safe message and
// HTTP status code.
func New(message string, statusCode int) *Error {
	return &Error{
		message:    message,
		statusCode: statusCode,
		status:     StatusFor(statusCode),
		pcs:        captureStack(1),
	}
}

// Newf is New with a formatted message.
func Newf(statusCode int, format string, args ...any) *Error {
	return &Error{
		message:    fmt.Sprintf(format, args...),
		statusCode: statusCode,
		status:     StatusFor(statusCode),
		pcs:        captureStack(1),
	}
}

// FromCause turns a lower-level error into an operational one. The cause is
// kept for logs and errors.Is/As but never shown to clients.
func FromCause(cause error, message string, statusCode int) *Error {
	return &Error{
		message:    message,
		statusCode: statusCode,
		status:     StatusFor(statusCode),
		cause:      cause,
		pcs:        captureStack(1),
	}
}

// StatusFor classifies an HTTP status code: "fail" for 4xx, "error" otherwise.
func StatusFor(code int) string {
	if code >= 400 && code < 500 {
		return StatusFail
	}
	return StatusError
}

func (e *Error) Error() string       { return e.message }
func (e *Error) Unwrap() error       { return e.cause }
func (e *Error) StackPCs() []uintptr { return e.pcs }

func (e *Error) Message() string { return e.message }
func (e *Error) StatusCode() int { return e.statusCode }
func (e *Error) Status() string  { return e.status }

// Operational is always true for *Error; defects are plain errors.
func (e *Error) Operational() bool { return true }

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		return ae, true
	}
	return nil, false
}

// IsOperational reports whether err carries an *Error.
func IsOperational(err error) bool {
	_, ok := As(err)
	return ok
}

func BadRequest(format string, args ...any) *Error {
	return &Error{message: fmt.Sprintf(format, args...), statusCode: http.StatusBadRequest, status: StatusFail, pcs: captureStack(1)}
}

func Unauthorized(message string) *Error {
	return &Error{message: message, statusCode: http.StatusUnauthorized, status: StatusFail, pcs: captureStack(1)}
}

func Forbidden(message string) *Error {
	return &Error{message: message, statusCode: http.StatusForbidden, status: StatusFail, pcs: captureStack(1)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{message: fmt.Sprintf(format, args...), statusCode: http.StatusNotFound, status: StatusFail, pcs: captureStack(1)}
}

func TooManyRequests(message string) *Error {
	return &Error{message: message, statusCode: http.StatusTooManyRequests, status: StatusFail, pcs: captureStack(1)}
}

// Defect attaches a stack to a programming error so the error handler can
// log where it came from. It does not change classification.
func Defect(err error) error {
	if err == nil {
		return nil
	}
	return &withStack{err: err, pcs: captureStack(1)}
}
