package httpmw

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// StatusRecorder wraps a ResponseWriter and records the first status code
// and the body size. Access logs and request metrics read it after the
// handler returns.
type StatusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w}
}

// Status is the code sent, 200 when the handler never wrote.
func (rw *StatusRecorder) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

// Written reports whether a status line has gone out.
func (rw *StatusRecorder) Written() bool { return rw.status != 0 }

func (rw *StatusRecorder) Bytes() int64 { return rw.bytes }

func (rw *StatusRecorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *StatusRecorder) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *StatusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func (rw *StatusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("httpmw: underlying ResponseWriter cannot hijack")
	}
	return h.Hijack()
}
