package httpserver

import (
	"net/http"

	"github.com/keithlinneman/tours-api/internal/httpmw"
	"github.com/keithlinneman/tours-api/internal/log"
)

type Options struct {
	Logger log.Logger
	Port   int

	// Handler is the request pipeline. Everything the client sees comes
	// from it; the middleware here only adds transport concerns.
	Handler http.Handler

	UseRecoverMW bool
	OnPanic      func() // called for every recovered panic, e.g. to bump a counter
	MetricsMW    func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions

	// DisableCompression skips gzip/deflate of text responses.
	DisableCompression bool
}
