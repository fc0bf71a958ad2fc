package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/httpmw"
	"github.com/keithlinneman/tours-api/internal/log"
)

// NewHandler wraps the request pipeline in the transport middleware.
// main() owns *http.Server so it can do graceful shutdown
func NewHandler(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	h := opts.Handler
	if h == nil {
		h = http.NotFoundHandler()
	}

	var compress func(http.Handler) http.Handler
	if !opts.DisableCompression {
		// Compress text responses (HTML/CSS/JS/JSON/SVG)
		compress = middleware.Compress(5,
			"text/html",
			"text/css",
			"text/plain",
			"application/javascript",
			"text/javascript",
			"application/json",
			"image/svg+xml",
		)
	}

	// Decide which requests get traced
	shouldTrace := func(p string) bool {
		// dont trace favicon/robots.txt
		if p == "/favicon.ico" || p == "/robots.txt" {
			return false
		}
		// dont trace static asset extensions
		switch strings.ToLower(path.Ext(p)) {
		case ".css", ".js", ".png", ".jpg", ".jpeg", ".webp", ".svg", ".ico", ".woff", ".woff2", ".map":
			return false
		}
		return true
	}

	trace := func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			"http.server",
			otelhttp.WithFilter(func(r *http.Request) bool {
				return shouldTrace(r.URL.Path)
			}),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				// AnnotateHTTPRoute renames the span to the final route pattern
				return r.Method + " " + r.URL.Path
			}),
			otelhttp.WithPublicEndpointFn(func(r *http.Request) bool { return true }),
		)
	}

	var recoverMW func(http.Handler) http.Handler
	if opts.UseRecoverMW {
		recoverMW = httpmw.Recover(opts.Logger, opts.OnPanic)
	}

	// outermost first
	return httpmw.Chain(h,
		// Recovery middleware to log panics and serve 500 response
		recoverMW,
		// Request ID (outer so everything downstream sees it)
		httpmw.RequestID("X-Request-Id"),
		// Client IP resolution (before the rate limit stage and logging)
		httpmw.ClientIPWithOptions(opts.ClientIPOpts),
		trace,
		// add trace-id headers to any requests with a recording trace
		httpmw.TraceResponseHeaders(httpmw.TraceIDHeader, httpmw.SpanIDHeader),
		// shared route context that mounted routers record their pattern in
		httpmw.RouteContext,
		opts.MetricsMW,
		// Request-scoped logging (inner so it sees trace_id, etc)
		httpmw.WithLogger(opts.Logger),
		httpmw.AnnotateHTTPRoute,
		compress,
	)
}

// Server timeout defaults, shared with opshttp.
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 60 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20 // 1 MB
)

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// Start public HTTP server
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	port := opts.Port
	if port == 0 {
		port = 3000
	}
	addr := fmt.Sprintf(":%d", port)

	srv := NewServer(addr, NewHandler(opts))

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, apperr.EnsureTrace(err)
	}

	go func() {
		opts.Logger.Info(ctx, "http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			opts.Logger.Error(ctx, err, "http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			opts.Logger.Info(sctx, "http server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}
