package errorhttp

import (
	"net/http"
	"strings"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/httpjson"
	"github.com/keithlinneman/tours-api/internal/log"
)

const msgDefect = "Something went very wrong!"

// Renderer draws error pages for browser routes.
type Renderer interface {
	RenderError(w http.ResponseWriter, r *http.Request, status int, title, msg string) error
}

type Options struct {
	Production bool
	Logger     log.Logger

	// APIPrefix selects JSON responses. Other paths go to Pages when set.
	APIPrefix string
	Pages     Renderer

	// OnError observes every handled failure.
	OnError func(r *http.Request, status int, operational bool)
}

// Handler is the global error handler: the single place failures become
// responses.
type Handler struct {
	opts Options
}

type body struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func New(opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}
	return &Handler{opts: opts}
}

// ServeError implements pipeline.ErrorHandler.
func (h *Handler) ServeError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		err = apperr.Errorf("nil error passed to error handler")
	}
	ctx := r.Context()
	err = Translate(err)

	ae, operational := apperr.As(err)
	status, resp := http.StatusInternalServerError, body{Status: apperr.StatusError, Message: msgDefect}
	if operational {
		status = ae.StatusCode()
		resp = body{Status: ae.Status(), Message: ae.Message()}
	}

	L := log.FromContextOr(ctx, h.opts.Logger)
	switch {
	case !operational:
		L.Error(ctx, apperr.EnsureTrace(err), "unhandled request error")
	case status >= 500:
		L.Error(ctx, err, "request failed")
	default:
		L.Debug(ctx, "request failed", "http.response.status_code", status, "error", err.Error())
	}

	if h.opts.OnError != nil {
		h.opts.OnError(r, status, operational)
	}

	if !h.opts.Production {
		resp.Error = err.Error()
		resp.Stack = stackOf(err)
		if !operational {
			resp.Message = err.Error()
		}
	}

	if h.opts.Pages != nil && !onPrefix(r.URL.Path, h.opts.APIPrefix) {
		msg := resp.Message
		if h.opts.Production && !operational {
			msg = "Please try again later."
		}
		rerr := h.opts.Pages.RenderError(w, r, status, "Something went wrong!", msg)
		if rerr == nil {
			return
		}
		L.Error(ctx, apperr.WithStack(rerr), "render error page")
	}

	httpjson.Write(ctx, w, status, resp)
}

// Wrap adapts a handler that reports failures by returning them.
func (h *Handler) Wrap(fn func(w http.ResponseWriter, r *http.Request) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.ServeError(w, r, err)
		}
	})
}

func onPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
