package pipeline

import (
	"fmt"
	"net/http"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/log"
)

// Stage is one named step of a pipeline.
type Stage struct {
	Name string
	Run  func(w http.ResponseWriter, r *http.Request) Outcome
}

// ErrorHandler turns a failure into the client response. It is the only
// place error responses are written.
type ErrorHandler interface {
	ServeError(w http.ResponseWriter, r *http.Request, err error)
}

type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)

func (f ErrorHandlerFunc) ServeError(w http.ResponseWriter, r *http.Request, err error) {
	f(w, r, err)
}

// Pipeline is an immutable, ordered list of stages.
type Pipeline struct {
	stages  []Stage
	onError ErrorHandler
}

// New copies stages; later changes to the caller's slice have no effect.
// Stages with a nil Run are skipped.
func New(onError ErrorHandler, stages ...Stage) *Pipeline {
	if onError == nil {
		panic("pipeline: nil error handler")
	}
	cp := make([]Stage, 0, len(stages))
	for _, s := range stages {
		if s.Run != nil {
			cp = append(cp, s)
		}
	}
	return &Pipeline{stages: cp, onError: onError}
}

// Names returns stage names in execution order.
func (p *Pipeline) Names() []string {
	out := make([]string, len(p.stages))
	for i, s := range p.stages {
		out[i] = s.Name
	}
	return out
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tw := &trackingWriter{ResponseWriter: w}
	var cur http.ResponseWriter = tw
	var finals []func()

	defer func() {
		for i := len(finals) - 1; i >= 0; i-- {
			finals[i]()
		}
	}()

	for _, s := range p.stages {
		out, perr := runStage(s, cur, r)
		if perr != nil {
			p.fail(tw, cur, r, perr, s.Name)
			return
		}
		if out.finally != nil {
			finals = append(finals, out.finally)
		}

		switch out.kind {
		case kindNext:
			if out.req != nil {
				r = out.req
			}
			// a substituted writer must write through to cur
			if out.w != nil {
				cur = out.w
			}
		case kindRespond:
			if out.h == nil {
				p.fail(tw, cur, r, apperr.Errorf("stage %s responded with a nil handler", s.Name), s.Name)
				return
			}
			if perr := serveRecover(out.h, cur, r); perr != nil {
				p.fail(tw, cur, r, perr, s.Name)
			}
			return
		case kindFail:
			err := out.err
			if err == nil {
				err = apperr.Errorf("stage %s failed with a nil error", s.Name)
			}
			p.fail(tw, cur, r, err, s.Name)
			return
		default:
			p.fail(tw, cur, r, apperr.Errorf("stage %s returned an invalid outcome", s.Name), s.Name)
			return
		}
	}

	p.fail(tw, cur, r, apperr.NotFound("Can't find %s", r.URL.RequestURI()), "")
}

// fail hands err to the error handler once. If the response has already
// started there is nothing sane left to send, so the error is only logged.
func (p *Pipeline) fail(tw *trackingWriter, w http.ResponseWriter, r *http.Request, err error, stage string) {
	if tw.started {
		log.FromContext(r.Context()).Error(r.Context(), err, "failure after response started", "stage", stage)
		return
	}
	if perr := serveErrorRecover(p.onError, w, r, err); perr != nil {
		log.FromContext(r.Context()).Error(r.Context(), perr, "error handler panicked", "stage", stage)
		if !tw.started {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

type panicError struct {
	value any
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// PanicValue returns the recovered value if err came from a panic.
func PanicValue(err error) (any, bool) {
	for e := err; e != nil; {
		if pe, ok := e.(*panicError); ok {
			return pe.value, true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return nil, false
}

func recovered(v any) error {
	if v == http.ErrAbortHandler {
		panic(v)
	}
	return apperr.Defect(&panicError{value: v})
}

func runStage(s Stage, w http.ResponseWriter, r *http.Request) (out Outcome, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = recovered(v)
		}
	}()
	return s.Run(w, r), nil
}

func serveRecover(h http.Handler, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = recovered(v)
		}
	}()
	h.ServeHTTP(w, r)
	return nil
}

func serveErrorRecover(h ErrorHandler, w http.ResponseWriter, r *http.Request, e error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = recovered(v)
		}
	}()
	h.ServeError(w, r, e)
	return nil
}
