package pipeline

import "net/http"

type kind uint8

const (
	kindNext kind = iota + 1
	kindRespond
	kindFail
)

// Outcome is the tagged result of running a stage. The zero value is not
// valid; stages build one with Next, Respond or Fail.
type Outcome struct {
	kind    kind
	req     *http.Request
	w       http.ResponseWriter
	h       http.Handler
	err     error
	finally func()
}

// Next continues with r. A nil r keeps the current request.
func Next(r *http.Request) Outcome { return Outcome{kind: kindNext, req: r} }

// Respond ends the pipeline; h writes the response.
func Respond(h http.Handler) Outcome { return Outcome{kind: kindRespond, h: h} }

// Fail ends the pipeline and sends err to the error handler.
func Fail(err error) Outcome { return Outcome{kind: kindFail, err: err} }

// WithWriter replaces the response writer seen by later stages. Only
// meaningful on Next.
func (o Outcome) WithWriter(w http.ResponseWriter) Outcome {
	o.w = w
	return o
}

// Finally registers fn to run once the request has its terminal outcome.
// Callbacks run in reverse registration order.
func (o Outcome) Finally(fn func()) Outcome {
	o.finally = fn
	return o
}

func (o Outcome) String() string {
	switch o.kind {
	case kindNext:
		return "next"
	case kindRespond:
		return "respond"
	case kindFail:
		return "fail"
	default:
		return "invalid"
	}
}
