// Package reqctx holds per-request values written by pipeline stages and
// read by routers.
package reqctx

import (
	"context"
	"net/http"
	"time"
)

type (
	timeKey    struct{}
	bodyKey    struct{}
	cookiesKey struct{}
)

// WithRequestTime records when the request entered the router phase.
func WithRequestTime(r *http.Request, t time.Time) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), timeKey{}, t))
}

// RequestTime returns the stamped time, or the zero time if unset.
func RequestTime(ctx context.Context) time.Time {
	t, _ := ctx.Value(timeKey{}).(time.Time)
	return t
}

// WithBody stores the decoded request body.
func WithBody(r *http.Request, body map[string]any) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), bodyKey{}, body))
}

// Body returns the decoded body. It is never nil once the body stage ran.
func Body(ctx context.Context) map[string]any {
	b, _ := ctx.Value(bodyKey{}).(map[string]any)
	return b
}

// WithCookies stores parsed cookies as name to value.
func WithCookies(r *http.Request, c map[string]string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), cookiesKey{}, c))
}

func Cookies(ctx context.Context) map[string]string {
	c, _ := ctx.Value(cookiesKey{}).(map[string]string)
	return c
}

// Cookie returns a single cookie value.
func Cookie(ctx context.Context, name string) (string, bool) {
	v, ok := Cookies(ctx)[name]
	return v, ok
}
