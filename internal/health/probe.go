package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/keithlinneman/tours-api/internal/apperr"
)

// Probe is evaluated at request time
// nil = OK non-nil = FAIL with reason.
type Probe interface{ Check(context.Context) error }

// CheckFunc adapts a function into a Probe.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed returns a probe that always returns ok or fails with the given reason
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return apperr.Errorf("%s", reason) }
}

// All is AND: passes only if all probes pass; returns the first error.
func All(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Pinger is anything that can check a remote dependency, e.g. *store.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DefaultPingTimeout bounds a single Ping probe.
const DefaultPingTimeout = 500 * time.Millisecond

// Ping fails when p is nil, when the ping errors, or when it takes longer
// than timeout. name prefixes the failure reason.
func Ping(name string, p func() Pinger, timeout time.Duration) CheckFunc {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	return func(ctx context.Context) error {
		var target Pinger
		if p != nil {
			target = p()
		}
		if target == nil {
			return apperr.Errorf("%s: not connected", name)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := target.Ping(ctx); err != nil {
			return apperr.Wrapf(err, "%s: ping failed", name)
		}
		return nil
	}
}

// ShutdownGate flips readiness to false during drain/shutdown.
type ShutdownGate struct {
	draining atomic.Bool
	reason   atomic.Value
}

func (g *ShutdownGate) Set(reason string) {
	g.draining.Store(true)
	g.reason.Store(reason)
}
func (g *ShutdownGate) Clear() {
	g.draining.Store(false)
	g.reason.Store("")
}

// Draining reports whether Set has been called since the last Clear.
func (g *ShutdownGate) Draining() bool { return g.draining.Load() }

func (g *ShutdownGate) Probe() CheckFunc {
	return func(context.Context) error {
		if !g.draining.Load() {
			return nil
		}
		r, _ := g.reason.Load().(string)
		if r == "" {
			r = "draining"
		}
		return apperr.Errorf("%s", r)
	}
}
