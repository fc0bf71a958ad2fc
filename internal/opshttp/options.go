package opshttp

import (
	"net/http"

	"github.com/keithlinneman/tours-api/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// AllowPublic skips the private-network check. Tests and local runs only.
	AllowPublic  bool
	UseRecoverMW bool
	OnPanic      func() // called for every recovered panic, e.g. to bump a counter
}
