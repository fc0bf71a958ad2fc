package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/httpmw"
	"github.com/keithlinneman/tours-api/internal/pipeline"
)

// Message is the client-facing rejection text.
const Message = "Too many request from this IP, please try again in a hour"

// visitor tracks a single client's window and last activity
type visitor struct {
	// limiter holds the window's budget; it never refills, a new window
	// replaces it
	limiter     *rate.Limiter
	windowStart time.Time
	lastSeen    time.Time
	// logged tracks whether we have already emitted the first-denial log
	// for the current window
	logged bool
}

// Decision is the result of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// IPLimiter holds per-client rate limiters with background eviction
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	max    int
	window time.Duration

	// ttl controls how long an idle client stays in the map before cleanup
	// evicts it. Never shorter than window, so eviction only drops expired
	// windows.
	ttl         time.Duration
	maxVisitors int
	now         func() time.Time

	// OnFirstDenied is called once per visitor when they first get limited
	OnFirstDenied func(ip string)

	// OnDenied is called on every denied request
	OnDenied func(ip string)

	// OnCapacity is called when a new client is refused because the visitor
	// map is full
	OnCapacity func()
}

type Option func(*IPLimiter)

// WithWindow allows max requests per client per window.
func WithWindow(max int, window time.Duration) Option {
	return func(l *IPLimiter) {
		l.max = max
		l.window = window
	}
}

// WithTTL controls how long an idle client stays in the map before cleanup
func WithTTL(d time.Duration) Option {
	return func(l *IPLimiter) {
		l.ttl = d
	}
}

// WithMaxVisitors caps the number of tracked clients.
func WithMaxVisitors(n int) Option {
	return func(l *IPLimiter) {
		l.maxVisitors = n
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *IPLimiter) {
		l.now = now
	}
}

// WithOnFirstDenied sets a callback for the first denial per visitor, used for logging.
// Separate from OnDenied so we log once but count every denial.
func WithOnFirstDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) {
		l.OnFirstDenied = fn
	}
}

// WithOnDenied sets a callback for every denied request
func WithOnDenied(fn func(ip string)) Option {
	return func(l *IPLimiter) {
		l.OnDenied = fn
	}
}

// WithOnCapacity sets a callback for refusals caused by a full visitor map.
func WithOnCapacity(fn func()) Option {
	return func(l *IPLimiter) {
		l.OnCapacity = fn
	}
}

// New creates an IPLimiter and starts the background cleanup goroutine,
// which stops when ctx is done.
func New(ctx context.Context, opts ...Option) *IPLimiter {
	l := &IPLimiter{
		visitors:    make(map[string]*visitor),
		max:         500,
		window:      time.Hour,
		maxVisitors: 100_000,
		now:         time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	if l.max < 1 {
		l.max = 1
	}
	if l.window <= 0 {
		l.window = time.Hour
	}
	if l.ttl < l.window {
		l.ttl = l.window
	}
	go l.cleanup(ctx)
	return l
}

// newWindow starts a fixed window for v at now with a full budget.
func (l *IPLimiter) newWindow(v *visitor, now time.Time) {
	v.limiter = rate.NewLimiter(0, l.max)
	v.windowStart = now
	v.logged = false
}

// Allow counts one request for ip against its current window. A client gets
// at most max requests per window, however they are paced; the window opens
// on the client's first request and a fresh one starts once it has elapsed.
// The visitor is only touched under the mutex, so concurrent requests from
// one client cannot undercount.
func (l *IPLimiter) Allow(ip string) Decision {
	now := l.now()

	l.mu.Lock()
	v, exists := l.visitors[ip]
	if !exists {
		if l.maxVisitors > 0 && len(l.visitors) >= l.maxVisitors {
			l.mu.Unlock()
			if l.OnCapacity != nil {
				l.OnCapacity()
			}
			if l.OnDenied != nil {
				l.OnDenied(ip)
			}
			return Decision{Limit: l.max, RetryAfter: l.window}
		}
		v = &visitor{}
		l.newWindow(v, now)
		l.visitors[ip] = v
	} else if now.Sub(v.windowStart) >= l.window {
		l.newWindow(v, now)
	}
	v.lastSeen = now
	allowed := v.limiter.AllowN(now, 1)
	tokens := v.limiter.TokensAt(now)
	resetIn := v.windowStart.Add(l.window).Sub(now)
	firstDenial := !allowed && !v.logged
	if firstDenial {
		v.logged = true
	}
	l.mu.Unlock()

	d := Decision{Allowed: allowed, Limit: l.max, Remaining: int(math.Max(0, math.Floor(tokens)))}
	if !allowed {
		d.RetryAfter = resetIn
		// hooks run without the lock held; they may log or touch metrics
		if firstDenial && l.OnFirstDenied != nil {
			l.OnFirstDenied(ip)
		}
		if l.OnDenied != nil {
			l.OnDenied(ip)
		}
	}
	return d
}

// Visitors returns the number of tracked clients.
func (l *IPLimiter) Visitors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// cleanup periodically evicts visitors that haven't been seen within the TTL.
func (l *IPLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(l.now())
		}
	}
}

func (l *IPLimiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, ip)
		}
	}
}

// Stage returns a pipeline stage that limits requests whose path is prefix
// or below it. Other paths continue untouched. Rejections fail with a typed
// 429 so the error handler formats them like any other error.
func (l *IPLimiter) Stage(prefix string) pipeline.Stage {
	prefix = strings.TrimSuffix(prefix, "/")
	return pipeline.Stage{
		Name: "ratelimit",
		Run: func(w http.ResponseWriter, r *http.Request) pipeline.Outcome {
			if !underPrefix(r.URL.Path, prefix) {
				return pipeline.Next(r)
			}
			d := l.Allow(clientIP(r))
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				return pipeline.Fail(apperr.TooManyRequests(Message))
			}
			return pipeline.Next(r)
		},
	}
}

// underPrefix matches prefix on a path segment boundary: "/api" matches
// "/api" and "/api/x" but not "/apix".
func underPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// clientIP prefers the address resolved by httpmw.ClientIP and falls back to
// the connection's peer address.
func clientIP(r *http.Request) string {
	if ip := httpmw.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
