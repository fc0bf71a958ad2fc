package routine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/keithlinneman/tours-api/internal/apperr"
	"github.com/keithlinneman/tours-api/internal/log"
)

// DefaultMaxTasks is used when Options.MaxTasks is not positive.
const DefaultMaxTasks = 10

// Failure describes one unhandled background failure.
type Failure struct {
	Task string
	Err  error
	// Panicked is set when the task panicked instead of returning.
	Panicked bool
}

func (f Failure) Error() string {
	return fmt.Sprintf("task %s: %v", f.Task, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

type Options struct {
	Logger      log.Logger
	MaxTasks    int
	OnUnhandled func(Failure)
}

// Manager runs tasks in goroutines with bounded concurrency.
type Manager struct {
	logger      log.Logger
	onUnhandled func(Failure)

	wg   sync.WaitGroup
	sema chan struct{}

	mu   sync.Mutex
	errs []error
}

func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.MaxTasks < 1 {
		opts.MaxTasks = DefaultMaxTasks
	}
	return &Manager{
		logger:      opts.Logger,
		onUnhandled: opts.OnUnhandled,
		sema:        make(chan struct{}, opts.MaxTasks),
	}
}

// Go runs fn in a goroutine once a slot is free. It returns false when ctx
// ends before the task could start.
func (m *Manager) Go(ctx context.Context, name string, fn func(ctx context.Context) error) bool {
	select {
	case m.sema <- struct{}{}:
	case <-ctx.Done():
		m.logger.Warn(ctx, "background task canceled before start", "task", name, "reason", ctx.Err())
		return false
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() { <-m.sema }()

		if err := m.run(ctx, fn); err != nil {
			var p *panicError
			m.fail(ctx, Failure{Task: name, Err: err, Panicked: errors.As(err, &p)})
		}
	}()
	return true
}

func (m *Manager) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = apperr.WithStack(&panicError{value: rec})
		}
	}()
	return fn(ctx)
}

func (m *Manager) fail(ctx context.Context, f Failure) {
	m.mu.Lock()
	m.errs = append(m.errs, f)
	m.mu.Unlock()

	// context.Canceled from a task during shutdown is not a failure worth
	// acting on.
	if errors.Is(f.Err, context.Canceled) && ctx.Err() != nil {
		m.logger.Debug(ctx, "background task stopped", "task", f.Task)
		return
	}

	m.logger.Error(ctx, apperr.EnsureTrace(f.Err), "unhandled background failure",
		"task", f.Task,
		"panicked", f.Panicked,
	)
	if m.onUnhandled != nil {
		m.onUnhandled(f)
	}
}

// Wait blocks until every started task returns and joins their failures.
func (m *Manager) Wait() error {
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.errs...)
}

type panicError struct{ value any }

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }
