// Package dispatch runs background tasks that must outlive the request that
// started them.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
)

var (
	// ErrClosed is returned by Go after Shutdown has started.
	ErrClosed = errors.New("dispatch pool is closed")
	// ErrOverloaded is returned by Go when every worker is busy and the wait queue is full.
	ErrOverloaded = errors.New("dispatch pool is overloaded")
)

// Task is a unit of background work. The context it receives is detached from
// the submitter's cancellation and bounded by the pool's task timeout.
type Task func(ctx context.Context)

type options struct {
	taskTimeout time.Duration
	maxWaiting  int
	logger      *slog.Logger
}

// Option configures a Pool.
type Option func(*options)

// WithTaskTimeout bounds every task. Zero disables the bound.
func WithTaskTimeout(d time.Duration) Option {
	return func(o *options) { o.taskTimeout = d }
}

// WithMaxWaiting caps how many submissions may wait for a free worker.
func WithMaxWaiting(n int) Option {
	return func(o *options) { o.maxWaiting = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Pool is a fixed-size worker pool on top of ants.
type Pool struct {
	pool   *ants.Pool
	opts   options
	wg     sync.WaitGroup
	closed atomic.Bool
	mu     sync.RWMutex
}

func New(size int, opts ...Option) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}
	o := options{maxWaiting: 1024, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool{opts: o}
	pool, err := ants.NewPool(size,
		ants.WithMaxBlockingTasks(o.maxWaiting),
		ants.WithPanicHandler(p.onPanic),
		ants.WithLogger(slogAdapter{o.logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Go schedules task. The caller may return, and ctx may be cancelled, without
// affecting the task once Go has returned nil.
func (p *Pool) Go(ctx context.Context, name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return ErrClosed
	}

	detached := context.WithoutCancel(ctx)
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		taskCtx, cancel := p.taskContext(detached)
		defer cancel()
		task(taskCtx)
	})
	if err != nil {
		p.wg.Done()
		switch {
		case errors.Is(err, ants.ErrPoolOverload):
			return fmt.Errorf("%w: %s", ErrOverloaded, name)
		case errors.Is(err, ants.ErrPoolClosed):
			return ErrClosed
		}
		return fmt.Errorf("failed to submit %s: %w", name, err)
	}
	return nil
}

func (p *Pool) taskContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.taskTimeout > 0 {
		return context.WithTimeout(ctx, p.opts.taskTimeout)
	}
	return context.WithCancel(ctx)
}

// Running reports how many tasks are executing right now.
func (p *Pool) Running() int { return p.pool.Running() }

// Waiting reports how many submissions are blocked waiting for a worker.
func (p *Pool) Waiting() int { return p.pool.Waiting() }

// Shutdown stops accepting tasks and waits for submitted ones to finish or
// for ctx to end, whichever comes first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	alreadyClosed := p.closed.Swap(true)
	p.mu.Unlock()
	if alreadyClosed {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("shutdown interrupted with %d tasks still running: %w", p.pool.Running(), ctx.Err())
	}
	p.pool.Release()
	return err
}

func (p *Pool) onPanic(v any) {
	p.opts.logger.Error("CRITICAL: Background task panicked", "panic", v, "stack", string(debug.Stack()))
}

type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Printf(format string, args ...any) {
	a.l.Warn(fmt.Sprintf(format, args...), "component", "ants")
}
