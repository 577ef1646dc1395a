package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vladimiradmaev/dish-journal/internal/logger"
)

// Runner executes slow work after the triggering request has returned.
// Failures are reported to the log only.
type Runner interface {
	Go(ctx context.Context, name string, fn func(ctx context.Context) error, fields ...any)
}

// TaskObserver is told how each background task ended.
type TaskObserver interface {
	ObserveTask(task string, err error, d time.Duration)
}

// TaskRunner runs each task on its own goroutine with a context that outlives
// the request.
type TaskRunner struct {
	wg       sync.WaitGroup
	observer TaskObserver
}

// NewTaskRunner creates a runner. observer may be nil.
func NewTaskRunner(observer TaskObserver) *TaskRunner {
	return &TaskRunner{observer: observer}
}

func (r *TaskRunner) Go(ctx context.Context, name string, fn func(ctx context.Context) error, fields ...any) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		start := time.Now()
		err := runTask(ctx, fn)
		if r.observer != nil {
			r.observer.ObserveTask(name, err, time.Since(start))
		}
		if err != nil {
			logTaskFailure(ctx, name, err, fields)
		}
	}()
}

// Wait blocks until every scheduled task has finished or ctx is done.
func (r *TaskRunner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InlineRunner runs tasks synchronously and keeps their errors. Tests use it
// to observe state transitions deterministically.
type InlineRunner struct {
	mu     sync.Mutex
	Errors []error
}

func (r *InlineRunner) Go(ctx context.Context, name string, fn func(ctx context.Context) error, fields ...any) {
	ctx = context.WithoutCancel(ctx)
	if err := runTask(ctx, fn); err != nil {
		logTaskFailure(ctx, name, err, fields)
		r.mu.Lock()
		r.Errors = append(r.Errors, err)
		r.mu.Unlock()
	}
}

func runTask(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx)
}

func logTaskFailure(ctx context.Context, name string, err error, fields []any) {
	args := append([]any{"task", name}, fields...)
	args = append(args, "error", err)
	logger.FromContext(ctx).Error("Background task failed", args...)
}
