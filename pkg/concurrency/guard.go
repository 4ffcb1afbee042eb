package concurrency

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var ErrBusy = errors.New("another task is already running")

// ConcurrencyGuard runs at most one task at a time and rejects the rest.
type ConcurrencyGuard struct {
	sem  *semaphore.Weighted
	busy atomic.Bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{sem: semaphore.NewWeighted(1)}
}

func (g *ConcurrencyGuard) acquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.busy.Store(true)
	return true
}

func (g *ConcurrencyGuard) release() {
	g.busy.Store(false)
	g.sem.Release(1)
}

func (g *ConcurrencyGuard) Execute(task func() error) error {
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task()
}

// ExecuteWithContext is Execute for tasks that honor cancellation. A context
// that is already done is reported without running the task.
func (g *ConcurrencyGuard) ExecuteWithContext(ctx context.Context, task func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.acquire() {
		return ErrBusy
	}
	defer g.release()
	return task(ctx)
}

// Busy reports whether a task is running.
func (g *ConcurrencyGuard) Busy() bool {
	return g.busy.Load()
}
