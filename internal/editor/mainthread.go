// Package editor implements the editor-side execution core: a control
// server speaking the bridge wire protocol, a command/resource dispatcher,
// and the single-threaded main-thread queue handlers execute on.
package editor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMainThreadTimeout is returned when the main-thread tick fails to drain
// a submitted task within the barrier.
var ErrMainThreadTimeout = errors.New("Timed out waiting for command execution on main thread")

// DefaultBarrier bounds how long the I/O thread waits for main-thread
// execution.
const DefaultBarrier = 5 * time.Second

type taskResult struct {
	value any
	err   error
}

type task struct {
	fn   func() (any, error)
	done chan taskResult
}

// MainThread marshals handler execution onto a single consumer drained by
// the editor's per-frame tick. Submitters block with a deadline; a result
// arriving after the deadline is discarded.
type MainThread struct {
	queue chan task
}

// NewMainThread constructs the queue.
func NewMainThread() *MainThread {
	return &MainThread{queue: make(chan task, 64)}
}

// Submit enqueues fn and waits up to timeout for its completion. On expiry
// the task may still run later; its orphaned result is swallowed by the
// buffered completion channel.
func (m *MainThread) Submit(fn func() (any, error), timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = DefaultBarrier
	}
	t := task{fn: fn, done: make(chan taskResult, 1)}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case m.queue <- t:
	case <-deadline.C:
		return nil, ErrMainThreadTimeout
	}
	select {
	case r := <-t.done:
		return r.value, r.err
	case <-deadline.C:
		return nil, ErrMainThreadTimeout
	}
}

// Tick drains every task queued so far, running each on the caller's
// goroutine. The editor calls this once per frame.
func (m *MainThread) Tick() {
	for {
		select {
		case t := <-m.queue:
			t.done <- runTask(t.fn)
		default:
			return
		}
	}
}

// Pump ticks at the given interval until ctx is canceled. It stands in for
// the editor frame loop in the standalone binary and in tests.
func (m *MainThread) Pump(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

func runTask(fn func() (any, error)) (res taskResult) {
	defer func() {
		if r := recover(); r != nil {
			res = taskResult{err: fmt.Errorf("handler panic: %v", r)}
		}
	}()
	v, err := fn()
	return taskResult{value: v, err: err}
}
