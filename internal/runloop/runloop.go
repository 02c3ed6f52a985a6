// Package runloop provides the single-owner task context for the
// daemon. All selection backend and frontend access happens as tasks on
// one goroutine, executed strictly in enqueue order; other goroutines
// hand work over with Enqueue (fire-and-forget) or Do (bounded wait).
package runloop

import (
	"context"
	"log/slog"
	"time"
)

// DefaultQueueSize bounds the number of tasks waiting to run.
const DefaultQueueSize = 1024

// Task is a unit of work executed on the loop goroutine.
type Task func()

type Loop struct {
	tasks chan Task
}

func New() *Loop {
	return NewSize(DefaultQueueSize)
}

func NewSize(queueSize int) *Loop {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Loop{tasks: make(chan Task, queueSize)}
}

// Run executes queued tasks in order until ctx is cancelled. A panic in
// a task is recovered and logged; the loop keeps running.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-l.tasks:
			l.runTask(task)
		}
	}
}

func (l *Loop) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("run loop task panicked", "panic", r)
		}
	}()
	task()
}

// Enqueue appends a task without blocking. When the queue is full the
// task is dropped and Enqueue reports false.
func (l *Loop) Enqueue(task Task) bool {
	select {
	case l.tasks <- task:
		return true
	default:
		slog.Warn("run loop queue full, dropping task")
		return false
	}
}

// Do enqueues a task and waits up to timeout for it to finish. It
// reports whether the task completed within the bound. After a false
// return the task may still execute later, so anything the task writes
// is only safe to read when Do reports true.
func (l *Loop) Do(task Task, timeout time.Duration) bool {
	done := make(chan struct{})
	if !l.Enqueue(func() {
		defer close(done)
		task()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
