// Package eventloop runs tasks one at a time in FIFO order.
//
// Viewer components never block and never run in parallel: engine events,
// store notifications and deferred work are all tasks on one loop. "Next
// tick" means Post: a task posted now runs after everything already queued.
package eventloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Task is a unit of work run on the loop.
type Task = func()

// Loop is a single-consumer FIFO task queue.
type Loop struct {
	mu    sync.Mutex
	tasks []Task
	wake  chan struct{}

	logger *slog.Logger
}

// New creates an empty loop. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		tasks:  make([]Task, 0),
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Post appends a task to the queue. Safe to call from any goroutine.
func (l *Loop) Post(t Task) {
	if t == nil {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// pop removes and returns the first task, or nil if the queue is empty.
func (l *Loop) pop() Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil
	}
	t := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return t
}

// RunPending runs queued tasks on the calling goroutine until the queue is
// empty, including tasks posted while draining. It returns the number run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		t := l.pop()
		if t == nil {
			return n
		}
		l.run(t)
		n++
	}
}

// Run processes tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// run executes a task, keeping a panicking task from taking the loop down.
func (l *Loop) run(t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "error", fmt.Sprint(r))
		}
	}()
	t()
}
