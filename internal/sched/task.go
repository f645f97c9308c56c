// Package sched contains the timer-driven entry points of the engine:
// the foreground pollers, the background task, and the daily cleanup
// sweep.
package sched

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// TaskResult is the tri-state outcome of one background task run,
// consumed only for host bookkeeping.
type TaskResult int

const (
	TaskNoData TaskResult = iota
	TaskNewData
	TaskFailed
)

func (r TaskResult) String() string {
	switch r {
	case TaskNewData:
		return "new_data"
	case TaskNoData:
		return "no_data"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TaskFunc is the body of a background task.
type TaskFunc func() TaskResult

// TaskOptions mirror the hints an OS background-execution facility
// accepts. The minimum interval is a hint, not a guarantee: the host
// may wake the task far less often.
type TaskOptions struct {
	MinimumInterval time.Duration
	StopOnTerminate bool
	StartOnBoot     bool
}

// TaskRunner is the background-execution collaborator: register a
// named task with an interval hint and persistence flags.
type TaskRunner interface {
	Register(name string, opts TaskOptions, fn TaskFunc) error
	Unregister(name string) error
	IsRegistered(name string) bool
}

// TickerRunner is the local TaskRunner: each registered task runs on
// its own ticker at the minimum-interval hint. Persistence flags are
// accepted and ignored; a plain process has no boot integration.
type TickerRunner struct {
	mu    sync.Mutex
	tasks map[string]chan struct{}
}

// NewTickerRunner creates an empty runner.
func NewTickerRunner() *TickerRunner {
	return &TickerRunner{tasks: make(map[string]chan struct{})}
}

// Register starts the named task. Registering a name twice is an
// error.
func (r *TickerRunner) Register(name string, opts TaskOptions, fn TaskFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[name]; exists {
		return fmt.Errorf("task %s already registered", name)
	}

	interval := opts.MinimumInterval
	if interval <= 0 {
		interval = time.Minute
	}

	stop := make(chan struct{})
	r.tasks[name] = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				result := runTask(fn)
				if result == TaskFailed {
					log.Printf("sched: task %s failed", name)
				}
			}
		}
	}()

	log.Printf("sched: task %s registered (interval=%s)", name, interval)
	return nil
}

// runTask shields the runner from a panicking task body.
func runTask(fn TaskFunc) (result TaskResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("sched: task panic: %v", rec)
			result = TaskFailed
		}
	}()
	return fn()
}

// Unregister stops the named task.
func (r *TickerRunner) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stop, exists := r.tasks[name]
	if !exists {
		return nil
	}
	close(stop)
	delete(r.tasks, name)
	return nil
}

// IsRegistered reports whether the named task is running.
func (r *TickerRunner) IsRegistered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.tasks[name]
	return exists
}
