// Package taskqueue provides a serialized task runner with non-blocking
// posting guarantees. All tasks posted to a queue execute on a single
// dedicated goroutine in post order, which makes the queue usable as an
// ownership domain for state that would otherwise need locking.
package taskqueue

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Task is a unit of work executed on the queue goroutine.
type Task func()

// Config holds task queue configuration
type Config struct {
	Name       string
	BufferSize int
	Logger     *slog.Logger
}

// DefaultConfig returns the default task queue configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:       name,
		BufferSize: 256,
	}
}

// Stats tracks queue activity counters
type Stats struct {
	Posted   uint64
	Executed uint64
	Dropped  uint64
}

// Queue executes posted tasks sequentially on one worker goroutine
type Queue struct {
	name  string
	tasks chan Task
	quit  chan struct{}
	done  chan struct{}

	running atomic.Bool

	posted   atomic.Uint64
	executed atomic.Uint64
	dropped  atomic.Uint64

	logger *slog.Logger
}

// New creates a queue and starts its worker goroutine.
func New(config *Config) *Queue {
	if config == nil {
		config = DefaultConfig("taskqueue")
	}
	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		name:   config.Name,
		tasks:  make(chan Task, bufferSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger.With("queue", config.Name),
	}
	q.running.Store(true)
	go q.worker()
	return q
}

// Post submits a task for execution. It never blocks: when the queue is
// saturated or already shut down the task is dropped and false is returned.
func (q *Queue) Post(task Task) bool {
	if task == nil || !q.running.Load() {
		return false
	}

	select {
	case q.tasks <- task:
		q.posted.Add(1)
		return true
	default:
		q.dropped.Add(1)
		q.logger.Debug("task dropped, queue saturated", "dropped_total", q.dropped.Load())
		return false
	}
}

// PostDelayed submits a task for execution no earlier than delay from now.
// Delayed tasks do not preserve post order relative to immediate tasks.
// A task whose timer fires after shutdown is silently discarded.
func (q *Queue) PostDelayed(task Task, delay time.Duration) {
	if task == nil || !q.running.Load() {
		return
	}
	if delay <= 0 {
		q.Post(task)
		return
	}
	time.AfterFunc(delay, func() {
		q.Post(task)
	})
}

// Sync posts a barrier task and waits for it to execute. It returns false
// without waiting when the queue is saturated or shut down. Useful in tests
// to observe the effects of previously posted tasks.
func (q *Queue) Sync() bool {
	barrier := make(chan struct{})
	if !q.Post(func() { close(barrier) }) {
		return false
	}
	<-barrier
	return true
}

// Running reports whether the queue still accepts tasks.
func (q *Queue) Running() bool {
	return q.running.Load()
}

// GetStats returns current queue statistics
func (q *Queue) GetStats() Stats {
	return Stats{
		Posted:   q.posted.Load(),
		Executed: q.executed.Load(),
		Dropped:  q.dropped.Load(),
	}
}

// Shutdown stops the queue. Already accepted tasks are drained and executed
// before the worker exits; new posts are rejected. Safe to call more than once.
func (q *Queue) Shutdown(timeout time.Duration) error {
	if !q.running.Swap(false) {
		return nil
	}

	close(q.quit)

	select {
	case <-q.done:
		q.logger.Debug("task queue shutdown complete",
			"executed", q.executed.Load(),
			"dropped", q.dropped.Load())
		return nil
	case <-time.After(timeout):
		q.logger.Warn("task queue shutdown timeout exceeded")
		return fmt.Errorf("task queue %s: shutdown timeout exceeded", q.name)
	}
}

// worker runs tasks until shutdown, then drains whatever was accepted.
func (q *Queue) worker() {
	defer close(q.done)

	for {
		select {
		case task := <-q.tasks:
			q.run(task)
		case <-q.quit:
			for {
				select {
				case task := <-q.tasks:
					q.run(task)
				default:
					return
				}
			}
		}
	}
}

// run executes a task in a recovery wrapper so a panicking task cannot
// kill the worker goroutine.
func (q *Queue) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", "panic", r)
		}
	}()
	task()
	q.executed.Add(1)
}
