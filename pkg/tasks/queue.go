// Package tasks provides the deferred execution layer: a bounded in-process
// task queue with at-least-once retry semantics, a cron scheduler for
// periodic jobs, and the Penny Chat task handlers that run on it.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/penny-university/pennybot/pkg/domain"
	"github.com/penny-university/pennybot/pkg/logger"
)

// Args is the serializable argument map handed to a task handler.
type Args map[string]string

// Handler executes one task invocation. Handlers must be idempotent-safe:
// retries mean the same task can run more than once.
type Handler func(ctx context.Context, args Args) error

// Handle identifies a submitted task.
type Handle struct {
	ID   domain.EntityID
	Name string
}

// Submitter is the task-submission contract handed to request handlers so
// they can defer work without owning the queue.
type Submitter interface {
	Submit(name string, args Args) (Handle, error)
}

type job struct {
	handle Handle
	args   Args
}

// Queue is a fixed-worker in-process task queue. Failed tasks are retried
// with a constant backoff up to a bounded number of attempts.
type Queue struct {
	handlers   map[string]Handler
	jobs       chan job
	workers    int
	maxRetries int
	backoff    time.Duration
	bus        domain.EventBus

	mu sync.RWMutex
	wg sync.WaitGroup
}

// NewQueue creates a queue with the given worker count and retry policy.
func NewQueue(workers, maxRetries int, backoff time.Duration, bus domain.EventBus) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		handlers:   make(map[string]Handler),
		jobs:       make(chan job, 256),
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    backoff,
		bus:        bus,
	}
}

// Register binds a task name to its handler. Call before Run.
func (q *Queue) Register(name string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = h
}

// Submit enqueues a task invocation. Submitting an unregistered task name or
// overflowing the queue is an error surfaced to the caller.
func (q *Queue) Submit(name string, args Args) (Handle, error) {
	q.mu.RLock()
	_, ok := q.handlers[name]
	q.mu.RUnlock()
	if !ok {
		return Handle{}, fmt.Errorf("tasks: no handler registered for %q", name)
	}

	h := Handle{ID: domain.NewID(), Name: name}
	select {
	case q.jobs <- job{handle: h, args: args}:
	default:
		return Handle{}, fmt.Errorf("tasks: queue full, dropping %q", name)
	}

	if q.bus != nil {
		q.bus.Publish(domain.NewEvent(domain.EventTaskSubmitted, h.ID, map[string]string{
			"task": name,
		}))
	}
	return h, nil
}

// Run starts the workers and blocks until ctx is cancelled and all in-flight
// tasks have finished.
func (q *Queue) Run(ctx context.Context) {
	logger.InfoCF("tasks", "Task queue starting", map[string]interface{}{
		"workers":     q.workers,
		"max_retries": q.maxRetries,
	})

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.jobs:
			q.execute(ctx, j)
		}
	}
}

// execute runs a task to completion or terminal failure. Once dequeued a
// task is never cancelled mid-flight; the retry loop only re-checks ctx
// between attempts.
func (q *Queue) execute(ctx context.Context, j job) {
	q.mu.RLock()
	h := q.handlers[j.handle.Name]
	q.mu.RUnlock()
	if h == nil {
		return
	}

	var err error
	for attempt := 1; attempt <= q.maxRetries+1; attempt++ {
		err = h(ctx, j.args)
		if err == nil {
			if q.bus != nil {
				q.bus.Publish(domain.NewEvent(domain.EventTaskCompleted, j.handle.ID, map[string]interface{}{
					"task":     j.handle.Name,
					"attempts": attempt,
				}))
			}
			return
		}

		logger.WarnCF("tasks", "Task attempt failed", map[string]interface{}{
			"task":    j.handle.Name,
			"attempt": attempt,
			"error":   err.Error(),
		})

		if attempt > q.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.backoff):
		}
	}

	logger.ErrorCF("tasks", "Task failed terminally", map[string]interface{}{
		"task":  j.handle.Name,
		"error": err.Error(),
	})
	if q.bus != nil {
		q.bus.Publish(domain.NewEvent(domain.EventTaskFailed, j.handle.ID, map[string]interface{}{
			"task":  j.handle.Name,
			"error": err.Error(),
		}))
	}
}

var _ Submitter = (*Queue)(nil)
