// Package queue provides the bounded in-memory task queue shared by the
// orchestrator and the worker pool.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/frostyslav/OSGenome/internal/snp"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded queue of crawl tasks with context-aware operations.
// Capacity must be at least the number of distinct tasks fed through it:
// a task is re-enqueued after a failed attempt, and a full queue would
// otherwise deadlock the retrying worker.
type Queue struct {
	ch      chan snp.Task
	closeMu sync.Mutex
	closed  bool
}

// New constructs a queue with the provided capacity.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch: make(chan snp.Task, capacity),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, task snp.Task) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (snp.Task, error) {
	select {
	case <-ctx.Done():
		return snp.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return snp.Task{}, ErrClosed
		}
		return task, nil
	}
}

// Close closes the underlying channel for shutdown. Safe to call twice.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
