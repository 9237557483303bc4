// Package memory provides the in-process task queue between the dispatcher and workers.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

// ErrClosed is returned once the queue has been closed.
var ErrClosed = profile.ErrQueueClosed

// Queue is a bounded channel queue with context-aware operations.
type Queue struct {
	ch      chan profile.Task
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{ch: make(chan profile.Task, capacity)}
}

// Enqueue pushes a task or returns when the context ends or the queue is closed.
func (q *Queue) Enqueue(ctx context.Context, task profile.Task) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (profile.Task, error) {
	select {
	case <-ctx.Done():
		return profile.Task{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return profile.Task{}, ErrClosed
		}
		return task, nil
	}
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close closes the channel; buffered tasks can still be drained.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
