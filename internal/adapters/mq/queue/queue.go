// Package queue carries ledger changes from the service to the mirror workers.
package queue

import (
	"context"
	"sync"

	"github.com/okian/biggame/internal/domain/model"
	"github.com/okian/biggame/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Change is the payload type flowing through the queue.
type Change = model.Change

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a change to the queue.
	// Returns false if the queue is full or closed and the change was dropped.
	Enqueue(ctx context.Context, c Change) bool

	// Dequeue returns a channel that receives changes as they become available.
	// The channel is closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Change

	// Len returns the current number of queued changes.
	Len(ctx context.Context) int

	// Close stops accepting changes. Queued changes can still be dequeued.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	changes  chan Change
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.changes = make(chan Change, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a change to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, c Change) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case q.changes <- c:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.changes))
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives changes as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Change {
	out := make(chan Change)
	go func() {
		defer close(out)
		for c := range q.changes {
			select {
			case out <- c:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.changes))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued changes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.changes)
	metrics.UpdateQueueSize(size)
	return size
}

// Close stops accepting changes.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.changes)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
