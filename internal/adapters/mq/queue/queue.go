// Package queue holds character lookups waiting for a batch worker.
//
// The queue is bounded: a full queue rejects new lookups instead of blocking,
// so callers can fail fast with backpressure.
package queue

import (
	"context"
	"sync"

	"github.com/okian/armory/internal/domain/model"
	"github.com/okian/armory/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Lookup is the payload type flowing through the queue.
type Lookup = model.Lookup

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a lookup to the queue.
	// Returns false if the queue is full or closed and the lookup was not enqueued.
	Enqueue(ctx context.Context, l Lookup) bool

	// Dequeue returns the channel workers receive lookups from.
	// The channel is closed when the queue is closed and drained.
	Dequeue() <-chan Lookup

	// Len returns the current number of queued lookups.
	Len() int

	// Cap returns the queue capacity.
	Cap() int

	// Close stops accepting lookups.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	lookups  chan Lookup
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

	q.lookups = make(chan Lookup, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Enqueue adds a lookup to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, l Lookup) bool { //nolint:gocritic // hugeParam: Lookup is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
	}

	select {
	case q.lookups <- l:
		metrics.RecordQueueEnqueue()
		q.report()
		return true
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns the channel workers receive lookups from.
func (q *InMemoryQueue) Dequeue() <-chan Lookup {
	return q.lookups
}

// Len returns the current number of queued lookups.
func (q *InMemoryQueue) Len() int {
	q.report()
	return len(q.lookups)
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int {
	return q.capacity
}

// Close stops accepting lookups. Lookups already queued stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.lookups)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) report() {
	size := len(q.lookups)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
