// Package queue provides the unbounded, thread-safe FIFO queues that connect
// pipeline stages.
//
// A queue never blocks its producers: Put always succeeds as fast as memory
// allows. This is deliberate - the runtime provides hand-off, not
// back-pressure - and means a stalled consumer grows the queue without bound.
// Consumers poll with GetWait, a bounded wait that lets a worker re-check its
// stop signal at a fixed interval even when no traffic arrives.
//
// By construction of the graph wiring a queue has exactly one consumer, while
// any number of producers may share it as a fan-out target. All operations are
// safe for concurrent use; with more than one waiter a GetWait call may consume
// another waiter's wakeup and sleep until its own timeout, which is harmless
// under the single-consumer wiring.
//
// Statistics are always collected. Prometheus export is optional and attached
// with Instrument.
package queue

import (
	"sync"
	"time"

	"github.com/c360/flowpipe/metric"
)

// Queue is an unbounded FIFO queue of items of type T.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int // index of the next item to dequeue
	closed bool

	wake chan struct{} // signaled on Put, capacity 1
	done chan struct{} // closed by Close

	stats *Statistics

	// Optional Prometheus export
	metrics *metric.Metrics
	name    string
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		stats: NewStatistics(),
	}
}

// Instrument attaches Prometheus export under the given queue label.
// Passing a nil Metrics detaches it. Safe to call at any time; wiring code
// normally calls it once before the graph starts.
func (q *Queue[T]) Instrument(m *metric.Metrics, name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.metrics = m
	q.name = name
	if m != nil {
		m.QueueDepth.WithLabelValues(name).Set(float64(len(q.items) - q.head))
	}
}

// Put enqueues an item. It never blocks. Items put after Close are dropped
// and counted in the statistics.
func (q *Queue[T]) Put(item T) {
	q.mu.Lock()

	if q.closed {
		q.stats.Drop()
		q.mu.Unlock()
		return
	}

	q.items = append(q.items, item)
	depth := len(q.items) - q.head

	q.stats.Put()
	q.stats.UpdateDepth(int64(depth))
	if q.metrics != nil {
		q.metrics.QueuePuts.WithLabelValues(q.name).Inc()
		q.metrics.QueueDepth.WithLabelValues(q.name).Set(float64(depth))
	}
	q.mu.Unlock()

	// Wake a waiting consumer. Non-blocking: a pending signal already
	// guarantees the consumer will observe this item.
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Get dequeues the oldest item without waiting. The second return value is
// false if the queue is empty.
func (q *Queue[T]) Get() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.getLocked()
}

func (q *Queue[T]) getLocked() (T, bool) {
	var zero T

	if q.head == len(q.items) {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero // release for GC
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 32 && q.head*2 >= len(q.items) {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}

	depth := len(q.items) - q.head
	q.stats.Get()
	q.stats.UpdateDepth(int64(depth))
	if q.metrics != nil {
		q.metrics.QueueGets.WithLabelValues(q.name).Inc()
		q.metrics.QueueDepth.WithLabelValues(q.name).Set(float64(depth))
	}

	return item, true
}

// GetWait dequeues the oldest item, waiting up to timeout for one to arrive.
// It returns early with false if the queue is closed while waiting.
func (q *Queue[T]) GetWait(timeout time.Duration) (T, bool) {
	var zero T

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if item, ok := q.getLocked(); ok {
			q.mu.Unlock()
			return item, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, false
		}

		select {
		case <-q.wake:
		case <-q.done:
			// Closed mid-wait; drain anything enqueued before the close.
			return q.Get()
		case <-timer.C:
			return zero, false
		}
	}
}

// Peek returns the oldest item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head == len(q.items) {
		return zero, false
	}

	q.stats.Peek()
	return q.items[q.head], true
}

// Len returns the current number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Stats returns queue statistics (always available for observability).
func (q *Queue[T]) Stats() *Statistics {
	return q.stats
}

// Close marks the queue closed and wakes any waiting consumer. Items already
// queued remain readable; later Put calls are dropped. Idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}
