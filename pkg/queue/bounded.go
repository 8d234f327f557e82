package queue

import (
	"sync"
)

// Bounded is a thread-safe bounded FIFO queue used as the hand-off
// structure between pipeline stages. Push blocks while the queue is at
// capacity, which is the backpressure keeping a fast stage from
// outrunning a stalled downstream stage. Pop blocks while the queue
// is empty until an item arrives or the queue is closed and drained.
type Bounded[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	items    []T
	capacity int
	closed   bool
}

// NewBounded creates a bounded queue with the given capacity.
// A capacity <= 0 is treated as 1.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Bounded[T]{capacity: capacity}
	q.notFull = sync.NewCond(&q.mu)
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends an item, blocking while the queue is full.
// Returns false if the queue was closed before the item could be added.
func (q *Bounded[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return true
}

// Pop removes and returns the oldest item, blocking while the queue is
// empty. Returns the zero value and false once the queue is closed and
// fully drained, signalling the consumer to exit.
func (q *Bounded[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			var zero T
			return zero, false
		}
		q.notEmpty.Wait()
	}

	item := q.items[0]
	q.items = q.items[1:]
	q.notFull.Signal()
	return item, true
}

// Close signals that no more items will be pushed. Items already queued
// remain poppable; blocked producers and consumers are woken so they can
// observe the closed state.
func (q *Bounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		q.notFull.Broadcast()
		q.notEmpty.Broadcast()
	}
}

// Len returns the current number of queued items (thread-safe).
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
