package concurrency

import "sync"

// Queue is an unbounded, thread-safe FIFO. Elements pushed by one producer
// are popped in that producer's push order, and no element is delivered to
// more than one consumer. After Close, pushes fail with ErrQueueClosed while
// already-queued elements remain poppable until the queue drains.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []T
	closed   bool
}

// NewQueue creates an empty, open queue.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends item to the back of the queue and wakes one blocked popper.
// Returns ErrQueueClosed if the queue has been closed.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, item)
	q.notEmpty.Signal()
	return nil
}

// TryPop removes and returns the front element without blocking.
// The second return is false when the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.popFrontLocked(), true
}

// Pop blocks until an element is available or the queue is closed and
// drained. The second return is false only for closed-and-empty; every
// element pushed before Close is still delivered.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.popFrontLocked(), true
}

// Close marks the queue closed and wakes all blocked poppers. Further pushes
// fail; pending elements drain normally. Safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsClosed reports whether Close has been called.
func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) popFrontLocked() T {
	item := q.items[0]
	var zero T
	q.items[0] = zero // release the reference for GC
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return item
}
