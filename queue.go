package main

import "sync"

// Queue is a fixed-capacity thread-safe FIFO ring buffer.
//
// Push blocks while the queue is full; Pop blocks while it is empty;
// TryPop never blocks. The simulation loop must only ever use TryPop so
// a tick can never stall waiting on the network.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	head     int
	tail     int
	count    int
}

// NewQueue creates a queue with the given fixed capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("queue capacity must be positive")
	}
	q := &Queue[T]{items: make([]T, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push inserts item, blocking until a slot is free.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == len(q.items) {
		q.notFull.Wait()
	}

	q.items[q.tail] = item
	q.tail = (q.tail + 1) % len(q.items)
	q.count++

	q.notEmpty.Signal()
}

// Pop removes and returns the head item, blocking until one exists.
func (q *Queue[T]) Pop() T {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 {
		q.notEmpty.Wait()
	}

	item := q.take()
	q.notFull.Signal()
	return item
}

// TryPush inserts item if a slot is free, or returns false on a full
// queue. It never blocks; the outbound path uses this so a reply is
// dropped (with a log) rather than stalling the tick.
func (q *Queue[T]) TryPush(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.items) {
		return false
	}

	q.items[q.tail] = item
	q.tail = (q.tail + 1) % len(q.items)
	q.count++

	q.notEmpty.Signal()
	return true
}

// TryPop removes the head item if one exists. It never blocks.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.count == 0 {
		return zero, false
	}

	item := q.take()
	q.notFull.Signal()
	return item, true
}

// Len returns the current number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int {
	return len(q.items)
}

func (q *Queue[T]) take() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--
	return item
}
