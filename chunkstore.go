package main

import "fmt"

// chunk is one fixed-capacity block of records. Chunks are never freed;
// an emptied chunk moves to a ChunkPool for reuse by another store.
type chunk[T any] struct {
	length int
	items  []T
	next   *chunk[T]
}

// ChunkPool holds emptied chunks for reuse by any store of the same item
// type. Release appends at the tail, Acquire pops the head, so chunks are
// reused in the order they were returned.
type ChunkPool[T any] struct {
	first  *chunk[T]
	length int
}

// Len returns the number of pooled chunks.
func (p *ChunkPool[T]) Len() int {
	return p.length
}

func (p *ChunkPool[T]) acquire() *chunk[T] {
	if p.first == nil {
		return nil
	}
	c := p.first
	p.first = c.next
	c.next = nil
	p.length--
	return c
}

func (p *ChunkPool[T]) release(c *chunk[T]) {
	c.length = 0
	c.next = nil
	p.length++
	if p.first == nil {
		p.first = c
		return
	}
	last := p.first
	for last.next != nil {
		last = last.next
	}
	last.next = c
}

// ChunkedStore is an append-optimized sequence of fixed-capacity chunks.
// Indexes are stable: item i lives at chunk i/chunkSize, offset i%chunkSize.
// The head chunk always exists, so the store is never headless.
//
// The store itself is not synchronized; callers guard it with the state
// lock, the same way every other piece of simulation state is guarded.
type ChunkedStore[T any] struct {
	length    int
	chunkSize int
	chunks    int
	first     *chunk[T]
	pool      *ChunkPool[T]
}

// NewChunkedStore creates a store with the given chunk capacity, drawing
// and recycling grow chunks through pool.
func NewChunkedStore[T any](chunkSize int, pool *ChunkPool[T]) *ChunkedStore[T] {
	if chunkSize <= 0 {
		panic("chunk size must be positive")
	}
	return &ChunkedStore[T]{
		chunkSize: chunkSize,
		chunks:    1,
		first:     &chunk[T]{items: make([]T, chunkSize)},
		pool:      pool,
	}
}

// Len returns the total number of stored items.
func (s *ChunkedStore[T]) Len() int {
	return s.length
}

// Chunks returns the number of live chunks.
func (s *ChunkedStore[T]) Chunks() int {
	return s.chunks
}

// Append stores item and returns its stable index.
func (s *ChunkedStore[T]) Append(item T) int {
	last := s.first
	for last.next != nil {
		last = last.next
	}
	if last.length == s.chunkSize {
		next := s.pool.acquire()
		if next == nil {
			next = &chunk[T]{items: make([]T, s.chunkSize)}
		}
		last.next = next
		last = next
		s.chunks++
	}
	last.items[last.length] = item
	last.length++
	s.length++
	return s.length - 1
}

// At returns a pointer to the item at index. An out-of-range index is a
// contract violation and panics.
func (s *ChunkedStore[T]) At(index int) *T {
	if index < 0 || index >= s.length {
		panic(fmt.Sprintf("chunked store index %d out of range (len %d)", index, s.length))
	}
	c := s.first
	for i := 0; i < index/s.chunkSize; i++ {
		c = c.next
	}
	return &c.items[index%s.chunkSize]
}

// Get returns a copy of the item at index, or false if out of range.
func (s *ChunkedStore[T]) Get(index int) (T, bool) {
	var zero T
	if index < 0 || index >= s.length {
		return zero, false
	}
	return *s.At(index), true
}

// DeleteLast removes the last item. If that empties the tail chunk and the
// tail is not the head chunk, the chunk is unlinked and released to the
// pool. Returns false on an empty store.
func (s *ChunkedStore[T]) DeleteLast() bool {
	if s.length == 0 {
		return false
	}

	var prev *chunk[T]
	last := s.first
	for last.next != nil {
		prev = last
		last = last.next
	}

	var zero T
	last.length--
	last.items[last.length] = zero
	s.length--

	if last.length == 0 && last != s.first {
		prev.next = nil
		s.chunks--
		s.pool.release(last)
	}
	return true
}

// Scan calls fn with a pointer to each stored item in index order until fn
// returns false. Lookups by field (account name, entity id) ride on this.
func (s *ChunkedStore[T]) Scan(fn func(index int, item *T) bool) {
	index := 0
	for c := s.first; c != nil; c = c.next {
		for i := 0; i < c.length; i++ {
			if !fn(index, &c.items[i]) {
				return
			}
			index++
		}
	}
}

// SwapList is a flat capacity-bounded list for order-irrelevant live sets.
// Deletion replaces the removed slot with the current last element, so
// removal is O(1) at the cost of index stability.
type SwapList[T any] struct {
	items  []T
	length int
}

// NewSwapList creates a list with the given fixed capacity.
func NewSwapList[T any](capacity int) *SwapList[T] {
	return &SwapList[T]{items: make([]T, capacity)}
}

// Len returns the number of live items.
func (l *SwapList[T]) Len() int {
	return l.length
}

// Push appends item, or returns false at capacity.
func (l *SwapList[T]) Push(item T) bool {
	if l.length == len(l.items) {
		return false
	}
	l.items[l.length] = item
	l.length++
	return true
}

// At returns a pointer to the item at index.
func (l *SwapList[T]) At(index int) *T {
	if index < 0 || index >= l.length {
		panic(fmt.Sprintf("swap list index %d out of range (len %d)", index, l.length))
	}
	return &l.items[index]
}

// SwapDelete removes the item at index by moving the last item into its
// slot and shrinking the list.
func (l *SwapList[T]) SwapDelete(index int) {
	if index < 0 || index >= l.length {
		panic(fmt.Sprintf("swap list delete %d out of range (len %d)", index, l.length))
	}
	var zero T
	l.length--
	l.items[index] = l.items[l.length]
	l.items[l.length] = zero
}

// Reset empties the list without releasing its storage.
func (l *SwapList[T]) Reset() {
	var zero T
	for i := 0; i < l.length; i++ {
		l.items[i] = zero
	}
	l.length = 0
}
