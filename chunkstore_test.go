package main

import "testing"

func TestChunkedStoreAppendLookup(t *testing.T) {
	pool := &ChunkPool[int]{}
	s := NewChunkedStore[int](4, pool)

	const k = 11
	for i := 0; i < k; i++ {
		if idx := s.Append(i * 10); idx != i {
			t.Fatalf("append %d returned index %d", i, idx)
		}
	}
	if s.Len() != k {
		t.Errorf("expected len %d, got %d", k, s.Len())
	}
	// ceil(11/4) = 3 chunks
	if s.Chunks() != 3 {
		t.Errorf("expected 3 chunks, got %d", s.Chunks())
	}
	for i := 0; i < k; i++ {
		got, ok := s.Get(i)
		if !ok || got != i*10 {
			t.Errorf("index %d: got %d ok=%v", i, got, ok)
		}
	}
	if _, ok := s.Get(k); ok {
		t.Error("expected out-of-range Get to fail")
	}
}

func TestChunkedStoreChunkCounts(t *testing.T) {
	for _, c := range []int{1, 3, 64} {
		for _, k := range []int{1, 2, 7, 64, 65, 130} {
			pool := &ChunkPool[int]{}
			s := NewChunkedStore[int](c, pool)
			for i := 0; i < k; i++ {
				s.Append(i)
			}
			want := (k + c - 1) / c
			if s.Chunks() != want {
				t.Errorf("C=%d K=%d: expected %d chunks, got %d", c, k, want, s.Chunks())
			}
		}
	}
}

func TestChunkedStoreDeleteLast(t *testing.T) {
	pool := &ChunkPool[int]{}
	s := NewChunkedStore[int](4, pool)

	const k = 9 // 3 chunks
	for i := 0; i < k; i++ {
		s.Append(i)
	}

	for i := 0; i < k; i++ {
		if !s.DeleteLast() {
			t.Fatalf("delete %d failed", i)
		}
	}
	if s.DeleteLast() {
		t.Error("delete on empty store should fail")
	}

	// Back to the single initial empty chunk; the two grow chunks are
	// pooled for reuse.
	if s.Len() != 0 || s.Chunks() != 1 {
		t.Errorf("expected empty single-chunk store, got len=%d chunks=%d", s.Len(), s.Chunks())
	}
	if pool.Len() != 2 {
		t.Errorf("expected 2 pooled chunks, got %d", pool.Len())
	}
}

func TestChunkPoolReuse(t *testing.T) {
	pool := &ChunkPool[int]{}
	a := NewChunkedStore[int](2, pool)
	for i := 0; i < 6; i++ {
		a.Append(i)
	}
	for i := 0; i < 6; i++ {
		a.DeleteLast()
	}
	if pool.Len() != 2 {
		t.Fatalf("expected 2 pooled chunks, got %d", pool.Len())
	}

	// A different store of the same item type grows out of the pool
	// before allocating anything new.
	b := NewChunkedStore[int](2, pool)
	for i := 0; i < 6; i++ {
		b.Append(i)
	}
	if pool.Len() != 0 {
		t.Errorf("expected pool drained, got %d", pool.Len())
	}
	if b.Chunks() != 3 {
		t.Errorf("expected 3 chunks, got %d", b.Chunks())
	}
	for i := 0; i < 6; i++ {
		if got, _ := b.Get(i); got != i {
			t.Errorf("index %d: got %d", i, got)
		}
	}
}

func TestChunkedStoreHeadChunkNeverPooled(t *testing.T) {
	pool := &ChunkPool[int]{}
	s := NewChunkedStore[int](2, pool)
	s.Append(1)
	s.Append(2)
	s.DeleteLast()
	s.DeleteLast()
	if s.Chunks() != 1 {
		t.Errorf("expected head chunk to survive, got %d chunks", s.Chunks())
	}
	if pool.Len() != 0 {
		t.Errorf("head chunk leaked into the pool")
	}
}

func TestChunkedStoreScan(t *testing.T) {
	pool := &ChunkPool[int]{}
	s := NewChunkedStore[int](3, pool)
	for i := 0; i < 7; i++ {
		s.Append(i)
	}
	var visited []int
	s.Scan(func(index int, item *int) bool {
		if index != *item {
			t.Errorf("index %d holds %d", index, *item)
		}
		visited = append(visited, *item)
		return *item < 4 // stop early
	})
	if len(visited) != 5 {
		t.Errorf("expected scan to stop after 5 items, visited %d", len(visited))
	}
}

func TestSwapListDelete(t *testing.T) {
	l := NewSwapList[string](4)
	for _, s := range []string{"a", "b", "c", "d"} {
		if !l.Push(s) {
			t.Fatalf("push %s failed", s)
		}
	}
	if l.Push("e") {
		t.Error("push past capacity should fail")
	}

	l.SwapDelete(1) // "d" moves into slot 1
	if l.Len() != 3 {
		t.Fatalf("expected len 3, got %d", l.Len())
	}
	if *l.At(1) != "d" {
		t.Errorf("expected last element swapped in, got %q", *l.At(1))
	}

	l.Reset()
	if l.Len() != 0 {
		t.Errorf("expected empty list after reset, got %d", l.Len())
	}
	if !l.Push("z") {
		t.Error("push after reset should succeed")
	}
}
