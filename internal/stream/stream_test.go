package stream

import (
	"sort"
	"sync"
	"testing"
)

func TestStreamPushDrain(t *testing.T) {
	s := New[int]()
	if s.PendingCount() != 0 {
		t.Fatalf("new stream should be empty, got %d", s.PendingCount())
	}
	s.Push(1)
	s.PushAll([]int{2, 3, 4})
	if got := s.PendingCount(); got != 4 {
		t.Fatalf("PendingCount = %d, want 4", got)
	}

	first := s.Drain(2)
	if len(first) != 2 {
		t.Fatalf("Drain(2) returned %d items, want 2", len(first))
	}
	if s.PendingCount() != 2 {
		t.Fatalf("PendingCount after partial drain = %d, want 2", s.PendingCount())
	}

	rest := s.Drain(0)
	if len(rest) != 2 {
		t.Fatalf("Drain(0) returned %d items, want remaining 2", len(rest))
	}
	if s.PendingCount() != 0 {
		t.Fatalf("stream should be empty after draining everything")
	}
	if out := s.Drain(10); out != nil {
		t.Fatalf("Drain on empty stream should return nil, got %v", out)
	}
}

func TestStreamConcurrentPushDrainIsLossless(t *testing.T) {
	s := New[int]()
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				s.Push(base*perProducer + i)
			}
		}(p)
	}
	wg.Wait()

	got := s.Drain(0)
	if len(got) != producers*perProducer {
		t.Fatalf("got %d items, want %d", len(got), producers*perProducer)
	}

	sort.Ints(got)
	for i, v := range got {
		if v != i {
			t.Fatalf("item set incomplete/duplicated at index %d: got %d", i, v)
		}
	}
}

func TestProducerFlushIntoStream(t *testing.T) {
	s := New[string]()
	p := AcquireProducer[string]()
	p.Stage("a")
	p.Stage("b")
	p.Flush(s)
	ReleaseProducer(p)

	if s.PendingCount() != 2 {
		t.Fatalf("PendingCount after flush = %d, want 2", s.PendingCount())
	}

	p2 := AcquireProducer[string]()
	p2.Flush(s) // no staged items: must be a no-op
	ReleaseProducer(p2)
	if s.PendingCount() != 2 {
		t.Fatalf("flushing an empty producer must not touch the stream")
	}
}
