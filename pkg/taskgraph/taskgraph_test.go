package taskgraph

// taskgraph_test.go exercises the dispatcher's quiescence contract: a
// graph whose stages only ever push into each other must terminate once
// every stream drains, leaving every stream empty.
//
// © 2025 pandora authors. MIT License.

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// A graph with two stages A and B, where A pushes n items into B's stream
// on each invocation and B pushes nothing, seeded with 1 item in A: after
// Run, both streams are empty and B processed every item A produced
// exactly once.
func TestGraphQuiescenceFanOut(t *testing.T) {
	g := New(zap.NewNop())

	const fanOut = 3
	var aRuns, bRuns atomic.Int64

	var b *TaskHandle[int]
	b = NewTaskHandle[int](g, "B", 4, func(ctx context.Context, items []int) error {
		bRuns.Add(int64(len(items)))
		return nil
	})
	var a *TaskHandle[int]
	a = NewTaskHandle[int](g, "A", 4, func(ctx context.Context, items []int) error {
		aRuns.Add(int64(len(items)))
		for range items {
			for i := 0; i < fanOut; i++ {
				b.Push(i)
			}
		}
		return nil
	})

	a.Push(1)

	if err := g.Run(context.Background(), 2); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !g.Quiescent() {
		t.Fatal("graph not quiescent after Run returned")
	}
	if a.Pending() != 0 || b.Pending() != 0 {
		t.Fatalf("streams not drained: A.Pending=%d B.Pending=%d", a.Pending(), b.Pending())
	}
	if got := bRuns.Load(); got != fanOut {
		t.Fatalf("B processed %d items, want %d", got, fanOut)
	}
	if got := aRuns.Load(); got != 1 {
		t.Fatalf("A processed %d items, want 1", got)
	}
}

// A graph with no seeded work goes quiescent immediately.
func TestGraphQuiescenceEmpty(t *testing.T) {
	g := New(zap.NewNop())
	NewTaskHandle[int](g, "noop", 4, func(ctx context.Context, items []int) error {
		t.Fatal("handler should never run on an empty graph")
		return nil
	})
	if err := g.Run(context.Background(), 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !g.Quiescent() {
		t.Fatal("expected quiescence on an empty graph")
	}
}

// A panicking kernel is recovered at the worker boundary: the rest of the
// graph keeps draining and Run still returns via quiescence instead of
// crashing.
func TestGraphSurvivesKernelPanic(t *testing.T) {
	g := New(zap.NewNop())
	var survived atomic.Int64

	bad := NewTaskHandle[int](g, "panics", 1, func(ctx context.Context, items []int) error {
		panic("kernel bug")
	})
	good := NewTaskHandle[int](g, "healthy", 1, func(ctx context.Context, items []int) error {
		survived.Add(int64(len(items)))
		return nil
	})

	bad.Push(1)
	good.Push(1)
	good.Push(2)

	if err := g.Run(context.Background(), 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := survived.Load(); got != 2 {
		t.Fatalf("healthy stage processed %d items, want 2", got)
	}
	if bad.Pending() != 0 {
		t.Fatal("panicking stage's batch should still have been consumed")
	}
}

// A kernel returning an error is logged and dropped, not fatal: the graph
// continues with other stages and still terminates normally.
func TestGraphSurvivesKernelError(t *testing.T) {
	g := New(zap.NewNop())
	var survived atomic.Int64

	failing := NewTaskHandle[int](g, "failing", 1, func(ctx context.Context, items []int) error {
		return context.DeadlineExceeded
	})
	good := NewTaskHandle[int](g, "healthy", 1, func(ctx context.Context, items []int) error {
		survived.Add(int64(len(items)))
		return nil
	})

	failing.Push(1)
	good.Push(1)

	if err := g.Run(context.Background(), 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := survived.Load(); got != 1 {
		t.Fatalf("healthy stage processed %d items, want 1", got)
	}
}

// Deferred work (BeginDeferred/EndDeferred) holds the graph open: a kernel
// that hands work to an out-of-graph goroutine and returns must not let
// the dispatcher declare quiescence until the goroutine pushes its result
// back and releases its reservation.
func TestGraphWaitsForDeferredWork(t *testing.T) {
	g := New(zap.NewNop())
	var results atomic.Int64

	sink := NewTaskHandle[int](g, "sink", 4, func(ctx context.Context, items []int) error {
		results.Add(int64(len(items)))
		return nil
	})
	spawner := NewTaskHandle[int](g, "spawner", 4, func(ctx context.Context, items []int) error {
		for _, n := range items {
			n := n
			g.BeginDeferred()
			go func() {
				defer g.EndDeferred()
				time.Sleep(10 * time.Millisecond) // simulate a slow load
				sink.Push(n)
			}()
		}
		return nil
	})

	spawner.Push(1)
	spawner.Push(2)
	spawner.Push(3)

	if err := g.Run(context.Background(), 2); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := results.Load(); got != 3 {
		t.Fatalf("sink processed %d deferred results, want 3", got)
	}
	if !g.Quiescent() {
		t.Fatal("graph not quiescent after deferred work drained")
	}
}

// Self-loops are supported: a stage may push into its own stream from its
// kernel, and the graph still terminates once the self-feeding work dries
// up.
func TestGraphSelfLoopTerminates(t *testing.T) {
	g := New(zap.NewNop())
	var processed atomic.Int64
	var self *TaskHandle[int]
	self = NewTaskHandle[int](g, "countdown", 1, func(ctx context.Context, items []int) error {
		for _, n := range items {
			processed.Add(1)
			if n > 0 {
				self.Push(n - 1)
			}
		}
		return nil
	})
	self.Push(5)

	if err := g.Run(context.Background(), 3); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := processed.Load(); got != 6 { // 5,4,3,2,1,0
		t.Fatalf("processed %d items, want 6", got)
	}
	if !g.Quiescent() {
		t.Fatal("graph not quiescent after self-loop drained")
	}
}
