package cache

// access_test.go exercises the asynchronous access adapter: resident ids
// answer from the stage kernel without touching the loader pool, cold ids
// defer their load to the pool without blocking the task-graph worker,
// and every request produces exactly one result before the graph goes
// quiescent.
//
// © 2025 pandora authors. MIT License.

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pandora-render/pandora/internal/workerpool"
	"github.com/pandora-render/pandora/pkg/taskgraph"
)

func TestAccessStageResolvesHitsAndDeferredLoads(t *testing.T) {
	c := New(1 << 20)
	var loads atomic.Int32
	Register(c, kindTiny, "tiny",
		func(ctx context.Context, id ID) (*tinyVal, int64, error) {
			loads.Add(1)
			time.Sleep(5 * time.Millisecond) // make cold loads observable as deferrals
			return &tinyVal{tag: "loaded"}, 8, nil
		}, nil)

	// Pre-warm id 1 so the access stage has a resident fast path to take.
	if _, err := Get[tinyVal](context.Background(), c, kindTiny, 1); err != nil {
		t.Fatal(err)
	}

	g := taskgraph.New(zap.NewNop())
	pool := workerpool.New(2, 8)
	defer pool.Shutdown()

	var results atomic.Int32
	var failures atomic.Int32
	sink := taskgraph.NewTaskHandle[LoadResult[tinyVal]](g, "sink", 8,
		func(ctx context.Context, items []LoadResult[tinyVal]) error {
			for _, res := range items {
				if res.Err != nil || res.Value == nil || res.Value.tag != "loaded" {
					failures.Add(1)
					continue
				}
				results.Add(1)
			}
			return nil
		})

	access := BuildAccessStage[tinyVal](g, c, kindTiny, pool, 8, func(res LoadResult[tinyVal]) {
		sink.Push(res)
	})

	// One warm id and three cold ones; every request must produce exactly
	// one result, and the warm one must not invoke the loader again.
	for _, id := range []ID{1, 2, 3, 4} {
		access.Push(AccessRequest[tinyVal]{State: int(id), ID: id})
	}

	if err := g.Run(context.Background(), 2); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := results.Load(); got != 4 {
		t.Fatalf("observed %d results, want 4", got)
	}
	if got := failures.Load(); got != 0 {
		t.Fatalf("observed %d failed results, want 0", got)
	}
	if got := loads.Load(); got != 4 { // 1 pre-warm + 3 cold
		t.Fatalf("loader ran %d times, want 4", got)
	}
	if access.Pending() != 0 || sink.Pending() != 0 {
		t.Fatal("streams not drained after Run returned")
	}
}

func TestAccessStageRoutesLoaderErrors(t *testing.T) {
	c := New(1 << 20)
	Register(c, kindTiny, "tiny",
		func(ctx context.Context, id ID) (*tinyVal, int64, error) {
			return nil, 0, context.DeadlineExceeded
		}, nil)

	g := taskgraph.New(zap.NewNop())
	pool := workerpool.New(1, 4)
	defer pool.Shutdown()

	var errs atomic.Int32
	access := BuildAccessStage[tinyVal](g, c, kindTiny, pool, 4, func(res LoadResult[tinyVal]) {
		if res.Err != nil {
			errs.Add(1)
		}
	})
	access.Push(AccessRequest[tinyVal]{ID: 99})

	if err := g.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := errs.Load(); got != 1 {
		t.Fatalf("observed %d error results, want 1", got)
	}
}
