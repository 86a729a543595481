package cache

// access.go implements the cache's asynchronous access adapter: a
// task-graph stage that receives (user_state, id) requests and either
// answers immediately from residency or defers the load to a bounded
// loader pool so the calling task-graph worker is not blocked on I/O. When
// the pool's queue is full, the load runs inline on the calling worker.
//
// Both paths land on the same onResult callback -- the immediate-hit path
// calls it synchronously inside the stage's kernel, the miss path calls it
// from a loader-pool goroutine once the load completes. Either way the
// caller sees exactly one onResult call per request.
//
// © 2025 pandora authors. MIT License.

import (
	"context"

	"github.com/pandora-render/pandora/internal/workerpool"
	"github.com/pandora-render/pandora/pkg/taskgraph"
)

// AccessRequest is one (user_state, id) pair submitted to an access stage.
type AccessRequest[T any] struct {
	State any
	ID    ID
}

// LoadResult is delivered to onResult exactly once per AccessRequest,
// whether it was answered from residency or via the loader pool.
type LoadResult[T any] struct {
	State any
	Value *T
	Err   error
}

// BuildAccessStage registers a taskgraph stage of type AccessRequest[T]
// against g. Each request is resolved against c's residency for kind: a
// hit calls onResult synchronously from the stage's kernel; a miss submits
// the blocking load to pool and calls onResult from a pool goroutine once
// it completes, so the task-graph worker that drained this stage's batch
// is free to move on to the next stage immediately. If the pool's queue
// is full, that request's load runs inline in the kernel instead, and
// onResult is called from there. Each deferred load
// holds a Graph deferred-work reservation (BeginDeferred/EndDeferred), so
// the graph cannot go quiescent while a load is still on its way back.
//
// kind must already be registered on c (via Register) before this stage
// ever runs a batch.
func BuildAccessStage[T any](g *taskgraph.Graph, c *Cache, kind Kind, pool *workerpool.Pool, batchSize int, onResult func(LoadResult[T])) *taskgraph.TaskHandle[AccessRequest[T]] {
	return taskgraph.NewTaskHandle[AccessRequest[T]](g, "cache_access", batchSize, func(ctx context.Context, items []AccessRequest[T]) error {
		for _, req := range items {
			if v, ok := TryGet[T](c, kind, req.ID); ok {
				onResult(LoadResult[T]{State: req.State, Value: v})
				continue
			}
			req := req
			g.BeginDeferred()
			submit := func() {
				defer g.EndDeferred()
				v, err := Get[T](ctx, c, kind, req.ID)
				onResult(LoadResult[T]{State: req.State, Value: v, Err: err})
			}
			if !pool.TrySubmit(submit) {
				// Pool queue momentarily full: run inline rather than
				// block the task-graph worker indefinitely.
				submit()
			}
		}
		return nil
	})
}
