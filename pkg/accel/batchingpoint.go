package accel

// batchingpoint.go defines a single batching point: a spatial region of the
// top-level BVH that owns one sub-BVH (cached, possibly non-resident) and a
// queue of rays waiting for that sub-BVH to become resident. Rays that
// reach a non-resident region accumulate until the region is worth paging
// in, rather than blocking the traversing goroutine on a synchronous load.
//
// © 2025 pandora authors. MIT License.

import (
	"github.com/pandora-render/pandora/internal/stream"
	"github.com/pandora-render/pandora/pkg/cache"
	"github.com/pandora-render/pandora/pkg/geom"
)

// queuedRay is one ray waiting on a batching point's sub-BVH. traversal
// identifies the shared accumulator (see accel.go's traversal type) that
// reconciles this point's result against the ray's other candidate
// batching points.
type queuedRay struct {
	ray       geom.Ray
	traversal uint64
}

// BatchingPoint is one leaf region of the top-level BVH.
type BatchingPoint struct {
	ID     cache.ID
	Bounds geom.Bounds3

	pending *stream.Stream[queuedRay]
}

func newBatchingPoint(id cache.ID, bounds geom.Bounds3) *BatchingPoint {
	return &BatchingPoint{
		ID:      id,
		Bounds:  bounds,
		pending: stream.New[queuedRay](),
	}
}

func (bp *BatchingPoint) pendingCount() int { return bp.pending.PendingCount() }
