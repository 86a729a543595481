// Package accel implements the batching two-level acceleration structure:
// a top-level BVH over batching points, each owning a disk-evictable
// sub-BVH and a queue of rays waiting on it. Scheduling is driven by
// pkg/taskgraph: AccelStructure implements taskgraph.StageOps directly
// (rather than going through a generic TaskHandle[T]) so the dispatcher can
// pick, among all registered stages, the single batching point with the
// largest backlog -- coalescing as many rays as possible against a
// sub-BVH before paying its load cost once.
//
// © 2025 pandora authors. MIT License.
package accel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pandora-render/pandora/internal/stream"
	"github.com/pandora-render/pandora/pkg/cache"
	"github.com/pandora-render/pandora/pkg/cacheable"
	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/shapes"
	"github.com/pandora-render/pandora/pkg/taskgraph"
)

// HitEvent is pushed to the configured hit/any-hit handle when a ray
// resolves to an intersection.
type HitEvent struct {
	Ray geom.Ray
	Hit geom.Hit
}

// MissEvent is pushed to the configured miss/any-miss handle when a ray
// exhausts every batching point it overlaps without intersecting anything.
type MissEvent struct {
	Ray geom.Ray
}

const subBVHKind cache.Kind = 1

// AccelStructure is the batching two-level acceleration structure.
type AccelStructure struct {
	top    []topNode
	points []*BatchingPoint
	cache  *cache.Cache

	traversalSeq atomic.Uint64
	mu           sync.Mutex
	inFlight     map[uint64]*traversal // reconciles one ray's result across every candidate batching point

	onHit     *taskgraph.TaskHandle[HitEvent]
	onMiss    *taskgraph.TaskHandle[MissEvent]
	onAnyHit  *taskgraph.TaskHandle[HitEvent]
	onAnyMiss *taskgraph.TaskHandle[MissEvent]

	batchSize int
}

// traversal accumulates one ray's best hit across every batching point it
// overlaps. A ray that overlaps N leaves of the top-level BVH is queued to
// all N; traversal.remaining counts down as each point reports back, and
// the ray's final hit/miss is only emitted once every candidate has been
// resolved, so the nearest hit wins regardless of which point resolves it.
type traversal struct {
	mu        sync.Mutex
	ray       geom.Ray
	best      geom.Hit
	haveHit   bool
	remaining int
}

func (t *traversal) resolve(hit geom.Hit, ok bool) (done bool, finalHit geom.Hit, finalOK bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok && (!t.haveHit || hit.T < t.best.T) {
		t.best = hit
		t.haveHit = true
	}
	t.remaining--
	return t.remaining <= 0, t.best, t.haveHit
}

// diskBackend is the combined Serializer/Deserializer a disk-backed
// eviction path needs; kept unexported and minimal so accel doesn't need
// to import pkg/cacheable's full surface beyond what SubBVH already uses.
type diskBackend interface {
	cacheable.Serializer
	cacheable.Deserializer
}

// Options configures AccelStructure construction.
type Options struct {
	BatchSize int
	OnHit     *taskgraph.TaskHandle[HitEvent]
	OnMiss    *taskgraph.TaskHandle[MissEvent]
	OnAnyHit  *taskgraph.TaskHandle[HitEvent]
	OnAnyMiss *taskgraph.TaskHandle[MissEvent]

	// Disk, if non-nil, makes evicted sub-BVHs serialize to it instead of
	// simply dropping, and lets a later reload restore from the
	// allocation instead of rebuilding from the original shape list.
	Disk diskBackend
}

// PointSpec describes one batching point's shape list before it has been
// handed to the cache.
type PointSpec struct {
	ID     cache.ID
	Shapes []shapes.Shape
}

// Build constructs an AccelStructure over the given batching points and
// registers a SubBVH loader/evictor under subBVHKind on c. The loader keeps
// each point's shape list for the structure's lifetime, so a sub-BVH with
// no disk allocation can always be rebuilt from it.
func Build(c *cache.Cache, specs []PointSpec, opts Options) (*AccelStructure, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("accel: cannot build over zero batching points")
	}

	byID := make(map[cache.ID][]shapes.Shape, len(specs))
	bounds := make([]geom.Bounds3, len(specs))
	points := make([]*BatchingPoint, len(specs))

	for i, spec := range specs {
		b := geom.EmptyBounds()
		for _, s := range spec.Shapes {
			b = b.Union(s.Bounds())
		}
		bounds[i] = b
		points[i] = newBatchingPoint(spec.ID, b)
		byID[spec.ID] = spec.Shapes
	}

	var allocMu sync.Mutex
	allocByID := make(map[cache.ID]cacheable.Allocation)

	cache.Register(c, subBVHKind, "sub_bvh",
		func(ctx context.Context, id cache.ID) (*SubBVH, int64, error) {
			if opts.Disk != nil {
				allocMu.Lock()
				alloc, ok := allocByID[id]
				allocMu.Unlock()
				if ok {
					sb := &SubBVH{}
					if err := sb.MakeResident(opts.Disk, alloc); err != nil {
						return nil, 0, err
					}
					return sb, sb.SizeBytes(), nil
				}
			}
			shapeList, ok := byID[id]
			if !ok {
				return nil, 0, fmt.Errorf("accel: no shapes recorded for batching point %d", id)
			}
			sb, err := BuildSubBVH(shapeList)
			if err != nil {
				return nil, 0, err
			}
			return sb, sb.SizeBytes(), nil
		},
		func(id cache.ID, value *SubBVH, reason cache.EvictReason) {
			if opts.Disk != nil && reason == cache.EvictCapacity {
				if alloc, err := value.Serialize(opts.Disk); err == nil {
					allocMu.Lock()
					allocByID[id] = alloc
					allocMu.Unlock()
				}
			}
			// No value.Evict() here: this callback runs on its own goroutine
			// while the flush kernel that loaded this sub-BVH may still
			// hold it mid-traversal, and eviction must
			// never invalidate outstanding references. The bytes free
			// once the last holder drops the value.
		},
	)

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 128
	}

	a := &AccelStructure{
		top:       buildTopLevel(bounds),
		points:    points,
		cache:     c,
		inFlight:  make(map[uint64]*traversal),
		onHit:     opts.OnHit,
		onMiss:    opts.OnMiss,
		onAnyHit:  opts.OnAnyHit,
		onAnyMiss: opts.OnAnyMiss,
		batchSize: batchSize,
	}
	return a, nil
}

// Name implements taskgraph.StageOps.
func (a *AccelStructure) Name() string { return "accel_structure" }

// Pending implements taskgraph.StageOps: the structure's backlog is the
// largest single batching point queue, since that's the unit TryRun drains.
func (a *AccelStructure) Pending() int {
	best := 0
	for _, p := range a.points {
		if n := p.pendingCount(); n > best {
			best = n
		}
	}
	return best
}

// TryRun drains the batching point with the largest pending queue, loads
// its sub-BVH (blocking on the cache, which itself dedupes concurrent
// loads via singleflight), intersects every queued ray, and reports each
// result back to its traversal accumulator.
func (a *AccelStructure) TryRun(ctx context.Context, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx, point := a.busiest()
	if point == nil {
		return 0, nil
	}

	batch := point.pending.Drain(a.batchSize)
	if len(batch) == 0 {
		return 0, nil
	}

	sub, err := cache.Get[SubBVH](ctx, a.cache, subBVHKind, point.ID)
	if err != nil {
		logger.Warn("sub-bvh load failed", zap.Int("point", idx), zap.Error(err))
		for _, qr := range batch {
			a.report(qr.traversal, geom.Hit{}, false)
		}
		return len(batch), nil
	}

	for _, qr := range batch {
		hit, ok := sub.Intersect(qr.ray)
		a.report(qr.traversal, hit, ok)
	}
	return len(batch), nil
}

// report feeds one batching point's result back into the ray's shared
// traversal accumulator, emitting the reconciled hit/miss once every
// candidate point has reported.
func (a *AccelStructure) report(id uint64, hit geom.Hit, ok bool) {
	a.mu.Lock()
	t := a.inFlight[id]
	a.mu.Unlock()
	if t == nil {
		return
	}

	done, finalHit, finalOK := t.resolve(hit, ok)
	if !done {
		return
	}

	a.mu.Lock()
	delete(a.inFlight, id)
	a.mu.Unlock()

	if finalOK {
		a.emitHit(t.ray, finalHit)
	} else {
		a.emitMiss(t.ray)
	}
}

func (a *AccelStructure) busiest() (int, *BatchingPoint) {
	bestIdx, bestCount := -1, 0
	for i, p := range a.points {
		if n := p.pendingCount(); n > bestCount {
			bestIdx, bestCount = i, n
		}
	}
	if bestIdx < 0 {
		return -1, nil
	}
	return bestIdx, a.points[bestIdx]
}

func (a *AccelStructure) emitHit(ray geom.Ray, hit geom.Hit) {
	ev := HitEvent{Ray: ray, Hit: hit}
	if ray.AnyHit {
		if a.onAnyHit != nil {
			a.onAnyHit.Push(ev)
		}
		return
	}
	if a.onHit != nil {
		a.onHit.Push(ev)
	}
}

func (a *AccelStructure) emitMiss(ray geom.Ray) {
	ev := MissEvent{Ray: ray}
	if ray.AnyHit {
		if a.onAnyMiss != nil {
			a.onAnyMiss.Push(ev)
		}
		return
	}
	if a.onMiss != nil {
		a.onMiss.Push(ev)
	}
}

// Submit walks the top-level BVH for each ray and enqueues it onto every
// overlapping batching point's pending queue, to be processed on a
// subsequent TryRun. A ray overlapping zero batching points misses
// immediately; one overlapping several is reconciled by a shared
// traversal accumulator so the nearest hit across all of them wins.
func (a *AccelStructure) Submit(rays []geom.Ray) {
	// Per-point staging buffers: every queued ray is staged locally and
	// flushed into its point's shared queue once per Submit call, so the
	// queue lock is taken once per touched point rather than once per ray.
	staged := make(map[int]*stream.Producer[queuedRay])
	for _, r := range rays {
		var candidates []int
		invDir := r.InvDir()
		a.walkTop(0, r, invDir, func(pointIdx int) {
			candidates = append(candidates, pointIdx)
		})
		if len(candidates) == 0 {
			a.emitMiss(r)
			continue
		}
		id := a.traversalSeq.Add(1)
		t := &traversal{ray: r, remaining: len(candidates)}
		a.mu.Lock()
		a.inFlight[id] = t
		a.mu.Unlock()
		for _, pointIdx := range candidates {
			p, ok := staged[pointIdx]
			if !ok {
				p = stream.AcquireProducer[queuedRay]()
				staged[pointIdx] = p
			}
			p.Stage(queuedRay{ray: r, traversal: id})
		}
	}
	for idx, p := range staged {
		p.Flush(a.points[idx].pending)
		stream.ReleaseProducer(p)
	}
}

func (a *AccelStructure) walkTop(nodeIdx int32, ray geom.Ray, invDir geom.Vec3, visit func(pointIdx int)) {
	if nodeIdx < 0 || int(nodeIdx) >= len(a.top) {
		return
	}
	n := &a.top[nodeIdx]
	if !n.Bounds.IntersectP(ray.Origin, invDir, ray.TNear, ray.TFar) {
		return
	}
	if n.isLeaf() {
		visit(int(n.PointIndex))
		return
	}
	a.walkTop(n.Left, ray, invDir, visit)
	a.walkTop(n.Right, ray, invDir, visit)
}

// PointCount reports the number of batching points in the structure.
func (a *AccelStructure) PointCount() int { return len(a.points) }
