package accel

// subbvh.go implements the per-batching-point sub-BVH: the unit of
// residency the typed-variant cache manages. A SubBVH is built once from
// its shape list and is otherwise read-only; Serialize/MakeResident let it
// round-trip through disk storage when evicted, so a point's geometry is
// rebuilt or reloaded on demand rather than kept permanently resident.
//
// © 2025 pandora authors. MIT License.

import (
	"encoding/binary"
	"fmt"

	"github.com/pandora-render/pandora/pkg/cacheable"
	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/shapes"
)

// SubBVH is a self-contained BVH over one batching point's shapes.
type SubBVH struct {
	nodes  []topNode
	shapes []shapes.Shape
}

// BuildSubBVH constructs a sub-BVH over shapeList. shapeList must not be
// empty.
func BuildSubBVH(shapeList []shapes.Shape) (*SubBVH, error) {
	if len(shapeList) == 0 {
		return nil, fmt.Errorf("accel: cannot build a sub-BVH over zero shapes")
	}
	bounds := make([]geom.Bounds3, len(shapeList))
	for i, s := range shapeList {
		bounds[i] = s.Bounds()
	}
	return &SubBVH{
		nodes:  buildTopLevel(bounds),
		shapes: shapeList,
	}, nil
}

func (s *SubBVH) Bounds() geom.Bounds3 {
	if len(s.nodes) == 0 {
		return geom.EmptyBounds()
	}
	return s.nodes[0].Bounds
}

// Intersect walks the sub-BVH narrowing ray.TFar as closer hits are found.
// If ray.AnyHit is set, traversal stops at the first intersection.
func (s *SubBVH) Intersect(ray geom.Ray) (geom.Hit, bool) {
	if len(s.nodes) == 0 {
		return geom.Hit{}, false
	}
	invDir := ray.InvDir()
	var best geom.Hit
	found := false
	var walk func(idx int32)
	walk = func(idx int32) {
		n := &s.nodes[idx]
		if !n.Bounds.IntersectP(ray.Origin, invDir, ray.TNear, ray.TFar) {
			return
		}
		if n.isLeaf() {
			h, ok := s.shapes[n.PointIndex].Intersect(ray)
			if ok {
				best = h
				found = true
				ray.TFar = h.T
			}
			return
		}
		walk(n.Left)
		if found && ray.AnyHit {
			return
		}
		walk(n.Right)
	}
	walk(0)
	return best, found
}

// SizeBytes implements cacheable.Cacheable.
func (s *SubBVH) SizeBytes() int64 {
	var total int64
	for _, sh := range s.shapes {
		total += sh.SizeBytes()
	}
	return total
}

// Serialize implements cacheable.Cacheable by flattening every shape's own
// wire record back to back, prefixed with a count. Sub-BVH topology itself
// is not persisted; it is cheap to rebuild from the shape list on load
// (BuildSubBVH is a median split over the restored bounds).
func (s *SubBVH) Serialize(ser cacheable.Serializer) (cacheable.Allocation, error) {
	var buf []byte
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(s.shapes)))
	buf = append(buf, header...)
	for _, sh := range s.shapes {
		tri, ok := sh.(*shapes.TriangleShape)
		if !ok {
			return cacheable.Allocation{}, fmt.Errorf("accel: sub-BVH serialization only supports triangle shapes")
		}
		alloc, err := tri.Serialize(ser)
		if err != nil {
			return cacheable.Allocation{}, err
		}
		rec := make([]byte, 12)
		binary.LittleEndian.PutUint32(rec[0:4], uint32(alloc.Segment))
		binary.LittleEndian.PutUint32(rec[4:8], uint32(alloc.Offset))
		binary.LittleEndian.PutUint32(rec[8:12], uint32(alloc.Length))
		buf = append(buf, rec...)
	}
	return ser.Store(buf)
}

// MakeResident implements cacheable.Cacheable, rebuilding the sub-BVH's
// topology after restoring its shapes from disk.
func (s *SubBVH) MakeResident(deser cacheable.Deserializer, alloc cacheable.Allocation) error {
	buf, err := deser.Load(alloc)
	if err != nil {
		return err
	}
	if len(buf) < 4 {
		return fmt.Errorf("accel: truncated sub-BVH record")
	}
	count := binary.LittleEndian.Uint32(buf[0:4])
	buf = buf[4:]
	if len(buf) != int(count)*12 {
		return fmt.Errorf("accel: sub-BVH record length mismatch")
	}
	restored := make([]shapes.Shape, count)
	for i := uint32(0); i < count; i++ {
		rec := buf[i*12 : i*12+12]
		shapeAlloc := cacheable.Allocation{
			Segment: int(binary.LittleEndian.Uint32(rec[0:4])),
			Offset:  int(binary.LittleEndian.Uint32(rec[4:8])),
			Length:  int(binary.LittleEndian.Uint32(rec[8:12])),
		}
		tri := &shapes.TriangleShape{}
		if err := tri.MakeResident(deser, shapeAlloc); err != nil {
			return err
		}
		restored[i] = tri
	}
	bounds := make([]geom.Bounds3, len(restored))
	for i, sh := range restored {
		bounds[i] = sh.Bounds()
	}
	s.shapes = restored
	s.nodes = buildTopLevel(bounds)
	return nil
}

// Evict implements cacheable.Cacheable, releasing the in-memory topology
// and shape list once the cache no longer keeps this value resident.
func (s *SubBVH) Evict() {
	s.nodes = nil
	s.shapes = nil
}
