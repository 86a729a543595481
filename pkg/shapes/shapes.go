// Package shapes implements the primitive geometry the acceleration
// structure's sub-BVHs bottom out at. A Shape is the unit the batching
// structure's leaf nodes intersect against and the unit disk-backed
// caching serializes; TriangleShape is the single shape kind implemented.
// Shading-normal and UV-derivative bookkeeping is left to the shading
// pipeline; traversal only needs barycentrics, distance and identity.
//
// © 2025 pandora authors. MIT License.
package shapes

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pandora-render/pandora/pkg/cacheable"
	"github.com/pandora-render/pandora/pkg/geom"
)

// Shape is anything a sub-BVH leaf can intersect a ray against.
type Shape interface {
	Bounds() geom.Bounds3
	Intersect(ray geom.Ray) (geom.Hit, bool)
	cacheable.Cacheable
}

// TriangleShape is a single triangle, identified by its object ID for hit
// reporting.
type TriangleShape struct {
	P0, P1, P2 geom.Vec3
	ObjectID   uint32
	PrimID     uint32
}

func (t *TriangleShape) Bounds() geom.Bounds3 {
	b := geom.EmptyBounds()
	b = b.UnionPoint(t.P0)
	b = b.UnionPoint(t.P1)
	b = b.UnionPoint(t.P2)
	return b
}

const epsilon = 1e-8

// Intersect implements the Möller-Trumbore ray/triangle test.
func (t *TriangleShape) Intersect(ray geom.Ray) (geom.Hit, bool) {
	edge1 := t.P1.Sub(t.P0)
	edge2 := t.P2.Sub(t.P0)
	pvec := geom.Cross(ray.Dir, edge2)
	det := geom.Dot(edge1, pvec)
	if det > -epsilon && det < epsilon {
		return geom.Hit{}, false
	}
	invDet := 1 / det

	tvec := ray.Origin.Sub(t.P0)
	u := geom.Dot(tvec, pvec) * invDet
	if u < 0 || u > 1 {
		return geom.Hit{}, false
	}

	qvec := geom.Cross(tvec, edge1)
	v := geom.Dot(ray.Dir, qvec) * invDet
	if v < 0 || u+v > 1 {
		return geom.Hit{}, false
	}

	tHit := geom.Dot(edge2, qvec) * invDet
	if tHit < ray.TNear || tHit > ray.TFar {
		return geom.Hit{}, false
	}

	return geom.Hit{
		PrimID:   t.PrimID,
		U:        u,
		V:        v,
		T:        tHit,
		ObjectID: t.ObjectID,
	}, true
}

// SizeBytes implements cacheable.Cacheable.
func (t *TriangleShape) SizeBytes() int64 {
	return 3*3*4 + 4 + 4
}

const triangleWireLen = 3*3*4 + 4 + 4

// Serialize implements cacheable.Cacheable, flattening the triangle into a
// fixed-width little-endian record.
func (t *TriangleShape) Serialize(ser cacheable.Serializer) (cacheable.Allocation, error) {
	buf := make([]byte, triangleWireLen)
	putVec3(buf[0:12], t.P0)
	putVec3(buf[12:24], t.P1)
	putVec3(buf[24:36], t.P2)
	binary.LittleEndian.PutUint32(buf[36:40], t.ObjectID)
	binary.LittleEndian.PutUint32(buf[40:44], t.PrimID)
	return ser.Store(buf)
}

// MakeResident implements cacheable.Cacheable, rehydrating the triangle
// from a previously stored allocation.
func (t *TriangleShape) MakeResident(deser cacheable.Deserializer, alloc cacheable.Allocation) error {
	buf, err := deser.Load(alloc)
	if err != nil {
		return err
	}
	if len(buf) != triangleWireLen {
		return fmt.Errorf("shapes: triangle record has length %d, want %d", len(buf), triangleWireLen)
	}
	t.P0 = getVec3(buf[0:12])
	t.P1 = getVec3(buf[12:24])
	t.P2 = getVec3(buf[24:36])
	t.ObjectID = binary.LittleEndian.Uint32(buf[36:40])
	t.PrimID = binary.LittleEndian.Uint32(buf[40:44])
	return nil
}

// Evict implements cacheable.Cacheable; the triangle holds no resources
// beyond its own fields, so there is nothing to release.
func (t *TriangleShape) Evict() {}

func putVec3(buf []byte, v geom.Vec3) {
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.Z))
}

func getVec3(buf []byte) geom.Vec3 {
	return geom.Vec3{
		X: math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12])),
	}
}
