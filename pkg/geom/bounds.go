package geom

import "math"

// Bounds3 is an axis-aligned bounding box.
type Bounds3 struct {
	Min, Max Vec3
}

func EmptyBounds() Bounds3 {
	inf := float32(math.Inf(1))
	return Bounds3{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

func (b Bounds3) Union(o Bounds3) Bounds3 {
	return Bounds3{
		Min: MinComponents(b.Min, o.Min),
		Max: MaxComponents(b.Max, o.Max),
	}
}

func (b Bounds3) UnionPoint(p Vec3) Bounds3 {
	return Bounds3{
		Min: MinComponents(b.Min, p),
		Max: MaxComponents(b.Max, p),
	}
}

func (b Bounds3) Centroid() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Bounds3) Diagonal() Vec3 {
	return b.Max.Sub(b.Min)
}

// MaxExtentAxis returns 0/1/2 for the longest axis, used to pick a split
// dimension during top-down binary partitioning.
func (b Bounds3) MaxExtentAxis() int {
	d := b.Diagonal()
	if d.X > d.Y && d.X > d.Z {
		return 0
	}
	if d.Y > d.Z {
		return 1
	}
	return 2
}

// IntersectP performs the classic slab test against [tNear, tFar], returning
// whether the ray overlaps the box within that range.
func (b Bounds3) IntersectP(origin, invDir Vec3, tNear, tFar float32) bool {
	for axis := 0; axis < 3; axis++ {
		var o, id, lo, hi float32
		switch axis {
		case 0:
			o, id, lo, hi = origin.X, invDir.X, b.Min.X, b.Max.X
		case 1:
			o, id, lo, hi = origin.Y, invDir.Y, b.Min.Y, b.Max.Y
		default:
			o, id, lo, hi = origin.Z, invDir.Z, b.Min.Z, b.Max.Z
		}
		t0 := (lo - o) * id
		t1 := (hi - o) * id
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tNear > tFar {
			return false
		}
	}
	return true
}
