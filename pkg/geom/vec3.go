// Package geom provides the minimal vector, bounds and ray/hit types
// shared by the scene graph, shapes and acceleration structure. The
// traversal substrate only needs enough geometry to traverse and report
// hits; full shading math lives elsewhere. Everything is float32, the
// single precision traversal works in.
//
// © 2025 pandora authors. MIT License.
package geom

import "math"

// Vec3 is a 3-component single-precision vector.
type Vec3 struct {
	X, Y, Z float32
}

func NewVec3(x, y, z float32) Vec3 { return Vec3{x, y, z} }

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Mul(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Div(s float32) Vec3 { return a.Mul(1 / s) }
func (a Vec3) Neg() Vec3          { return Vec3{-a.X, -a.Y, -a.Z} }

func Dot(a, b Vec3) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func Cross(a, b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) Length() float32 { return float32(math.Sqrt(float64(Dot(a, a)))) }

func (a Vec3) Normalize() Vec3 {
	l := a.Length()
	if l == 0 {
		return a
	}
	return a.Div(l)
}

// MinComponents / MaxComponents support bounds accumulation.
func MinComponents(a, b Vec3) Vec3 {
	return Vec3{min32(a.X, b.X), min32(a.Y, b.Y), min32(a.Z, b.Z)}
}

func MaxComponents(a, b Vec3) Vec3 {
	return Vec3{max32(a.X, b.X), max32(a.Y, b.Y), max32(a.Z, b.Z)}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
