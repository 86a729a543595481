package geom

// Ray is a traversal query: mutable TFar narrows as closer hits are found
// during sub-BVH traversal. State carries the integrator-defined opaque
// user state (pixel index, throughput, sampler, path depth); the
// traversal never inspects it.
type Ray struct {
	Origin, Dir  Vec3
	TNear, TFar  float32
	State        any
	AnyHit       bool // true routes to the any-hit/any-miss stages and short-circuits traversal
}

func (r Ray) InvDir() Vec3 {
	return Vec3{1 / r.Dir.X, 1 / r.Dir.Y, 1 / r.Dir.Z}
}

func (r Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// Hit is the traversal substrate's RayHit.
type Hit struct {
	PrimID   uint32
	U, V     float32
	T        float32
	ObjectID uint32 // index into the scene's flattened object table
}
