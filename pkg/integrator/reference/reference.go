// Package reference implements a minimal reference integrator: a
// single-bounce visibility pass whose purpose is to exercise the
// traversal substrate end to end, not to produce production image
// quality. Hit/miss callbacks feed a film; there is no BSDF evaluation,
// light sampling or bounce spawning.
//
// © 2025 pandora authors. MIT License.
package reference

import (
	"sync"

	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/scene"
)

// PixelState is the opaque per-ray state the acceleration structure
// threads through geom.Ray.State and hands back on hit/miss.
type PixelState struct {
	X, Y int
}

// Film accumulates per-pixel radiance. It is safe for concurrent
// AddSample calls from multiple task-graph worker goroutines.
type Film struct {
	mu     sync.Mutex
	width  int
	height int
	pixels []geom.Vec3
}

func NewFilm(width, height int) *Film {
	return &Film{width: width, height: height, pixels: make([]geom.Vec3, width*height)}
}

func (f *Film) AddSample(x, y int, radiance geom.Vec3) {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := y*f.width + x
	f.pixels[idx] = f.pixels[idx].Add(radiance)
}

func (f *Film) At(x, y int) geom.Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pixels[y*f.width+x]
}

// Integrator ties a Scene and Film together behind the RayHitFunc/
// RayMissFunc signature pkg/integrator.NewHandles expects.
type Integrator struct {
	scene      *scene.Scene
	film       *Film
	background geom.Vec3
	lightByObj map[int]geom.Vec3
}

func New(scn *scene.Scene, film *Film, background geom.Vec3) *Integrator {
	byObj := make(map[int]geom.Vec3, len(scn.Lights))
	for _, l := range scn.Lights {
		byObj[l.ObjectIndex] = l.Radiance
	}
	return &Integrator{scene: scn, film: film, background: background, lightByObj: byObj}
}

// RayHit records the emitted radiance of the object the ray struck, if that
// object is an area light; hits on non-emitting objects add nothing. It
// deliberately does not evaluate a BSDF or sample lights for indirect
// bounces.
func (in *Integrator) RayHit(ray geom.Ray, hit geom.Hit) {
	ps, ok := ray.State.(PixelState)
	if !ok {
		return
	}
	emitted, isLight := in.lightByObj[int(hit.ObjectID)]
	if !isLight {
		return
	}
	in.film.AddSample(ps.X, ps.Y, emitted)
}

// RayMiss records the background/environment term for a primary ray that
// escaped the scene.
func (in *Integrator) RayMiss(ray geom.Ray) {
	ps, ok := ray.State.(PixelState)
	if !ok {
		return
	}
	in.film.AddSample(ps.X, ps.Y, in.background)
}

// RayAnyHit and RayAnyMiss back the any-hit/any-miss routing variant used
// for shadow-ray-shaped occlusion queries; this reference integrator does
// not issue shadow rays (light sampling is out of scope), but the hooks
// are wired so a caller experimenting with occlusion queries has
// somewhere to plug in.
func (in *Integrator) RayAnyHit(ray geom.Ray, hit geom.Hit) {}
func (in *Integrator) RayAnyMiss(ray geom.Ray)              {}
