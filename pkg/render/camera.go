package render

// camera.go provides the simple orthographic primary-ray generator the
// package's tests use. A production camera model is out of scope for
// the traversal substrate; one ray per pixel through the scene's XY bounds
// is enough to exercise every batching point a scene partitions into.

import (
	"math"

	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/integrator/reference"
	"github.com/pandora-render/pandora/pkg/scene"
)

// OrthographicRays fires one +Z-facing ray per pixel through the scene's
// XY bounding rectangle, each carrying a reference.PixelState so the
// reference integrator can accumulate into the right film texel.
func OrthographicRays(scn *scene.Scene, width, height int) []geom.Ray {
	bounds := geom.EmptyBounds()
	for _, obj := range scn.Objects {
		for _, s := range obj.Shapes {
			bounds = bounds.Union(s.Bounds())
		}
	}
	diag := bounds.Diagonal()
	rays := make([]geom.Ray, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			u := (float32(x) + 0.5) / float32(width)
			v := (float32(y) + 0.5) / float32(height)
			origin := geom.Vec3{
				X: bounds.Min.X + u*diag.X,
				Y: bounds.Min.Y + v*diag.Y,
				Z: bounds.Min.Z - 1,
			}
			rays = append(rays, geom.Ray{
				Origin: origin,
				Dir:    geom.Vec3{X: 0, Y: 0, Z: 1},
				TNear:  0,
				TFar:   float32(math.MaxFloat32),
				State:  reference.PixelState{X: x, Y: y},
			})
		}
	}
	return rays
}
