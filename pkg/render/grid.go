package render

// grid.go partitions a Scene's shapes into batching points using a
// uniform spatial grid over the scene's overall bounds: spatially local
// groups of roughly bounded size, which is all the traversal substrate
// needs from the partitioning step.

import (
	"github.com/pandora-render/pandora/pkg/accel"
	"github.com/pandora-render/pandora/pkg/cache"
	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/scene"
	"github.com/pandora-render/pandora/pkg/shapes"
)

func partitionIntoBatchingPoints(scn *scene.Scene, pointsPerAxis int) []accel.PointSpec {
	sceneBounds := geom.EmptyBounds()
	allShapes := make([]shapes.Shape, 0)
	for _, obj := range scn.Objects {
		for _, s := range obj.Shapes {
			sceneBounds = sceneBounds.Union(s.Bounds())
			allShapes = append(allShapes, s)
		}
	}

	diag := sceneBounds.Diagonal()
	cellSize := geom.Vec3{
		X: diag.X / float32(pointsPerAxis),
		Y: diag.Y / float32(pointsPerAxis),
		Z: diag.Z / float32(pointsPerAxis),
	}

	cellOf := func(p geom.Vec3) (int, int, int) {
		cx := cellIndex(p.X, sceneBounds.Min.X, cellSize.X, pointsPerAxis)
		cy := cellIndex(p.Y, sceneBounds.Min.Y, cellSize.Y, pointsPerAxis)
		cz := cellIndex(p.Z, sceneBounds.Min.Z, cellSize.Z, pointsPerAxis)
		return cx, cy, cz
	}

	byCell := make(map[[3]int][]shapes.Shape)
	for _, s := range allShapes {
		cx, cy, cz := cellOf(s.Bounds().Centroid())
		key := [3]int{cx, cy, cz}
		byCell[key] = append(byCell[key], s)
	}

	specs := make([]accel.PointSpec, 0, len(byCell))
	var id cache.ID
	for _, shapeList := range byCell {
		specs = append(specs, accel.PointSpec{ID: id, Shapes: shapeList})
		id++
	}
	return specs
}

func cellIndex(v, min, size float32, count int) int {
	if size <= 0 {
		return 0
	}
	idx := int((v - min) / size)
	if idx < 0 {
		idx = 0
	}
	if idx >= count {
		idx = count - 1
	}
	return idx
}
