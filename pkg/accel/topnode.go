package accel

// topnode.go implements the flat-array BVH builder shared by both levels
// of the structure: the top-level BVH over batching points (where it keeps
// the whole top structure resident and cache-friendly regardless of how
// many sub-BVHs have been evicted to disk) and each batching point's
// sub-BVH over its shapes.
//
// © 2025 pandora authors. MIT License.

import (
	"sort"

	"github.com/pandora-render/pandora/pkg/geom"
)

// topNode is either an interior node (Left/Right index other topNodes) or a
// leaf (PointIndex >= 0, indexing into AccelStructure.points).
type topNode struct {
	Bounds     geom.Bounds3
	Left       int32
	Right      int32
	PointIndex int32 // -1 for interior nodes
}

func (n *topNode) isLeaf() bool { return n.PointIndex >= 0 }

// buildTopLevel constructs a flat median-split BVH over the given leaf
// bounds, returning the node array rooted at index 0.
func buildTopLevel(bounds []geom.Bounds3) []topNode {
	indices := make([]int, len(bounds))
	for i := range indices {
		indices[i] = i
	}
	var nodes []topNode
	buildRange(&nodes, bounds, indices)
	return nodes
}

// buildRange recursively partitions indices by the centroid median along
// the longest axis of their combined bounds, appending nodes in
// depth-first order and returning the index of the node just appended for
// this range.
func buildRange(nodes *[]topNode, bounds []geom.Bounds3, indices []int) int {
	combined := geom.EmptyBounds()
	centroidBounds := geom.EmptyBounds()
	for _, idx := range indices {
		combined = combined.Union(bounds[idx])
		centroidBounds = centroidBounds.UnionPoint(bounds[idx].Centroid())
	}

	if len(indices) == 1 {
		*nodes = append(*nodes, topNode{Bounds: combined, PointIndex: int32(indices[0]), Left: -1, Right: -1})
		return len(*nodes) - 1
	}

	axis := centroidBounds.MaxExtentAxis()
	sortByCentroidAxis(indices, bounds, axis)
	mid := len(indices) / 2

	myIdx := len(*nodes)
	*nodes = append(*nodes, topNode{Bounds: combined, PointIndex: -1})

	left := buildRange(nodes, bounds, indices[:mid])
	right := buildRange(nodes, bounds, indices[mid:])
	(*nodes)[myIdx].Left = int32(left)
	(*nodes)[myIdx].Right = int32(right)
	return myIdx
}

func sortByCentroidAxis(indices []int, bounds []geom.Bounds3, axis int) {
	key := func(idx int) float32 {
		c := bounds[idx].Centroid()
		switch axis {
		case 0:
			return c.X
		case 1:
			return c.Y
		default:
			return c.Z
		}
	}
	// This builder also runs over per-triangle bounds inside a sub-BVH,
	// where leaf counts reach millions, so the sort must be O(n log n).
	sort.Slice(indices, func(i, j int) bool {
		return key(indices[i]) < key(indices[j])
	})
}
