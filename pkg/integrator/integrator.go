// Package integrator wires a renderer's hit/miss/any-hit/any-miss
// handlers into the task graph as typed stages. The acceleration
// structure's flush path pushes each resolved ray event to the handles
// this package registers, so integrator state flows back per pixel
// without the integrator knowing anything about batching or residency.
//
// © 2025 pandora authors. MIT License.
package integrator

import (
	"context"

	"github.com/pandora-render/pandora/pkg/accel"
	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/taskgraph"
)

// RayHitFunc handles a resolved intersection.
type RayHitFunc func(ray geom.Ray, hit geom.Hit)

// RayMissFunc handles a ray that intersected nothing.
type RayMissFunc func(ray geom.Ray)

// Handles bundles the four task-graph stages an AccelStructure routes
// events through. Construct with NewHandles and pass the Hit/Miss/AnyHit/
// AnyMiss fields into accel.Options when building the acceleration
// structure.
type Handles struct {
	Hit     *taskgraph.TaskHandle[accel.HitEvent]
	Miss    *taskgraph.TaskHandle[accel.MissEvent]
	AnyHit  *taskgraph.TaskHandle[accel.HitEvent]
	AnyMiss *taskgraph.TaskHandle[accel.MissEvent]
}

// NewHandles registers four task-graph stages -- hit, miss, any-hit,
// any-miss -- backed by the given callbacks, and returns them bundled for
// accel.Build.
func NewHandles(g *taskgraph.Graph, onHit RayHitFunc, onMiss RayMissFunc, onAnyHit RayHitFunc, onAnyMiss RayMissFunc) *Handles {
	return &Handles{
		Hit: taskgraph.NewTaskHandle[accel.HitEvent](g, "integrator_hit", 0, func(ctx context.Context, items []accel.HitEvent) error {
			for _, ev := range items {
				onHit(ev.Ray, ev.Hit)
			}
			return nil
		}),
		Miss: taskgraph.NewTaskHandle[accel.MissEvent](g, "integrator_miss", 0, func(ctx context.Context, items []accel.MissEvent) error {
			for _, ev := range items {
				onMiss(ev.Ray)
			}
			return nil
		}),
		AnyHit: taskgraph.NewTaskHandle[accel.HitEvent](g, "integrator_anyhit", 0, func(ctx context.Context, items []accel.HitEvent) error {
			for _, ev := range items {
				onAnyHit(ev.Ray, ev.Hit)
			}
			return nil
		}),
		AnyMiss: taskgraph.NewTaskHandle[accel.MissEvent](g, "integrator_anymiss", 0, func(ctx context.Context, items []accel.MissEvent) error {
			for _, ev := range items {
				onAnyMiss(ev.Ray)
			}
			return nil
		}),
	}
}

// Options adapts Handles into the shape accel.Build expects.
func (h *Handles) Options(batchSize int) accel.Options {
	return accel.Options{
		BatchSize: batchSize,
		OnHit:     h.Hit,
		OnMiss:    h.Miss,
		OnAnyHit:  h.AnyHit,
		OnAnyMiss: h.AnyMiss,
	}
}
