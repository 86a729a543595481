package scene

// scene_test.go exercises the scene builder's validation contract: a node
// or light referencing an unknown object index is rejected at build time
// rather than surfacing later as a traversal-time panic, and an empty
// scene is rejected outright since a batching point built over it would
// have zero shapes.
//
// © 2025 pandora authors. MIT License.

import (
	"testing"

	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/shapes"
)

func TestBuilderRejectsEmptyScene(t *testing.T) {
	if _, err := NewBuilder().Build(); err == nil {
		t.Fatal("expected an error building an empty scene")
	}
}

func TestBuilderRejectsUnknownNodeObject(t *testing.T) {
	b := NewBuilder()
	if err := b.AddNode(0, geom.Identity()); err == nil {
		t.Fatal("expected an error referencing an object index out of range")
	}
}

func TestBuilderRejectsUnknownLightObject(t *testing.T) {
	b := NewBuilder()
	b.AddObject(Object{Name: "only", Transform: geom.Identity()})
	if err := b.AddLight(AreaLight{ObjectIndex: 5}); err == nil {
		t.Fatal("expected an error referencing an object index out of range")
	}
}

func TestBuilderRoundTrip(t *testing.T) {
	b := NewBuilder()
	tri := &shapes.TriangleShape{
		P0: geom.Vec3{X: -1, Y: -1, Z: 0},
		P1: geom.Vec3{X: 1, Y: -1, Z: 0},
		P2: geom.Vec3{X: 0, Y: 1, Z: 0},
	}
	objIdx := b.AddObject(Object{Name: "tri", Transform: geom.Identity(), Shapes: []shapes.Shape{tri}})
	if err := b.AddNode(objIdx, geom.Translate(geom.Vec3{X: 3, Y: 0, Z: 0})); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := b.AddLight(AreaLight{ObjectIndex: objIdx, Radiance: geom.Vec3{X: 1, Y: 1, Z: 1}}); err != nil {
		t.Fatalf("AddLight: %v", err)
	}

	scn, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(scn.Objects) != 1 || len(scn.Nodes) != 1 || len(scn.Lights) != 1 {
		t.Fatalf("unexpected scene shape: %+v", scn)
	}
	if scn.Nodes[0].ObjToWorld[3] != 3 {
		t.Fatalf("node translation not preserved: %+v", scn.Nodes[0].ObjToWorld)
	}
}
