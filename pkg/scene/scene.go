// Package scene implements the immutable scene graph the acceleration
// structure and integrator traverse against: named objects referencing
// triangle meshes, area lights, and a flat node list holding per-instance
// transforms. The graph is a build-then-freeze array rather than a mutable
// parent/child tree because nothing downstream of scene construction ever
// mutates it again.
//
// © 2025 pandora authors. MIT License.
package scene

import (
	"fmt"

	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/shapes"
)

// Object is a named collection of shapes sharing one instance transform.
type Object struct {
	Name      string
	Transform geom.Mat4
	Shapes    []shapes.Shape
}

// AreaLight attaches emission to an object's shapes for the reference
// integrator's direct-lighting estimate.
type AreaLight struct {
	ObjectIndex int
	Radiance    geom.Vec3
}

// Node is a flattened instance: an index into Scene.Objects plus the
// object-to-world transform given to AddNode and its inverse.
type Node struct {
	ObjectIndex int
	WorldToObj  geom.Mat4
	ObjToWorld  geom.Mat4
}

// Scene is immutable once returned by Builder.Build.
type Scene struct {
	Objects []Object
	Nodes   []Node
	Lights  []AreaLight
}

// Builder accumulates objects, lights and nodes before freezing them into a
// Scene. It is not safe for concurrent use; build the scene single
// threaded, then share the resulting *Scene freely (it is read-only).
type Builder struct {
	objects []Object
	lights  []AreaLight
	nodes   []Node
}

func NewBuilder() *Builder { return &Builder{} }

// AddObject registers an object and returns its index for use in AddNode
// and AddLight.
func (b *Builder) AddObject(obj Object) int {
	b.objects = append(b.objects, obj)
	return len(b.objects) - 1
}

// AddNode instances objectIndex at the given world transform.
func (b *Builder) AddNode(objectIndex int, objToWorld geom.Mat4) error {
	if objectIndex < 0 || objectIndex >= len(b.objects) {
		return fmt.Errorf("scene: object index %d out of range", objectIndex)
	}
	b.nodes = append(b.nodes, Node{
		ObjectIndex: objectIndex,
		ObjToWorld:  objToWorld,
		WorldToObj:  invertAffine(objToWorld),
	})
	return nil
}

func (b *Builder) AddLight(light AreaLight) error {
	if light.ObjectIndex < 0 || light.ObjectIndex >= len(b.objects) {
		return fmt.Errorf("scene: light references unknown object %d", light.ObjectIndex)
	}
	b.lights = append(b.lights, light)
	return nil
}

// Build freezes the accumulated state into a Scene. The Builder must not be
// reused afterward.
func (b *Builder) Build() (*Scene, error) {
	if len(b.objects) == 0 {
		return nil, fmt.Errorf("scene: cannot build an empty scene")
	}
	s := &Scene{
		Objects: make([]Object, len(b.objects)),
		Nodes:   make([]Node, len(b.nodes)),
		Lights:  make([]AreaLight, len(b.lights)),
	}
	copy(s.Objects, b.objects)
	copy(s.Nodes, b.nodes)
	copy(s.Lights, b.lights)
	return s, nil
}

// invertAffine inverts the translation-only subset of affine transforms
// the importer currently produces; nothing feeds it a rotation or scale.
func invertAffine(m geom.Mat4) geom.Mat4 {
	inv := geom.Identity()
	inv[3] = -m[3]
	inv[7] = -m[7]
	inv[11] = -m[11]
	return inv
}
