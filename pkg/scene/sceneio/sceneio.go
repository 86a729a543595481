// Package sceneio implements the JSON scene importer: a minimal format
// (objects, triangles, instance nodes, lights) good enough to exercise
// the batching acceleration structure and cache without dragging in a
// production asset pipeline.
//
// © 2025 pandora authors. MIT License.
package sceneio

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/scene"
	"github.com/pandora-render/pandora/pkg/shapes"
)

type wireVec3 [3]float32

func (v wireVec3) toVec3() geom.Vec3 { return geom.Vec3{X: v[0], Y: v[1], Z: v[2]} }

type wireTriangle struct {
	P0 wireVec3 `json:"p0"`
	P1 wireVec3 `json:"p1"`
	P2 wireVec3 `json:"p2"`
}

type wireObject struct {
	Name      string         `json:"name"`
	Triangles []wireTriangle `json:"triangles"`
}

type wireNode struct {
	Object      string   `json:"object"`
	Translation wireVec3 `json:"translation"`
}

type wireLight struct {
	Object   string   `json:"object"`
	Radiance wireVec3 `json:"radiance"`
}

type wireScene struct {
	Objects []wireObject `json:"objects"`
	Nodes   []wireNode   `json:"nodes"`
	Lights  []wireLight  `json:"lights"`
}

// Decode reads a JSON scene document from r and builds a *scene.Scene.
func Decode(r io.Reader) (*scene.Scene, error) {
	var doc wireScene
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("sceneio: decode: %w", err)
	}

	b := scene.NewBuilder()
	byName := make(map[string]int, len(doc.Objects))
	var primCounter uint32

	for objIdx, wobj := range doc.Objects {
		shapeList := make([]shapes.Shape, 0, len(wobj.Triangles))
		for _, wtri := range wobj.Triangles {
			shapeList = append(shapeList, &shapes.TriangleShape{
				P0:       wtri.P0.toVec3(),
				P1:       wtri.P1.toVec3(),
				P2:       wtri.P2.toVec3(),
				ObjectID: uint32(objIdx),
				PrimID:   primCounter,
			})
			primCounter++
		}
		idx := b.AddObject(scene.Object{
			Name:      wobj.Name,
			Transform: geom.Identity(),
			Shapes:    shapeList,
		})
		byName[wobj.Name] = idx
	}

	for _, wnode := range doc.Nodes {
		objIdx, ok := byName[wnode.Object]
		if !ok {
			return nil, fmt.Errorf("sceneio: node references unknown object %q", wnode.Object)
		}
		if err := b.AddNode(objIdx, geom.Translate(wnode.Translation.toVec3())); err != nil {
			return nil, err
		}
	}

	for _, wlight := range doc.Lights {
		objIdx, ok := byName[wlight.Object]
		if !ok {
			return nil, fmt.Errorf("sceneio: light references unknown object %q", wlight.Object)
		}
		if err := b.AddLight(scene.AreaLight{ObjectIndex: objIdx, Radiance: wlight.Radiance.toVec3()}); err != nil {
			return nil, err
		}
	}

	return b.Build()
}

// Encode writes scn back out as a JSON document, primarily for
// tools/scenegen and round-trip tests.
func Encode(w io.Writer, scn *scene.Scene) error {
	doc := wireScene{}
	nameOf := make([]string, len(scn.Objects))
	for i, obj := range scn.Objects {
		tris := make([]wireTriangle, 0, len(obj.Shapes))
		for _, sh := range obj.Shapes {
			tri, ok := sh.(*shapes.TriangleShape)
			if !ok {
				continue
			}
			tris = append(tris, wireTriangle{
				P0: wireVec3{tri.P0.X, tri.P0.Y, tri.P0.Z},
				P1: wireVec3{tri.P1.X, tri.P1.Y, tri.P1.Z},
				P2: wireVec3{tri.P2.X, tri.P2.Y, tri.P2.Z},
			})
		}
		nameOf[i] = obj.Name
		doc.Objects = append(doc.Objects, wireObject{Name: obj.Name, Triangles: tris})
	}
	for _, node := range scn.Nodes {
		t := geom.Vec3{X: node.ObjToWorld[3], Y: node.ObjToWorld[7], Z: node.ObjToWorld[11]}
		doc.Nodes = append(doc.Nodes, wireNode{
			Object:      nameOf[node.ObjectIndex],
			Translation: wireVec3{t.X, t.Y, t.Z},
		})
	}
	for _, light := range scn.Lights {
		doc.Lights = append(doc.Lights, wireLight{
			Object:   nameOf[light.ObjectIndex],
			Radiance: wireVec3{light.Radiance.X, light.Radiance.Y, light.Radiance.Z},
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
