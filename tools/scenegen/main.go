package main

// main.go is a tiny helper utility to generate deterministic synthetic
// scenes for standalone benchmarking of the batching acceleration
// structure, outside `go test`. It emits a JSON scene document compatible
// with pkg/scene/sceneio.Decode.
//
// Usage:
//
//	go run ./tools/scenegen -objects 10000 -seed 42 -out scene.json
//
// © 2025 pandora authors. MIT License.

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/scene"
	"github.com/pandora-render/pandora/pkg/scene/sceneio"
	"github.com/pandora-render/pandora/pkg/shapes"
)

func main() {
	var (
		objects  = flag.Int("objects", 1000, "number of single-triangle objects to generate")
		extent   = flag.Float64("extent", 100, "objects are scattered uniformly in [-extent, extent]^3")
		seedVal  = flag.Int64("seed", 42, "PRNG seed")
		outPath  = flag.String("out", "", "output file (default stdout)")
		lightPct = flag.Float64("light-fraction", 0.01, "fraction of objects that also emit as area lights")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))
	b := scene.NewBuilder()

	randPoint := func() geom.Vec3 {
		e := float32(*extent)
		return geom.Vec3{
			X: (rnd.Float32()*2 - 1) * e,
			Y: (rnd.Float32()*2 - 1) * e,
			Z: (rnd.Float32()*2 - 1) * e,
		}
	}

	for i := 0; i < *objects; i++ {
		center := randPoint()
		tri := &shapes.TriangleShape{
			P0: center.Add(geom.Vec3{X: -0.5, Y: -0.5, Z: 0}),
			P1: center.Add(geom.Vec3{X: 0.5, Y: -0.5, Z: 0}),
			P2: center.Add(geom.Vec3{X: 0, Y: 0.5, Z: 0}),
		}
		name := fmt.Sprintf("obj-%d", i)
		objIdx := b.AddObject(scene.Object{Name: name, Transform: geom.Identity(), Shapes: []shapes.Shape{tri}})
		if err := b.AddNode(objIdx, geom.Identity()); err != nil {
			fmt.Fprintln(os.Stderr, "scenegen:", err)
			os.Exit(1)
		}
		if rnd.Float64() < *lightPct {
			_ = b.AddLight(scene.AreaLight{ObjectIndex: objIdx, Radiance: geom.Vec3{X: 1, Y: 1, Z: 1}})
		}
	}

	scn, err := b.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "scenegen:", err)
		os.Exit(1)
	}

	var out *os.File
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "scenegen: cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	if err := sceneio.Encode(out, scn); err != nil {
		fmt.Fprintln(os.Stderr, "scenegen:", err)
		os.Exit(1)
	}
}
