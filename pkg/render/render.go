// Package render wires a Scene, the typed-variant cache, the batching
// acceleration structure, the task graph and a reference integrator into
// a single runnable renderer. It is a library entry point, not an HTTP
// demo; it serves no HTTP or debug endpoints itself.
//
// © 2025 pandora authors. MIT License.
package render

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pandora-render/pandora/pkg/accel"
	"github.com/pandora-render/pandora/pkg/cache"
	"github.com/pandora-render/pandora/pkg/diskstore"
	"github.com/pandora-render/pandora/pkg/geom"
	"github.com/pandora-render/pandora/pkg/integrator"
	"github.com/pandora-render/pandora/pkg/integrator/reference"
	"github.com/pandora-render/pandora/pkg/scene"
	"github.com/pandora-render/pandora/pkg/taskgraph"
)

// Config controls Renderer construction.
type Config struct {
	ByteBudget    int64
	PointsPerAxis int // batching points are laid out on a coarse grid of PointsPerAxis^3 cells
	Width, Height int
	Background    geom.Vec3
	Workers       int
	DiskStoreDir  string // empty disables disk-backed eviction
	PrometheusReg *prometheus.Registry
	Logger        *zap.Logger
}

// Renderer bundles the rendering pipeline: cache, acceleration structure,
// task graph, reference integrator and film.
type Renderer struct {
	cfg    Config
	scene  *scene.Scene
	cache  *cache.Cache
	graph  *taskgraph.Graph
	accel  *accel.AccelStructure
	film   *reference.Film
	disk   *diskstore.Store
	logger *zap.Logger
}

// New constructs a Renderer over scn. It partitions the scene's shapes into
// batching points using a uniform spatial grid (see grid.go) and registers
// the reference integrator's hit/miss handles with the task graph.
func New(scn *scene.Scene, cfg Config) (*Renderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("render: width/height must be positive")
	}
	if cfg.PointsPerAxis <= 0 {
		cfg.PointsPerAxis = 4
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var disk *diskstore.Store
	var err error
	if cfg.DiskStoreDir != "" {
		disk, err = diskstore.Open(cfg.DiskStoreDir)
		if err != nil {
			return nil, err
		}
	}

	c := cache.New(cfg.ByteBudget,
		cache.WithMetrics(cfg.PrometheusReg),
		cache.WithLogger(logger),
	)

	film := reference.NewFilm(cfg.Width, cfg.Height)
	refIntegrator := reference.New(scn, film, cfg.Background)

	graph := taskgraph.New(logger)
	handles := integrator.NewHandles(graph, refIntegrator.RayHit, refIntegrator.RayMiss, refIntegrator.RayAnyHit, refIntegrator.RayAnyMiss)

	specs := partitionIntoBatchingPoints(scn, cfg.PointsPerAxis)

	accelOpts := handles.Options(256)
	if disk != nil {
		accelOpts.Disk = disk
	}
	accelStruct, err := accel.Build(c, specs, accelOpts)
	if err != nil {
		return nil, err
	}
	graph.AddStageOps(accelStruct)
	c.FreezeRegistration()

	return &Renderer{
		cfg:    cfg,
		scene:  scn,
		cache:  c,
		graph:  graph,
		accel:  accelStruct,
		film:   film,
		disk:   disk,
		logger: logger,
	}, nil
}

// Submit enqueues the given rays into the acceleration structure. Rays
// whose State is a reference.PixelState (as OrthographicRays produces)
// accumulate into that film texel; others are ignored by the integrator.
func (r *Renderer) Submit(rays []geom.Ray) {
	r.accel.Submit(rays)
}

// Run drives the task graph with Config.Workers workers and returns once
// every stage's queue is empty and no stage is executing, or earlier if
// ctx is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	return r.graph.Run(ctx, r.cfg.Workers)
}

func (r *Renderer) Quiescent() bool { return r.graph.Quiescent() }

func (r *Renderer) Film() *reference.Film { return r.film }

func (r *Renderer) Cache() *cache.Cache { return r.cache }

// AccelPointCount reports the number of batching points the acceleration
// structure was built over.
func (r *Renderer) AccelPointCount() int { return r.accel.PointCount() }

// DiskStore returns the renderer's disk-backed eviction store, or nil if
// Config.DiskStoreDir was empty. Callers that need disk occupancy stats
// use this instead of opening a second handle onto the same Badger
// directory, which Badger's own file lock would refuse.
func (r *Renderer) DiskStore() *diskstore.Store { return r.disk }

// Close seals the cache (evicting every resident entry so shutdown is
// deterministic) and releases the renderer's disk store, if one was
// configured.
func (r *Renderer) Close() error {
	r.cache.Seal()
	if r.disk != nil {
		return r.disk.Close()
	}
	return nil
}
