// Package taskgraph implements the flow-graph task scheduler: a small set
// of named stages, each backed by a pending-work queue, dispatched by a
// single dispatcher goroutine across a bounded set of device-worker
// goroutines that always run the eligible stage with the largest backlog
// first, so no single stage starves under backpressure.
//
// The graph schedules two kinds of stages uniformly: generic per-type
// stages (TaskHandle[T]) and components with non-uniform internal queues,
// such as the batching acceleration structure, which implement StageOps
// themselves.
//
// © 2025 pandora authors. MIT License.
package taskgraph

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StageOps is the minimal surface the graph's dispatcher needs from a stage:
// how much work is pending, a name for logging/metrics, and a way to run one
// unit of work. Both the generic TaskHandle-backed stage and the batching
// acceleration structure implement this, letting a single Graph schedule
// both uniformly.
type StageOps interface {
	Name() string
	Pending() int
	// TryRun executes up to one batch of pending work. It returns the
	// number of items processed; 0 means there was nothing to do.
	TryRun(ctx context.Context, logger *zap.Logger) (int, error)
}

// Graph owns a set of stages and schedules them with one dispatcher
// goroutine and N device-worker goroutines: each worker requests work and
// the dispatcher hands it the eligible stage (not currently executing)
// with the greatest buffered item count.
type Graph struct {
	mu     sync.Mutex
	stages []StageOps
	logger *zap.Logger

	// deferred counts work units in flight outside any stage's stream --
	// a load handed to the cache's loader pool, whose result will be
	// pushed back into a stage later. The dispatcher refuses to declare
	// quiescence while deferred > 0, since the streams being empty says
	// nothing about results still on their way back.
	deferred atomic.Int64
	wake     chan struct{}
}

// New constructs an empty Graph.
func New(logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{logger: logger, wake: make(chan struct{}, 1)}
}

// BeginDeferred reserves one unit of out-of-stage work: the graph will
// not terminate until a matching EndDeferred call. Call it before handing
// work to the loader pool from a stage kernel.
func (g *Graph) BeginDeferred() { g.deferred.Add(1) }

// EndDeferred releases a BeginDeferred reservation and wakes the
// dispatcher, which either hands the freshly pushed results to an idle
// worker or, if this was the last outstanding work anywhere, shuts the
// graph down.
func (g *Graph) EndDeferred() {
	g.deferred.Add(-1)
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// AddStageOps registers a stage directly. Used by components, like the
// batching acceleration structure, whose scheduling unit isn't a uniform
// Stream[T].
func (g *Graph) AddStageOps(s StageOps) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stages = append(g.stages, s)
}

func (g *Graph) snapshotStages() []StageOps {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]StageOps, len(g.stages))
	copy(out, g.stages)
	return out
}

// Quiescent reports whether every registered stage currently has no pending
// work. It is a point-in-time snapshot; under concurrent Run it races with
// kernels enqueueing new work, which is expected -- termination is decided
// by the dispatcher's own observation, not an external snapshot.
func (g *Graph) Quiescent() bool {
	for _, s := range g.snapshotStages() {
		if s.Pending() > 0 {
			return false
		}
	}
	return true
}

// workRequest is a device worker asking the dispatcher for its next unit of
// work. lastStage is the name of the stage this worker last executed;
// ties between equally full stages break toward a stage the worker did
// not just run.
type workRequest struct {
	lastStage string
	reply     chan assignment
}

// assignment is the dispatcher's answer to a workRequest: either a stage to
// run, or shutdown, meaning the graph has gone quiescent and this worker
// should exit.
type assignment struct {
	stage    StageOps
	shutdown bool
}

// doneMsg reports a worker finishing TryRun on a stage, so the dispatcher
// can clear that stage from its currently-executing set and retry any
// requests it was unable to satisfy.
type doneMsg struct {
	stage string
}

// Run launches one dispatcher goroutine and `workers` device-worker
// goroutines, all supervised by the same errgroup so a cancelled context
// unwinds every goroutine together. Kernel panics and errors never unwind
// the graph; they are logged at the worker boundary and the worker moves
// on (see runStage). Run also returns on its own, without any external
// cancellation, once every stream is empty and no stage is executing --
// the dispatcher detects this itself and broadcasts shutdown tokens.
func (g *Graph) Run(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 1
	}

	eg, gctx := errgroup.WithContext(ctx)

	requests := make(chan workRequest, workers)
	done := make(chan doneMsg, workers)

	eg.Go(func() error {
		return g.dispatch(gctx, workers, requests, done)
	})

	for i := 0; i < workers; i++ {
		eg.Go(func() error {
			return g.runWorker(gctx, requests, done)
		})
	}

	return eg.Wait()
}

// runWorker is one device worker: request work, run it if assigned, report
// completion, repeat until told to shut down or ctx is cancelled.
func (g *Graph) runWorker(ctx context.Context, requests chan<- workRequest, done chan<- doneMsg) error {
	// Buffered so the dispatcher's reply never blocks, even if this worker
	// has already exited on a cancelled context.
	reply := make(chan assignment, 1)
	lastStage := ""
	for {
		select {
		case requests <- workRequest{lastStage: lastStage, reply: reply}:
		case <-ctx.Done():
			return nil
		}
		select {
		case a := <-reply:
			if a.shutdown {
				return nil
			}
			g.runStage(ctx, a.stage)
			lastStage = a.stage.Name()
			select {
			case done <- doneMsg{stage: a.stage.Name()}:
			case <-ctx.Done():
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// runStage executes one batch of s, recovering kernel panics at the worker
// boundary: a panicking or erroring kernel is logged and the worker moves
// on to its next scheduling decision, so a single bad batch never takes
// the whole graph down.
func (g *Graph) runStage(ctx context.Context, s StageOps) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("stage kernel panicked",
				zap.String("stage", s.Name()), zap.Any("panic", r))
		}
	}()
	if _, err := s.TryRun(ctx, g.logger); err != nil {
		g.logger.Error("stage kernel failed",
			zap.String("stage", s.Name()), zap.Error(err))
	}
}

// dispatch is the single dispatcher goroutine. It owns all scheduling
// state (which stages are currently executing, which worker requests are
// waiting) so no locking is needed across decisions: every decision is made
// by one goroutine reading one local map.
func (g *Graph) dispatch(ctx context.Context, workers int, requests <-chan workRequest, done <-chan doneMsg) error {
	executing := make(map[string]bool)
	var waiting []workRequest

	satisfy := func() {
		for {
			progressed := false
			for i, req := range waiting {
				stage := g.pickEligible(req.lastStage, executing)
				if stage == nil {
					continue
				}
				executing[stage.Name()] = true
				req.reply <- assignment{stage: stage}
				waiting = append(waiting[:i:i], waiting[i+1:]...)
				progressed = true
				break
			}
			if !progressed {
				return
			}
		}
	}

	shutdownAll := func() {
		for _, req := range waiting {
			req.reply <- assignment{shutdown: true}
		}
		waiting = nil
	}

	for {
		select {
		case <-ctx.Done():
			shutdownAll()
			return nil
		case req := <-requests:
			waiting = append(waiting, req)
		case d := <-done:
			delete(executing, d.stage)
		case <-g.wake:
			// A deferred producer finished (EndDeferred) and may have
			// pushed fresh work; fall through to satisfy + quiescence.
		}

		satisfy()

		// Terminate once every stream is empty (no stage has pending
		// work), no stage is executing, and no deferred work is on its
		// way back. This is decidable without races here because this
		// dispatcher is the sole writer of `executing`, and every worker
		// with no current assignment is represented in `waiting`.
		if len(executing) == 0 && len(waiting) == workers && g.deferred.Load() == 0 && g.Quiescent() {
			shutdownAll()
			return nil
		}
	}
}

// pickEligible returns the stage with the greatest pending count among
// stages not already executing, preferring (on a tie) a stage other than
// lastStage.
func (g *Graph) pickEligible(lastStage string, executing map[string]bool) StageOps {
	stages := g.snapshotStages()
	var best StageOps
	bestPending := 0
	for _, s := range stages {
		if executing[s.Name()] {
			continue
		}
		p := s.Pending()
		if p <= 0 {
			continue
		}
		switch {
		case p > bestPending:
			best, bestPending = s, p
		case p == bestPending && best != nil && best.Name() == lastStage && s.Name() != lastStage:
			best = s
		}
	}
	return best
}
