package taskgraph

// handle.go implements the generic, typed stage: a Stream[T] plus a handler
// function, wrapped as a StageOps so Graph can schedule it next to
// non-generic stages such as the batching acceleration structure.
//
// © 2025 pandora authors. MIT License.

import (
	"context"

	"go.uber.org/zap"

	"github.com/pandora-render/pandora/internal/stream"
)

const defaultBatchSize = 256

// Handler processes one batch of items pushed to a TaskHandle.
type Handler[T any] func(ctx context.Context, items []T) error

// TaskHandle is a named, typed work queue plus the function that drains it.
// Producers call Push/PushBatch; a graph worker the dispatcher assigned
// this stage to calls TryRun.
type TaskHandle[T any] struct {
	name      string
	stream    *stream.Stream[T]
	handle    Handler[T]
	batchSize int
}

// NewTaskHandle constructs a TaskHandle and registers it with g.
func NewTaskHandle[T any](g *Graph, name string, batchSize int, handler Handler[T]) *TaskHandle[T] {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	h := &TaskHandle[T]{
		name:      name,
		stream:    stream.New[T](),
		handle:    handler,
		batchSize: batchSize,
	}
	g.AddStageOps(h)
	return h
}

func (h *TaskHandle[T]) Push(v T) { h.stream.Push(v) }

func (h *TaskHandle[T]) PushBatch(vs []T) { h.stream.PushAll(vs) }

func (h *TaskHandle[T]) Name() string { return h.name }

func (h *TaskHandle[T]) Pending() int { return h.stream.PendingCount() }

func (h *TaskHandle[T]) TryRun(ctx context.Context, logger *zap.Logger) (int, error) {
	batch := h.stream.Drain(h.batchSize)
	if len(batch) == 0 {
		return 0, nil
	}
	if err := h.handle(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}
