package cache

// loader.go names the callback types Register wires a Kind with, in their
// own file so callers can reference them without pulling in cache.go's
// internals.
//
// © 2025 pandora authors. MIT License.

import "context"

// LoaderFunc produces a value and its byte weight for id on a cache miss.
// The same LoaderFunc may be invoked concurrently for different ids; it must
// be safe for concurrent use. It must not call Get on the same Cache for the
// same id, or it will deadlock inside singleflight.
type LoaderFunc[T any] func(ctx context.Context, id ID) (*T, int64, error)

// EvictCallback is invoked, on its own goroutine, after a value leaves
// residency. It is the hook disk-backed kinds use to serialize the evicted
// value before it is finally collected.
type EvictCallback[T any] func(id ID, value *T, reason EvictReason)
