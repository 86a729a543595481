// Package weakref wraps the standard library's weak package to give the
// cache a "strong pointer drops, weak handle survives until GC" lifetime
// split with linearizable Store and Upgrade: the cache hands out values
// that decay once the recency list drops the last strong holder, while
// the slot's handle survives to answer later Upgrade attempts.
//
// © 2025 pandora authors. MIT License.
package weakref

import (
	"sync"
	"weak"
)

// Weak holds a weak reference to a *T, plus an RWMutex so Store and Upgrade
// never race a concurrent GC-driven clear of the underlying weak.Pointer.
type Weak[T any] struct {
	mu sync.RWMutex
	p  weak.Pointer[T]
}

// Store records a weak reference to strong. It does not keep strong alive;
// the caller is responsible for retaining a strong reference elsewhere
// (the cache's residency slot does this).
func (w *Weak[T]) Store(strong *T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.p = weak.Make(strong)
}

// Upgrade attempts to recover the strong pointer. It returns false once the
// referent has been collected.
func (w *Weak[T]) Upgrade() (*T, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v := w.p.Value()
	return v, v != nil
}
