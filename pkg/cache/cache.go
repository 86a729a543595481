// Package cache implements the typed-variant LRU resource cache: a single
// byte-budgeted cache shared by every resource kind registered on it (in
// this module, pkg/accel's sub-BVHs), where each kind registers its own
// loader and eviction callback under a small integer type tag instead of
// the cache being parameterized per-kind.
//
// The policy is strict LRU over a single recency list with byte-budget
// eviction. Values are published behind a strong/weak reference split
// (internal/weakref): the recency list holds the one strong reference that
// keeps a value resident, while each caller's returned pointer is a strong
// reference of its own. Eviction only drops the list's reference -- a
// value still held by a caller stays reachable through the slot's weak
// handle, and a later Get for it re-admits the live value instead of
// loading a duplicate.
//
// © 2025 pandora authors. MIT License.
package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pandora-render/pandora/internal/weakref"
)

// ID identifies a single cached resource, unique across all registered
// kinds. Callers mint IDs however suits their domain (a content hash, a
// dense index into a scene table); the cache never interprets them.
type ID uint64

// Kind tags which Register call owns a given slot, so eviction and debug
// tooling can report a type name without reflection on the hot path.
type Kind uint16

// EvictReason records why a slot's value was dropped.
type EvictReason int

const (
	EvictCapacity EvictReason = iota // byte budget exceeded, LRU tail chosen
	EvictExplicit                    // caller invoked Forget directly
	EvictSeal                        // cache was sealed and is shutting down
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictExplicit:
		return "explicit"
	case EvictSeal:
		return "seal"
	default:
		return "unknown"
	}
}

// kindDesc holds the per-kind callbacks registered via Register.
type kindDesc struct {
	name    string
	loader  func(ctx context.Context, id ID) (any, int64, error)
	evictCb func(id ID, value any, reason EvictReason)
	newWeak func() weakSlot
}

// weakSlot adapts a weakref.Weak[T] to the cache's non-generic slot
// bookkeeping. Each Kind supplies a constructor, so a slot's weak handle
// tracks the registered value type directly and upgrade keeps answering
// for as long as any holder keeps the value alive.
type weakSlot interface {
	store(strong any)
	upgrade() (any, bool)
}

type typedWeak[T any] struct {
	w weakref.Weak[T]
}

func (t *typedWeak[T]) store(strong any) { t.w.Store(strong.(*T)) }

func (t *typedWeak[T]) upgrade() (any, bool) {
	p, ok := t.w.Upgrade()
	if !ok {
		return nil, false
	}
	return p, true
}

// slot is the bookkeeping record for one resident or formerly-resident
// entry. strong holds the value resident for exactly as long as the slot
// stays on the recency list; eviction drops it, after which weak keeps
// answering only while some caller still holds the value. A Get that
// upgrades such a still-live value re-admits it to the recency list
// rather than invoking the loader for a duplicate.
type slot struct {
	id     ID
	kind   Kind
	strong any // the *T held for the recency list, nil once evicted
	weak   weakSlot
	weight int64
	elem   *list.Element // position in recency list, nil if not resident
}

// Cache is the shared typed-variant resource cache.
type Cache struct {
	mu        sync.Mutex
	kinds     map[Kind]*kindDesc
	slots     map[ID]*slot
	recency   *list.List // front = most recently used
	liveBytes int64
	budget    int64

	group singleflight.Group

	metrics *metricsSink
	cfg     config

	registrationSealed bool // blocks further Register; set once at render setup
	sealed             bool // blocks further publish and evicts everything; shutdown-only
}

// FreezeRegistration blocks any further Register call (they panic) without
// otherwise touching cache state. Call it once every Kind has been
// registered, before the task graph starts running, so the kind map is
// never mutated concurrently with Get traffic.
func (c *Cache) FreezeRegistration() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registrationSealed = true
}

// New constructs a Cache with the given byte budget and options.
func New(byteBudget int64, opts ...Option) *Cache {
	c := &Cache{
		kinds:   make(map[Kind]*kindDesc),
		slots:   make(map[ID]*slot),
		recency: list.New(),
		budget:  byteBudget,
		cfg:     defaultConfig(),
	}
	for _, o := range opts {
		o(&c.cfg)
	}
	c.metrics = newMetricsSink(c.cfg.registry)
	return c
}

// Register associates a Kind with a LoaderFunc and an EvictCallback. It
// must be called before any Get call that uses this Kind. Concurrent
// Register calls are serialized by the cache mutex.
//
// Register panics if called after FreezeRegistration or Seal: all kinds
// are registered up front, never while rendering is underway, and the
// panic makes that an enforced contract rather than a convention.
func Register[T any](c *Cache, kind Kind, name string, loader LoaderFunc[T], evictCb EvictCallback[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registrationSealed || c.sealed {
		panic(fmt.Sprintf("cache: Register(%d, %q) called after registration was frozen", kind, name))
	}
	c.kinds[kind] = &kindDesc{
		name: name,
		loader: func(ctx context.Context, id ID) (any, int64, error) {
			v, w, err := loader(ctx, id)
			if err != nil {
				return nil, 0, err
			}
			return v, w, nil
		},
		evictCb: func(id ID, value any, reason EvictReason) {
			if evictCb == nil {
				return
			}
			typed, ok := value.(*T)
			if !ok {
				return
			}
			evictCb(id, typed, reason)
		},
		newWeak: func() weakSlot { return &typedWeak[T]{} },
	}
}

// Get returns a strong reference to the value for id, loading it via the
// Kind's registered loader on a miss. Concurrent Get calls for the same id
// are deduplicated through singleflight, so the loader runs at most once
// per miss regardless of how many goroutines request it simultaneously,
// without needing a load mutex per slot.
func Get[T any](ctx context.Context, c *Cache, kind Kind, id ID) (*T, error) {
	c.mu.Lock()
	desc, ok := c.kinds[kind]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("cache: kind %d not registered", kind)
	}
	if v, ok := c.upgradeLocked(id); ok {
		c.mu.Unlock()
		c.metrics.incHit()
		typed, ok := v.(*T)
		if !ok {
			return nil, fmt.Errorf("cache: id %d stored as different type", id)
		}
		return typed, nil
	}
	c.mu.Unlock()

	c.metrics.incMiss()

	key := fmt.Sprintf("%d:%d", kind, id)
	result, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check before loading: the value may have been published, or
		// a still-held copy re-admitted, while this call waited its turn.
		c.mu.Lock()
		v, ok := c.upgradeLocked(id)
		c.mu.Unlock()
		if ok {
			return v, nil
		}
		v, weight, err := desc.loader(ctx, id)
		if err != nil {
			return nil, err
		}
		c.publish(kind, id, v, weight)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("cache: id %d stored as different type", id)
	}
	return typed, nil
}

// TryGet returns a strong reference to the value for id without invoking
// the Kind's loader: a miss (never loaded, or evicted with no surviving
// holder) returns (nil, false) rather than blocking. This backs the async
// access stage's fast path.
func TryGet[T any](c *Cache, kind Kind, id ID) (*T, bool) {
	c.mu.Lock()
	v, ok := c.upgradeLocked(id)
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	typed, ok := v.(*T)
	if !ok {
		return nil, false
	}
	c.metrics.incHit()
	return typed, true
}

// upgradeLocked returns the live value for id, if one exists. A resident
// hit moves to the recency front; an evicted value that some caller still
// keeps alive is re-admitted to the list (and the budget) so residency
// accounting matches what was handed out. Caller must hold c.mu.
func (c *Cache) upgradeLocked(id ID) (any, bool) {
	s, ok := c.slots[id]
	if !ok || s.weak == nil {
		return nil, false
	}
	v, ok := s.weak.upgrade()
	if !ok {
		return nil, false
	}
	if s.elem != nil {
		c.recency.MoveToFront(s.elem)
		return v, true
	}
	if c.sealed {
		return v, true // hand out, but a sealed cache re-owns nothing
	}
	s.strong = v
	s.elem = c.recency.PushFront(s)
	c.liveBytes += s.weight
	c.metrics.setLiveBytes(c.liveBytes)
	c.evictToBudget()
	return v, true
}

// publish installs a freshly loaded value into the cache and evicts from
// the LRU tail until the byte budget is satisfied.
func (c *Cache) publish(kind Kind, id ID, v any, weight int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return
	}

	desc := c.kinds[kind]
	s, ok := c.slots[id]
	if !ok {
		s = &slot{id: id, kind: kind, weak: desc.newWeak()}
		c.slots[id] = s
	}
	s.weight = weight
	s.strong = v
	s.weak.store(v)

	if s.elem != nil {
		c.recency.MoveToFront(s.elem)
	} else {
		s.elem = c.recency.PushFront(s)
		c.liveBytes += weight
	}

	if c.budget > 0 && weight > c.budget {
		c.cfg.logger.Warn("cached value exceeds entire byte budget",
			zap.Uint64("id", uint64(id)),
			zap.String("kind", desc.name),
			zap.Int64("bytes", weight),
			zap.Int64("budget", c.budget))
	}

	c.metrics.setLiveBytes(c.liveBytes)
	c.evictToBudget()
}

// evictToBudget drops LRU-tail slots until liveBytes fits budget. Caller
// must hold c.mu.
func (c *Cache) evictToBudget() {
	for c.budget > 0 && c.liveBytes > c.budget {
		back := c.recency.Back()
		if back == nil {
			return
		}
		s := back.Value.(*slot)
		c.evictLocked(s, EvictCapacity)
	}
}

// evictLocked removes s from residency, dropping the recency list's strong
// reference. The slot's weak handle is left in place: a caller still
// holding the value keeps it upgradeable, and the bytes free once the last
// holder drops it. Caller must hold c.mu.
func (c *Cache) evictLocked(s *slot, reason EvictReason) {
	if s.elem != nil {
		c.recency.Remove(s.elem)
		s.elem = nil
		c.liveBytes -= s.weight
	}
	value := s.strong
	s.strong = nil
	c.metrics.incEvict()
	c.metrics.setLiveBytes(c.liveBytes)
	c.cfg.logger.Debug("evicted resource",
		zap.Uint64("id", uint64(s.id)),
		zap.String("reason", reason.String()),
		zap.Int64("bytes", s.weight))

	if value == nil {
		return
	}
	if desc, ok := c.kinds[s.kind]; ok && desc.evictCb != nil {
		go desc.evictCb(s.id, value, reason)
	}
}

// Forget explicitly evicts id, if resident.
func (c *Cache) Forget(id ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slots[id]; ok && s.elem != nil {
		c.evictLocked(s, EvictExplicit)
	}
}

// Seal evicts every resident entry and rejects further publishes and
// Register calls. It is the shutdown counterpart to FreezeRegistration
// (which only blocks Register, leaving Get/publish/eviction live for the
// render); Seal is used once rendering has finished, so disk-serialization
// eviction callbacks can flush outstanding state deterministically.
func (c *Cache) Seal() {
	c.mu.Lock()
	c.sealed = true
	c.registrationSealed = true
	for c.recency.Len() > 0 {
		s := c.recency.Back().Value.(*slot)
		c.evictLocked(s, EvictSeal)
	}
	c.mu.Unlock()
}

// LiveBytes reports the cache's current resident footprint.
func (c *Cache) LiveBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveBytes
}

// Len reports the number of currently resident slots.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}
