package cache

// cache_test.go exercises the LRU cache's core guarantees: at most one
// concurrent load per id, strict byte-budget eviction order, concurrent
// duplicate gets invoking the loader exactly once, idempotent Get, and
// eviction leaving values held by callers upgradeable instead of loading
// duplicates.
//
// © 2025 pandora authors. MIT License.

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

type tinyVal struct{ tag string }

const kindTiny Kind = 7

// Tiny LRU: three cacheables A/B/C of size 4 against a budget of 8.
// Sequence: get A, get B (both resident), get C (evicts A), get A (evicts
// B), get C (still resident, no eviction). Reloads are only observable
// once the GC has collected the dropped value, so the A reload is
// preceded by an explicit collection.
func TestCacheTinyLRUEvictionOrder(t *testing.T) {
	c := New(8)
	var calls [3]atomic.Int32 // A, B, C
	names := map[ID]int{1: 0, 2: 1, 3: 2}

	Register(c, kindTiny, "tiny",
		func(ctx context.Context, id ID) (*tinyVal, int64, error) {
			calls[names[id]].Add(1)
			return &tinyVal{tag: "v"}, 4, nil
		}, nil)

	get := func(id ID, wantBytes int64) {
		t.Helper()
		if _, err := Get[tinyVal](context.Background(), c, kindTiny, id); err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if got := c.LiveBytes(); got != wantBytes {
			t.Fatalf("after get %d: LiveBytes = %d, want %d", id, got, wantBytes)
		}
	}

	get(1, 4) // A
	get(2, 8) // B
	get(3, 8) // C evicts A

	// Nothing holds A anymore; collect it so the next get must reload.
	runtime.GC()
	runtime.GC()

	get(1, 8) // A again, evicting B
	get(3, 8) // C still resident

	wantCalls := [3]int32{2, 1, 1} // A=2, B=1, C=1
	for i, want := range wantCalls {
		if got := calls[i].Load(); got != want {
			t.Fatalf("loader calls[%d] = %d, want %d", i, got, want)
		}
	}
}

// 16 goroutines call Get(X) simultaneously on a cold cache; the loader
// must run exactly once and every caller must observe the same value.
func TestCacheConcurrentGetSingleflight(t *testing.T) {
	c := New(1 << 20)
	var invocations atomic.Int32
	Register(c, kindTiny, "tiny",
		func(ctx context.Context, id ID) (*tinyVal, int64, error) {
			invocations.Add(1)
			return &tinyVal{tag: "singleton"}, 64, nil
		}, nil)

	const n = 16
	var wg sync.WaitGroup
	results := make([]*tinyVal, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := Get[tinyVal](context.Background(), c, kindTiny, 42)
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if got := invocations.Load(); got != 1 {
		t.Fatalf("loader invoked %d times, want 1", got)
	}
	for i, v := range results {
		if v != results[0] {
			t.Fatalf("result[%d] = %p, want the shared value %p", i, v, results[0])
		}
		if v.tag != "singleton" {
			t.Fatalf("result[%d] = %+v, want tag=singleton", i, v)
		}
	}
}

// Two successive Get calls with no intervening eviction return the same
// strong reference.
func TestCacheGetIdempotent(t *testing.T) {
	c := New(1 << 20)
	Register(c, kindTiny, "tiny",
		func(ctx context.Context, id ID) (*tinyVal, int64, error) {
			return &tinyVal{tag: "stable"}, 8, nil
		}, nil)

	a, err := Get[tinyVal](context.Background(), c, kindTiny, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Get[tinyVal](context.Background(), c, kindTiny, 1)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("Get/Get mismatch: %p != %p", a, b)
	}
}

// Eviction must not cut off a value a caller still holds: a Get issued
// while the holder is live shares the same reference (no duplicate load)
// and re-admits it to the budget.
func TestCacheEvictedValueSharedWhileHeld(t *testing.T) {
	c := New(1 << 20)
	var calls atomic.Int32
	Register(c, kindTiny, "tiny",
		func(ctx context.Context, id ID) (*tinyVal, int64, error) {
			calls.Add(1)
			return &tinyVal{tag: "held"}, 8, nil
		}, nil)

	held, err := Get[tinyVal](context.Background(), c, kindTiny, 5)
	if err != nil {
		t.Fatal(err)
	}
	c.Forget(5)
	if got := c.Len(); got != 0 {
		t.Fatalf("Len after Forget = %d, want 0", got)
	}

	again, err := Get[tinyVal](context.Background(), c, kindTiny, 5)
	if err != nil {
		t.Fatal(err)
	}
	if again != held {
		t.Fatalf("Get while held returned %p, want the live value %p", again, held)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("loader ran %d times, want 1 (live value must be shared)", got)
	}
	if got := c.Len(); got != 1 {
		t.Fatalf("Len after re-admission = %d, want 1", got)
	}
	if got := c.LiveBytes(); got != 8 {
		t.Fatalf("LiveBytes after re-admission = %d, want 8", got)
	}
	runtime.KeepAlive(held)
}

// Once an id is forgotten and its last holder is gone, the next Get
// invokes the loader again instead of answering from a stale slot.
func TestCacheForgetThenReload(t *testing.T) {
	c := New(1 << 20)
	var calls atomic.Int32
	Register(c, kindTiny, "tiny",
		func(ctx context.Context, id ID) (*tinyVal, int64, error) {
			calls.Add(1)
			return &tinyVal{tag: "x"}, 8, nil
		}, nil)

	if _, err := Get[tinyVal](context.Background(), c, kindTiny, 9); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}

	c.Forget(9)

	// No holder survives the eviction; collect so the weak handle dies.
	runtime.GC()
	runtime.GC()

	if _, err := Get[tinyVal](context.Background(), c, kindTiny, 9); err != nil {
		t.Fatal(err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls after reload = %d, want 2", got)
	}
}

// Register after FreezeRegistration must panic: kinds are registered in
// bulk before rendering, never while Get traffic is live.
func TestCacheRegisterAfterFreezePanics(t *testing.T) {
	c := New(1024)
	c.FreezeRegistration()
	defer func() {
		if recover() == nil {
			t.Fatal("Register after FreezeRegistration did not panic")
		}
	}()
	Register(c, kindTiny, "tiny",
		func(ctx context.Context, id ID) (*tinyVal, int64, error) {
			return &tinyVal{}, 1, nil
		}, nil)
}

// Get against an unregistered kind fails rather than silently loading.
func TestCacheGetUnregisteredKindErrors(t *testing.T) {
	c := New(1024)
	if _, err := Get[tinyVal](context.Background(), c, kindTiny, 1); err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}

// TryGet never blocks and never invokes the loader; it only answers from
// residency.
func TestCacheTryGetMissWithoutInvokingLoader(t *testing.T) {
	c := New(1024)
	var calls atomic.Int32
	Register(c, kindTiny, "tiny",
		func(ctx context.Context, id ID) (*tinyVal, int64, error) {
			calls.Add(1)
			return &tinyVal{}, 1, nil
		}, nil)

	if _, ok := TryGet[tinyVal](c, kindTiny, 1); ok {
		t.Fatal("TryGet on cold cache reported a hit")
	}
	if calls.Load() != 0 {
		t.Fatal("TryGet invoked the loader")
	}
}
