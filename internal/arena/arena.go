// Package arena provides the in-memory Serializer/Deserializer: a chunked
// byte arena that Cacheables flatten themselves into. It is the default
// storage backend when no disk store is configured, and the stand-in for
// one in tests.
//
// © 2025 pandora authors. MIT License.
package arena

import (
	"fmt"
	"sync"

	"github.com/pandora-render/pandora/pkg/cacheable"
)

const defaultChunkBytes = 4 << 20 // 4 MiB chunks

// Arena is a growable, append-only byte store. Store never overwrites
// previously returned allocations, so pointers handed out remain valid for
// the arena's lifetime — the same guarantee a disk serializer's append-only
// file offers.
type Arena struct {
	mu         sync.Mutex
	chunkBytes int
	chunks     [][]byte
}

func New() *Arena { return NewSized(defaultChunkBytes) }

func NewSized(chunkBytes int) *Arena {
	if chunkBytes <= 0 {
		chunkBytes = defaultChunkBytes
	}
	return &Arena{chunkBytes: chunkBytes}
}

// Store copies data into the arena and returns a locator. Implements
// cacheable.Serializer.
func (a *Arena) Store(data []byte) (cacheable.Allocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.chunks) == 0 || len(a.chunks[len(a.chunks)-1])+len(data) > a.chunkBytes {
		cap := a.chunkBytes
		if len(data) > cap {
			cap = len(data)
		}
		a.chunks = append(a.chunks, make([]byte, 0, cap))
	}
	idx := len(a.chunks) - 1
	chunk := a.chunks[idx]
	offset := len(chunk)
	chunk = append(chunk, data...)
	a.chunks[idx] = chunk

	return cacheable.Allocation{Segment: idx, Offset: offset, Length: len(data)}, nil
}

// Load returns a copy of the bytes at alloc. Implements cacheable.Deserializer.
func (a *Arena) Load(alloc cacheable.Allocation) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if alloc.Segment < 0 || alloc.Segment >= len(a.chunks) {
		return nil, fmt.Errorf("arena: segment %d out of range", alloc.Segment)
	}
	chunk := a.chunks[alloc.Segment]
	end := alloc.Offset + alloc.Length
	if alloc.Offset < 0 || end > len(chunk) {
		return nil, fmt.Errorf("arena: allocation %+v out of range for segment of length %d", alloc, len(chunk))
	}
	out := make([]byte, alloc.Length)
	copy(out, chunk[alloc.Offset:end])
	return out, nil
}

// SizeBytes reports the arena's total live footprint.
func (a *Arena) SizeBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var total int64
	for _, c := range a.chunks {
		total += int64(cap(c))
	}
	return total
}
