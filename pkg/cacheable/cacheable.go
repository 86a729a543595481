// Package cacheable defines the contract storage plugs into: anything the
// LRU cache can evict and later rebuild reports its size and knows how to
// flatten itself to bytes and back.
//
// © 2025 pandora authors. MIT License.
package cacheable

// Allocation locates a previously stored blob inside a Serializer. The
// in-memory arena serializer returns (chunk index, offset, length); a disk
// serializer substitutes a file/segment handle for the chunk index.
type Allocation struct {
	Segment int
	Offset  int
	Length  int
}

// Serializer owns allocation granularity; each Cacheable owns its own byte
// layout within the blob it is handed.
type Serializer interface {
	Store(data []byte) (Allocation, error)
}

// Deserializer is the read-side counterpart of Serializer.
type Deserializer interface {
	Load(alloc Allocation) ([]byte, error)
}

// Cacheable is implemented by anything whose in-memory representation can be
// reclaimed and later rebuilt from serialized form without losing identity
// (shapes, sub-BVHs).
type Cacheable interface {
	// SizeBytes reports the approximate live memory footprint, used by the
	// cache's byte-budget accounting.
	SizeBytes() int64

	// Serialize flattens the current in-memory state into ser and returns a
	// locator that MakeResident can later use to rebuild it.
	Serialize(ser Serializer) (Allocation, error)

	// MakeResident populates in-memory fields from the given locator.
	MakeResident(deser Deserializer, alloc Allocation) error

	// Evict drops in-memory bytes while preserving identity and any locator
	// previously returned by Serialize.
	Evict()
}
