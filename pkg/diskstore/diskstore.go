// Package diskstore implements the out-of-core disk Serializer/
// Deserializer backed by BadgerDB: evicted cache values are written to
// Badger and later read back rather than regenerated. The Badger value IS
// the Cacheable's own serialized byte record; diskstore itself does not
// interpret it.
//
// The store mints its own monotonically increasing key (sequence-number
// based) per Store call and hands the caller back a cacheable.Allocation
// identifying it, since a sub-BVH's serialized record is itself made of
// several independent shape records that must each get their own
// allocation.
//
// © 2025 pandora authors. MIT License.
package diskstore

import (
	"encoding/binary"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/pandora-render/pandora/pkg/cacheable"
)

// Store is a BadgerDB-backed implementation of cacheable.Serializer and
// cacheable.Deserializer.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// seqKey is the Badger key the store's sequence counter lives under.
const seqKey = "pandora-diskstore-seq"

// Open opens (creating if necessary) a Badger database at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("diskstore: open %s: %w", dir, err)
	}
	seq, err := db.GetSequence([]byte(seqKey), 1000)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("diskstore: sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

func (s *Store) Close() error {
	s.seq.Release()
	return s.db.Close()
}

// keyFor renders an allocation's segment as an 8-byte big-endian Badger
// key; Offset/Length address into the value retrieved under that key
// (unused here since each Store call is one key/value pair, but kept so
// the Allocation shape stays identical to the in-memory arena's).
func keyFor(segment int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(segment))
	return buf
}

// Store implements cacheable.Serializer by writing data under a freshly
// minted sequence number.
func (s *Store) Store(data []byte) (cacheable.Allocation, error) {
	id, err := s.seq.Next()
	if err != nil {
		return cacheable.Allocation{}, fmt.Errorf("diskstore: next seq: %w", err)
	}
	key := keyFor(int(id))
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return cacheable.Allocation{}, fmt.Errorf("diskstore: set: %w", err)
	}
	return cacheable.Allocation{Segment: int(id), Offset: 0, Length: len(data)}, nil
}

// Load implements cacheable.Deserializer.
func (s *Store) Load(alloc cacheable.Allocation) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyFor(alloc.Segment))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("diskstore: get segment %d: %w", alloc.Segment, err)
	}
	return out, nil
}

// KeyCount reports how many records are currently stored, for debug
// tooling's snapshot endpoint.
func (s *Store) KeyCount() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if string(it.Item().Key()) == seqKey {
				continue // the sequence counter is bookkeeping, not a record
			}
			count++
		}
		return nil
	})
	return count, err
}
