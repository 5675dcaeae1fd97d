// Package history is an embedded, crash-safe ring buffer of recent
// cycle/task-status snapshots, backed by BadgerDB. It exists so the admin
// "task status" and "live log stream" endpoints (spec.md §6) have history
// across process restarts without growing the relational schema. Single
// writer (the scheduler), read-mostly. Modeled on
// _examples/tomtom215-cartographus/internal/auth/session_badger.go's
// prefix-scan-then-Update shape.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "snap:"

// Snapshot is one recorded point in the ring: either a cycle-level summary
// or a single entity's status transition, distinguished by EntityKind.
type Snapshot struct {
	Seq        uint64    `json:"seq"`
	RecordedAt time.Time `json:"recorded_at"`
	CycleID    string    `json:"cycle_id"`
	EntityKind string    `json:"entity_kind"` // "cycle", "video", "page"
	EntityID   int64     `json:"entity_id,omitempty"`
	StatusWord uint32    `json:"status_word,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// Ring is a bounded, crash-safe history of Snapshots. Appends beyond
// Capacity evict the oldest entries.
type Ring struct {
	db       *badger.DB
	capacity int
}

// Open opens (creating if absent) a Badger-backed ring buffer at dir,
// retaining at most capacity entries.
func Open(dir string, capacity int) (*Ring, error) {
	if capacity <= 0 {
		capacity = 1000
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("history: open badger: %w", err)
	}
	return &Ring{db: db, capacity: capacity}, nil
}

// Close releases the underlying Badger handle.
func (r *Ring) Close() error { return r.db.Close() }

func seqKey(seq uint64) []byte {
	key := make([]byte, len(keyPrefix)+8)
	copy(key, keyPrefix)
	binary.BigEndian.PutUint64(key[len(keyPrefix):], seq)
	return key
}

// Append records s under the next monotonic sequence number, evicting the
// oldest snapshot if the ring is at capacity.
func (r *Ring) Append(s Snapshot) error {
	return r.db.Update(func(txn *badger.Txn) error {
		seq, err := nextSeq(txn)
		if err != nil {
			return err
		}
		s.Seq = seq

		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("history: marshal snapshot: %w", err)
		}
		if err := txn.Set(seqKey(seq), data); err != nil {
			return fmt.Errorf("history: set snapshot: %w", err)
		}
		if err := txn.Set([]byte("meta:next_seq"), encodeUint64(seq+1)); err != nil {
			return fmt.Errorf("history: advance sequence: %w", err)
		}

		return evictOldest(txn, r.capacity)
	})
}

func nextSeq(txn *badger.Txn) (uint64, error) {
	item, err := txn.Get([]byte("meta:next_seq"))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("history: read sequence: %w", err)
	}
	var seq uint64
	err = item.Value(func(val []byte) error {
		seq = decodeUint64(val)
		return nil
	})
	return seq, err
}

// evictOldest trims the buffer back down to capacity entries, deleting the
// lowest-sequence snapshots first.
func evictOldest(txn *badger.Txn, capacity int) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	prefix := []byte(keyPrefix)
	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		k := it.Item().KeyCopy(nil)
		keys = append(keys, k)
	}
	if len(keys) <= capacity {
		return nil
	}
	overflow := len(keys) - capacity
	for i := 0; i < overflow; i++ {
		if err := txn.Delete(keys[i]); err != nil {
			return fmt.Errorf("history: evict snapshot: %w", err)
		}
	}
	return nil
}

// Recent returns up to limit most-recent snapshots, newest first.
func (r *Ring) Recent(limit int) ([]Snapshot, error) {
	var out []Snapshot
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration with a prefix requires seeking to the
		// largest possible key under that prefix.
		seekKey := append([]byte(keyPrefix), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix([]byte(keyPrefix)) && len(out) < limit; it.Next() {
			item := it.Item()
			var s Snapshot
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			}); err != nil {
				return fmt.Errorf("history: unmarshal snapshot: %w", err)
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
