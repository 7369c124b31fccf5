package store

import (
	"encoding/json"
	"time"

	"prizedraw/pkg/rbtree"
)

// Entry is one key/value pair inside a snapshot, in key order.
type Entry struct {
	Key   int64           `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Snapshot is a point-in-time dump of every persisted namespace. Each
// namespace is read-consistent (dumped under its read lock); the snapshot as
// a whole is not a cross-namespace transaction, which is acceptable because
// entity writes across namespaces are independent.
type Snapshot struct {
	Timestamp  time.Time          `json:"timestamp"`
	Namespaces map[string][]Entry `json:"namespaces"`
}

// Snapshot dumps every namespace the store holds, built-in or not, and
// clears the dirty flag.
func (s *TreeStore) Snapshot() *Snapshot {
	snap := &Snapshot{
		Timestamp:  time.Now(),
		Namespaces: make(map[string][]Entry),
	}

	s.namespaces.Range(func(name string, n *namespace) bool {
		n.mu.RLock()
		entries := make([]Entry, 0, n.tree.Size())
		n.tree.Ascend(func(key int64, value []byte) bool {
			// Copy: tree values may be overwritten after the lock drops.
			v := make(json.RawMessage, len(value))
			copy(v, value)
			entries = append(entries, Entry{Key: key, Value: v})
			return true
		})
		n.mu.RUnlock()
		snap.Namespaces[name] = entries
		return true
	})

	s.dirty.Store(false)
	return snap
}

// Restore replaces the store's full content with the snapshot's.
func (s *TreeStore) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}

	s.ClearAll()
	for name, entries := range snap.Namespaces {
		n := s.ns(name)
		n.mu.Lock()
		tree := rbtree.New()
		for _, e := range entries {
			tree.Put(e.Key, e.Value)
		}
		n.tree = tree
		n.mu.Unlock()
	}
	s.dirty.Store(false)
}
