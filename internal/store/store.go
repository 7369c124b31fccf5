// Package store provides the in-memory entity database: a set of named
// red-black trees mapping int64 keys to JSON-encoded values. It replaces an
// external database entirely; every durable entity in the system lives here,
// and the checkpoint manager serializes its full content for crash recovery.
package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync"

	"prizedraw/pkg/log"
	"prizedraw/pkg/rbtree"
)

// Namespace names. Keeping them in one place avoids stringly-typed drift
// between writers, readers and the checkpoint file.
const (
	NamespaceActivities    = "activities"
	NamespacePrizes        = "prizes"
	NamespacePlans         = "allocation_plans"
	NamespaceUsers         = "users"
	NamespaceQuotaCounters = "quota_counters"
	NamespaceWinRecords    = "win_records"
)

// Namespaces lists the built-in namespaces, for size reporting and stats.
// The checkpoint is not limited to this list; it dumps every namespace the
// store has been asked for.
var Namespaces = []string{
	NamespaceActivities,
	NamespacePrizes,
	NamespacePlans,
	NamespaceUsers,
	NamespaceQuotaCounters,
	NamespaceWinRecords,
}

// EncodingError reports a value that failed to serialize or deserialize.
// The failed operation leaves the store untouched.
type EncodingError struct {
	Namespace string
	Key       int64
	Err       error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("store: encode %s/%d: %v", e.Namespace, e.Key, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// namespace is one named tree plus its reader/writer lock. Lock granularity
// is per namespace: writers to the same namespace serialize, readers run
// concurrently. Entity write volume is small next to read volume, and ticket
// traffic bypasses the store through the allocator, so this stays cheap.
type namespace struct {
	mu   sync.RWMutex
	tree *rbtree.Tree
}

// TreeStore is a thread-safe, namespaced, ordered key/value store.
type TreeStore struct {
	namespaces *xsync.MapOf[string, *namespace]
	dirty      atomic.Bool
}

// NewTreeStore returns an empty store.
func NewTreeStore() *TreeStore {
	return &TreeStore{
		namespaces: xsync.NewMapOf[*namespace](),
	}
}

func (s *TreeStore) ns(name string) *namespace {
	if n, ok := s.namespaces.Load(name); ok {
		return n
	}
	n, _ := s.namespaces.LoadOrStore(name, &namespace{tree: rbtree.New()})
	return n
}

// Put serializes value and inserts or overwrites it under key.
func (s *TreeStore) Put(name string, key int64, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		log.WithFields(map[string]interface{}{
			"namespace": name,
			"key":       key,
			"error":     err.Error(),
		}).Error("Failed to serialize value")
		return &EncodingError{Namespace: name, Key: key, Err: err}
	}

	n := s.ns(name)
	n.mu.Lock()
	n.tree.Put(key, data)
	n.mu.Unlock()

	s.dirty.Store(true)
	return nil
}

// Get looks up key and decodes the stored value into out. The boolean is
// false when the key is absent; absence is not an error.
func (s *TreeStore) Get(name string, key int64, out interface{}) (bool, error) {
	n := s.ns(name)
	n.mu.RLock()
	data, ok := n.tree.Get(key)
	n.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return false, &EncodingError{Namespace: name, Key: key, Err: err}
	}
	return true, nil
}

// Floor decodes into out the value under the greatest key <= key. Returns
// the matched key and false when no such entry exists.
func (s *TreeStore) Floor(name string, key int64, out interface{}) (int64, bool, error) {
	n := s.ns(name)
	n.mu.RLock()
	k, data, ok := n.tree.Floor(key)
	n.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return 0, false, &EncodingError{Namespace: name, Key: k, Err: err}
	}
	return k, true, nil
}

// Remove deletes the entry under key. Returns false if it was absent.
func (s *TreeStore) Remove(name string, key int64) bool {
	n := s.ns(name)
	n.mu.Lock()
	ok := n.tree.Delete(key)
	n.mu.Unlock()
	if ok {
		s.dirty.Store(true)
	}
	return ok
}

// Scan walks the namespace in ascending key order, calling fn with each raw
// value until limit entries have been visited or fn returns false. A
// limit <= 0 means no limit.
func (s *TreeStore) Scan(name string, limit int, fn func(key int64, value []byte) bool) {
	n := s.ns(name)
	n.mu.RLock()
	defer n.mu.RUnlock()

	seen := 0
	n.tree.Ascend(func(key int64, value []byte) bool {
		if limit > 0 && seen >= limit {
			return false
		}
		seen++
		return fn(key, value)
	})
}

// Size returns the number of entries in the namespace.
func (s *TreeStore) Size(name string) int {
	n := s.ns(name)
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tree.Size()
}

// Clear drops the namespace's content.
func (s *TreeStore) Clear(name string) {
	n := s.ns(name)
	n.mu.Lock()
	n.tree = rbtree.New()
	n.mu.Unlock()
	s.dirty.Store(true)
}

// ClearAll drops every namespace.
func (s *TreeStore) ClearAll() {
	s.namespaces.Range(func(name string, _ *namespace) bool {
		s.Clear(name)
		return true
	})
}

// MarkDirty flags the store as changed since the last snapshot.
func (s *TreeStore) MarkDirty() {
	s.dirty.Store(true)
}

// IsDirty reports whether the store changed since the last snapshot was
// taken. The checkpoint manager uses it to skip redundant writes.
func (s *TreeStore) IsDirty() bool {
	return s.dirty.Load()
}
