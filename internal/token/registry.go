package token

import (
	"sync"
)

// Registry owns one allocator per activity, created lazily. Allocators are
// never shared across activities and never removed while the process runs;
// Clear empties an activity's tickets without discarding its allocator.
type Registry struct {
	mu         sync.RWMutex
	allocators map[uint64]*Allocator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		allocators: make(map[uint64]*Allocator),
	}
}

// Get returns the allocator for the activity, creating it on first use.
func (r *Registry) Get(activityID uint64) *Allocator {
	r.mu.RLock()
	a, ok := r.allocators[activityID]
	r.mu.RUnlock()
	if ok {
		return a
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok = r.allocators[activityID]; ok {
		return a
	}
	a = NewAllocator(activityID)
	r.allocators[activityID] = a
	return a
}

// Peek returns the allocator for the activity without creating it.
func (r *Registry) Peek(activityID uint64) (*Allocator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.allocators[activityID]
	return a, ok
}

// TotalSize sums the unclaimed tickets across all activities.
func (r *Registry) TotalSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, a := range r.allocators {
		total += a.Size()
	}
	return total
}
