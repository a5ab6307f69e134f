package capture

import (
	"slices"
	"sync"
)

// Registry is the authoritative in-memory captured set. IDs keep their
// insertion order so that snapshots and the persisted list read the same
// way the captures happened.
type Registry struct {
	mu      sync.RWMutex
	members map[int]struct{}
	order   []int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{members: make(map[int]struct{})}
}

// Record adds id if absent. The membership check and the insert happen under
// one lock, so concurrent calls for the same new id see exactly one
// OutcomeNew.
func (r *Registry) Record(id int) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[id]; exists {
		return OutcomeDuplicate
	}
	r.members[id] = struct{}{}
	r.order = append(r.order, id)
	return OutcomeNew
}

// Reset empties the set and returns the new (empty) full state.
func (r *Registry) Reset() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members = make(map[int]struct{})
	r.order = nil
	return []int{}
}

// CompleteAll replaces the set with 1..n and returns the new full state.
func (r *Registry) CompleteAll(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members = make(map[int]struct{}, n)
	r.order = make([]int, 0, n)
	for id := 1; id <= n; id++ {
		r.members[id] = struct{}{}
		r.order = append(r.order, id)
	}
	return slices.Clone(r.order)
}

// Replace seeds the set from ids, dropping repeats. Used when restoring
// persisted state.
func (r *Registry) Replace(ids []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members = make(map[int]struct{}, len(ids))
	r.order = make([]int, 0, len(ids))
	for _, id := range ids {
		if _, exists := r.members[id]; exists {
			continue
		}
		r.members[id] = struct{}{}
		r.order = append(r.order, id)
	}
}

// Snapshot returns a copy of the captured IDs in insertion order. Never nil.
func (r *Registry) Snapshot() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// Contains reports whether id is captured.
func (r *Registry) Contains(id int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

// Len returns the number of captured IDs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
