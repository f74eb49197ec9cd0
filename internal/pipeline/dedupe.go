package pipeline

import "sync"

// recentSet remembers the last size ids in insertion order.
type recentSet struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	ring  []string
	next  int
	limit int
}

func newRecentSet(size int) *recentSet {
	return &recentSet{
		ids:   make(map[string]struct{}, size),
		ring:  make([]string, size),
		limit: size,
	}
}

// Contains reports whether id was recorded and not yet evicted.
func (r *recentSet) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[id]
	return ok
}

// Add records id and reports whether it was new.
func (r *recentSet) Add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.ids, old)
	}
	r.ring[r.next] = id
	r.ids[id] = struct{}{}
	r.next = (r.next + 1) % r.limit
	return true
}
