// Package history keeps a bounded, ordered buffer of recent snapshots per
// component. It holds no policy and is not safe for concurrent use: it is
// owned by a single engine.
package history

import "github.com/amiyaDev/perfguard/internal/model"

// DefaultCapacity is the number of snapshots retained per component.
const DefaultCapacity = 10

// ring is a fixed-capacity FIFO of snapshots for one component.
type ring struct {
	buf  []model.Snapshot
	head int
	size int
}

func (r *ring) push(s model.Snapshot) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// at returns the snapshot at position i (0 = oldest).
func (r *ring) at(i int) model.Snapshot {
	c := len(r.buf)
	return r.buf[(r.head-r.size+i+c)%c]
}

// Store maps components to their recent snapshots.
type Store struct {
	capacity int
	rings    map[string]*ring
	total    int
}

// New creates a store retaining at most capacity snapshots per component.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		rings:    make(map[string]*ring),
	}
}

// Capacity returns the per-component capacity
func (s *Store) Capacity() int {
	return s.capacity
}

// Record appends a snapshot, evicting the oldest once capacity is exceeded.
func (s *Store) Record(component string, snap model.Snapshot) {
	r, ok := s.rings[component]
	if !ok {
		r = &ring{buf: make([]model.Snapshot, s.capacity)}
		s.rings[component] = r
	}
	if r.size < s.capacity {
		s.total++
	}
	r.push(snap)
}

// Get returns a copy of the component's snapshots, oldest first. Unknown
// components yield an empty slice.
func (s *Store) Get(component string) []model.Snapshot {
	r, ok := s.rings[component]
	if !ok {
		return []model.Snapshot{}
	}
	out := make([]model.Snapshot, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.at(i)
	}
	return out
}

// Previous returns the most recently recorded snapshot for the component.
func (s *Store) Previous(component string) (model.Snapshot, bool) {
	r, ok := s.rings[component]
	if !ok || r.size == 0 {
		return model.Snapshot{}, false
	}
	return r.at(r.size - 1), true
}

// Len returns the number of components tracked
func (s *Store) Len() int {
	return len(s.rings)
}

// Total returns the number of snapshots retained across all components
func (s *Store) Total() int {
	return s.total
}

// Reset drops all history
func (s *Store) Reset() {
	s.rings = make(map[string]*ring)
	s.total = 0
}
