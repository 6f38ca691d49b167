package lifecycle

import (
	"sync"
	"time"
)

// DefaultRetention is how long a resolved row stays visible
const DefaultRetention = 10 * time.Second

// Listener receives the full row list after every change
type Listener func(rows []Row)

// Store holds the externally visible issue rows. It is safe for concurrent
// use and implements Sink.
type Store struct {
	mu        sync.RWMutex
	rows      map[string]Row
	order     []string
	retention time.Duration
	timers    map[string]*time.Timer
	listeners map[int]Listener
	nextID    int
	closed    bool
}

// NewStore creates a store that removes resolved rows after retention.
// A non-positive retention uses DefaultRetention.
func NewStore(retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		rows:      make(map[string]Row),
		retention: retention,
		timers:    make(map[string]*time.Timer),
		listeners: make(map[int]Listener),
	}
}

// Upsert inserts or replaces a row and cancels any pending removal
func (s *Store) Upsert(row Row) error {
	s.mu.Lock()
	if _, exists := s.rows[row.ID]; !exists {
		s.order = append(s.order, row.ID)
	}
	s.rows[row.ID] = row
	if t, ok := s.timers[row.ID]; ok {
		t.Stop()
		delete(s.timers, row.ID)
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

// Resolve marks a row RESOLVED and schedules its removal. Unknown ids are
// ignored.
func (s *Store) Resolve(id string, at time.Time) error {
	s.mu.Lock()
	row, ok := s.rows[id]
	if !ok || s.closed {
		s.mu.Unlock()
		return nil
	}

	row.Status = StatusResolved
	row.LastSeen = at
	s.rows[id] = row

	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	s.timers[id] = time.AfterFunc(s.retention, func() { s.remove(id) })

	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

// remove deletes a row only if it is still resolved
func (s *Store) remove(id string) {
	s.mu.Lock()
	row, ok := s.rows[id]
	if !ok || row.Status != StatusResolved {
		s.mu.Unlock()
		return
	}

	delete(s.rows, id)
	delete(s.timers, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	notify(listeners, snapshot)
}

// List returns all rows in insertion order
func (s *Store) List() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]Row, 0, len(s.order))
	for _, id := range s.order {
		rows = append(rows, s.rows[id])
	}
	return rows
}

// Get returns a single row
func (s *Store) Get(id string) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	return row, ok
}

// Subscribe registers a listener and immediately sends it the current rows.
// The returned function unregisters it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	l(s.List())

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close cancels pending removals
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.closed = true
}

func (s *Store) snapshotLocked() ([]Row, []Listener) {
	rows := make([]Row, 0, len(s.order))
	for _, id := range s.order {
		rows = append(rows, s.rows[id])
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	return rows, listeners
}

func notify(listeners []Listener, rows []Row) {
	for _, l := range listeners {
		l(rows)
	}
}
