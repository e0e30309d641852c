// Package keylock provides an in-process mutex table keyed by string.
//
// It serializes read-modify-write sequences that must not interleave for the
// same logical key (a store file, a user's daily draw) while letting distinct
// keys proceed in parallel. Entries are reference counted and removed once no
// goroutine holds or waits on them, so the table stays bounded by the number
// of keys in active use.
package keylock

import "sync"

// entry is one lock plus the number of goroutines holding or waiting on it.
type entry struct {
	mu   sync.Mutex
	refs int
}

// Map is a table of mutexes keyed by string. The zero value is ready to use.
//
// This type is safe for concurrent use.
type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New returns an empty Map.
func New() *Map {
	return &Map{locks: make(map[string]*entry)}
}

// Lock blocks until the lock for key is held and returns the function that
// releases it. The returned func must be called exactly once.
func (m *Map) Lock(key string) (unlock func()) {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*entry)
	}
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()

			m.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(m.locks, key)
			}
			m.mu.Unlock()
		})
	}
}

// With runs fn while holding the lock for key.
func (m *Map) With(key string, fn func() error) error {
	unlock := m.Lock(key)
	defer unlock()
	return fn()
}

// Len reports how many keys currently have holders or waiters.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
