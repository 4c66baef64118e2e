// Package keymutex provides mutual exclusion scoped to a string key.
package keymutex

import "sync"

// M serializes callers locking the same key while leaving different keys
// independent. Entries are reference-counted and dropped when the last
// holder unlocks, so the map never grows with the keyspace.
type M struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *M {
	return &M{locks: make(map[string]*entry)}
}

func (m *M) Lock(key string) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()
	e.mu.Lock()
}

func (m *M) Unlock(key string) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		m.mu.Unlock()
		panic("keymutex: unlock of unheld key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
	e.mu.Unlock()
}
