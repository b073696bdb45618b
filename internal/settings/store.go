// Package settings holds process-wide runtime configuration that the boot
// routine publishes for the presentation layer.
package settings

import (
	"maps"
	"sync"
)

// Keys published by the update routine.
const (
	KeyPendingActions = "updating.count_pending_actions"
	KeyRequestPath    = "updating.updating_request_path"
	KeyUpdatePath     = "updating.updating_update_path"
)

// Store is a concurrency-safe key/value map.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{values: make(map[string]any)}
}

// Set merges values into the store.
func (s *Store) Set(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.values, values)
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]

	return v, ok
}

// Int returns the value under key as an int, or 0.
func (s *Store) Int(key string) int {
	v, _ := s.Get(key)

	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

// String returns the value under key as a string, or "".
func (s *Store) String(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)

	return str
}

// Snapshot returns a copy of all values.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.values)
}
