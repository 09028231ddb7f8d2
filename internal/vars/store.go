// Package vars implements the shared variable space through which steps
// exchange data via their declared reads and writes.
package vars

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/vk/stepgrid/internal/ctxlog"
)

// Store is a concurrency-safe mapping from variable name to value. Values
// are loosely typed: strings, numbers, booleans, slices, or nested maps.
//
// Entries only grow or get overwritten for the duration of a run. A
// well-formed plan orders any two writers of the same key with a dependency
// edge; the lock here is defense-in-depth for concurrently completing
// steps, not a conflict-resolution mechanism.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// New returns an empty store.
func New() *Store {
	return &Store{values: make(map[string]any)}
}

// Set binds a value to a name, overwriting any previous binding.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Get returns the value bound to name.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Len returns the number of bound names.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Keys returns all bound names in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of the current bindings.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Replace swaps in a full set of bindings, discarding the old ones. Used
// when restoring a session snapshot.
func (s *Store) Replace(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]any, len(values))
	for k, v := range values {
		s.values[k] = v
	}
}

// Resolve returns the values for a step's declared reads. A missing read is
// not fatal: it is left out of the result and logged with a hint naming any
// similar bound keys, since the most common cause is a planner typo.
func (s *Store) Resolve(ctx context.Context, reads []string) map[string]any {
	logger := ctxlog.FromContext(ctx)
	inputs := make(map[string]any, len(reads))
	for _, name := range reads {
		if v, ok := s.Get(name); ok {
			inputs[name] = v
			continue
		}
		logger.Warn("Read variable not bound.", "name", name, "similar", s.similarKeys(name))
	}
	return inputs
}

// similarKeys finds bound names that contain, or are contained by, the
// missing name (case-insensitive).
func (s *Store) similarKeys(name string) []string {
	lower := strings.ToLower(name)
	var similar []string
	for _, k := range s.Keys() {
		lk := strings.ToLower(k)
		if strings.Contains(lk, lower) || strings.Contains(lower, lk) {
			similar = append(similar, k)
		}
	}
	return similar
}
