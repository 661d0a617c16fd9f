package digest

import (
	"fmt"
	"sync"
)

// Field names written to the pipeline state.
const (
	FieldRawText     = "raw_text"
	FieldStyle       = "style"
	FieldCleanedText = "cleaned_text"
	FieldSummary     = "summary"
	FieldFinalOutput = "final_output"
	FieldOutput      = "output"
)

// State is the ordered set of named text fields produced by a run.
// Each field is written once and never changed afterwards.
type State struct {
	keys   []string
	values map[string]string
	mu     sync.RWMutex
}

// NewState creates an empty state.
func NewState() *State {
	return &State{values: make(map[string]string)}
}

// Set writes a field. Writing an existing field returns ErrFieldAlreadySet.
func (s *State) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; ok {
		return fmt.Errorf("%w: %s", ErrFieldAlreadySet, key)
	}
	s.keys = append(s.keys, key)
	s.values[key] = value
	return nil
}

// Get returns a field and whether it was set.
func (s *State) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Keys returns field names in the order they were written.
func (s *State) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Len returns the number of fields set.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Snapshot returns a copy of all fields.
func (s *State) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
