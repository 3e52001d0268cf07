package memory

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Collections map[string]int   `json:"collections"`
	Ops         map[string]int64 `json:"ops"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := StoreState{
		Collections: make(map[string]int, len(s.collections)),
		Ops:         make(map[string]int64, len(s.ops)),
	}
	for name, c := range s.collections {
		state.Collections[name] = len(c.records)
	}
	for op, n := range s.ops {
		state.Ops[op] = n
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "memory"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
