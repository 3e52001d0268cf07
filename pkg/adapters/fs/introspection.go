package fs

import (
	"github.com/aretw0/introspection"

	"github.com/aretw0/strata/pkg/adapters/memory"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Dir      string            `json:"dir"`
	ReadOnly bool              `json:"read_only"`
	Flushes  int64             `json:"flushes"`
	Memory   memory.StoreState `json:"memory"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	flushes := s.flushes
	s.mu.Unlock()

	return StoreState{
		Dir:      s.dir,
		ReadOnly: s.readOnly,
		Flushes:  flushes,
		Memory:   s.Store.State().(memory.StoreState),
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "fs"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
