package mongo

import (
	"maps"

	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Database string           `json:"database"`
	Ops      map[string]int64 `json:"ops"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreState{
		Database: s.database,
		Ops:      maps.Clone(s.ops),
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "mongo"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
