package mapper

import (
	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Type            string `json:"type"`
	Collection      string `json:"collection"`
	Discriminator   string `json:"discriminator"`
	Tag             string `json:"tag,omitempty"`
	IdentityMapSize int    `json:"identity_map_size"`
	Hydrations      int64  `json:"hydrations"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	return RepositoryState{
		Type:            r.typ.Name(),
		Collection:      r.CollectionName(),
		Discriminator:   r.typ.Discriminator(),
		Tag:             r.typ.Tag(),
		IdentityMapSize: r.IdentityMap().Len(),
		Hydrations:      r.hierarchy.hydrations.Load(),
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "repository"
}

// HierarchyState describes one collection and its cache.
type HierarchyState struct {
	Root            string   `json:"root"`
	Collection      string   `json:"collection"`
	Types           []string `json:"types"`
	IdentityMapSize int      `json:"identity_map_size"`
	Hydrations      int64    `json:"hydrations"`
}

// MapperState exposes internal state for observability.
type MapperState struct {
	StoreType   string           `json:"store_type"`
	Hierarchies []HierarchyState `json:"hierarchies"`
}

// State implements introspection.Introspectable.
func (m *Mapper) State() any {
	storeType := "store"
	if comp, ok := m.store.(introspection.Component); ok {
		storeType = comp.ComponentType()
	}

	state := MapperState{StoreType: storeType}
	for _, root := range m.registry.Roots() {
		h := m.hierarchies[root]
		types := []string{root.Name()}
		for _, d := range root.Descendants() {
			types = append(types, d.Name())
		}
		state.Hierarchies = append(state.Hierarchies, HierarchyState{
			Root:            root.Name(),
			Collection:      root.Collection(),
			Types:           types,
			IdentityMapSize: h.identity.Len(),
			Hydrations:      h.hydrations.Load(),
		})
	}
	return state
}

// ComponentType implements introspection.Component.
func (m *Mapper) ComponentType() string {
	return "mapper"
}

var _ introspection.Introspectable = (*Mapper)(nil)
var _ introspection.Component = (*Mapper)(nil)
var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)
