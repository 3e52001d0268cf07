// Package mapper projects single-collection inheritance hierarchies onto a
// document store: repositories scope every operation to a type, queries
// reconstruct polymorphic documents, and an identity map per hierarchy root
// keeps one instance per stored identifier.
package mapper

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/document"
	"github.com/aretw0/strata/pkg/schema"
)

// Config holds the configuration of a Mapper.
type Config struct {
	Logger *slog.Logger
}

// hierarchy is the state shared by every repository of one root.
type hierarchy struct {
	identity   *IdentityMap
	hydrations atomic.Int64
}

// Mapper owns the identity maps and hands out repositories.
type Mapper struct {
	store      core.Store
	registry   *schema.Registry
	dispatcher *document.Dispatcher
	logger     *slog.Logger

	hierarchies map[*schema.DocumentType]*hierarchy

	mu    sync.Mutex
	repos map[*schema.DocumentType]*Repository
}

// New creates a mapper over store for the types of registry.
func New(store core.Store, registry *schema.Registry, config Config) *Mapper {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	m := &Mapper{
		store:       store,
		registry:    registry,
		dispatcher:  document.NewDispatcher(logger),
		logger:      logger,
		hierarchies: make(map[*schema.DocumentType]*hierarchy),
		repos:       make(map[*schema.DocumentType]*Repository),
	}
	for _, root := range registry.Roots() {
		m.hierarchies[root] = &hierarchy{identity: NewIdentityMap()}
	}
	return m
}

// Registry returns the compiled schema.
func (m *Mapper) Registry() *schema.Registry {
	return m.registry
}

// Store returns the underlying store.
func (m *Mapper) Store() core.Store {
	return m.store
}

// Dispatcher returns the lifecycle dispatcher shared by all repositories.
func (m *Mapper) Dispatcher() *document.Dispatcher {
	return m.dispatcher
}

// Repository returns the repository of the named type.
// Repositories of one hierarchy share its identity map.
func (m *Mapper) Repository(name string) (*Repository, error) {
	t, err := m.registry.Type(name)
	if err != nil {
		return nil, err
	}
	return m.repositoryFor(t), nil
}

func (m *Mapper) repositoryFor(t *schema.DocumentType) *Repository {
	m.mu.Lock()
	defer m.mu.Unlock()

	if repo, ok := m.repos[t]; ok {
		return repo
	}
	repo := &Repository{
		typ:        t,
		registry:   m.registry,
		store:      m.store,
		dispatcher: m.dispatcher,
		logger:     m.logger.With("type", t.Name(), "collection", t.Collection()),
		hierarchy:  m.hierarchies[t.Root()],
	}
	m.repos[t] = repo
	return repo
}

// Create instantiates a new document of the named type with its defaults.
func (m *Mapper) Create(name string) (*document.Document, error) {
	t, err := m.registry.Type(name)
	if err != nil {
		return nil, err
	}
	return document.New(t)
}

// Save persists doc through the repository of its concrete type.
func (m *Mapper) Save(ctx context.Context, doc *document.Document) error {
	return m.repositoryFor(doc.Type()).Save(ctx, doc)
}

// Bind attaches a callback to a hook declared by the named type.
func (m *Mapper) Bind(name string, kind core.EventKind, fn document.HookFunc) error {
	t, err := m.registry.Type(name)
	if err != nil {
		return err
	}
	return m.dispatcher.Bind(t, kind, fn)
}

// Events streams every fired hook until ctx is done.
func (m *Mapper) Events(ctx context.Context, buffer int) <-chan core.Event {
	return m.dispatcher.Watch(ctx, buffer)
}

// ClearIdentityMaps evicts every cached document of every hierarchy.
func (m *Mapper) ClearIdentityMaps() {
	for _, h := range m.hierarchies {
		h.identity.Clear()
	}
}
