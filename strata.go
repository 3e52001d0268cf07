package strata

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/strata/internal/platform"
	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/document"
	"github.com/aretw0/strata/pkg/mapper"
	"github.com/aretw0/strata/pkg/schema"
)

// --- Types ---

// Engine is a mapper bound to the store it opened.
type Engine = platform.Engine

// Document is one instance of a concrete document type.
type Document = document.Document

// Repository runs type-scoped store operations.
type Repository = mapper.Repository

// Type declares a document type.
type Type = schema.Type

// Field declares a document field.
type Field = schema.Field

// Criteria is a Mongo-dialect filter.
type Criteria = core.Criteria

// Event is emitted for every fired hook.
type Event = core.Event

// --- Configuration ---

// Option defines a functional option for configuring an Engine.
type Option = platform.Option

// WithLogger sets the logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore injects a custom storage adapter.
func WithStore(store core.Store) Option {
	return platform.WithStore(store)
}

// WithRegistry uses an already compiled schema.
func WithRegistry(registry *schema.Registry) Option {
	return platform.WithRegistry(registry)
}

// WithTypes compiles the given definitions at open time.
func WithTypes(defs ...Type) Option {
	return platform.WithTypes(defs...)
}

// WithSchemaDir loads YAML schema files from dir.
func WithSchemaDir(dir string) Option {
	return platform.WithSchemaDir(dir)
}

// WithSchemaPattern overrides the glob used under the schema directory.
func WithSchemaPattern(pattern string) Option {
	return platform.WithSchemaPattern(pattern)
}

// WithDatabase names the Mongo database.
func WithDatabase(name string) Option {
	return platform.WithDatabase(name)
}

// WithTimeout bounds connection of network stores.
func WithTimeout(d time.Duration) Option {
	return platform.WithTimeout(d)
}

// WithEventBuffer sets the buffer of Engine.Watch subscriptions.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithReadOnly opens file stores in read-only mode.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// --- Factory ---

// New compiles the schema and opens the store selected by uri
// ("memory://", "file://./data", "mongodb://host/db").
func New(ctx context.Context, uri string, opts ...Option) (*Engine, error) {
	return platform.New(ctx, uri, opts...)
}
