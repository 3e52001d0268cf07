package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/schema"
)

// options holds the internal configuration for an Engine.
type options struct {
	logger        *slog.Logger
	store         core.Store
	registry      *schema.Registry
	types         []schema.Type
	schemaDir     string
	schemaPattern string
	database      string
	timeout       time.Duration
	eventBuffer   int
	readOnly      bool
}

// Option defines a functional option for configuring an Engine.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		schemaPattern: schema.DefaultPattern,
		eventBuffer:   100,
	}
}

// WithLogger sets the logger for the engine and everything it wires.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a storage adapter. The URI is then ignored.
func WithStore(store core.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithRegistry uses an already compiled schema.
func WithRegistry(registry *schema.Registry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithTypes compiles the given definitions at open time.
func WithTypes(defs ...schema.Type) Option {
	return func(o *options) {
		o.types = append(o.types, defs...)
	}
}

// WithSchemaDir loads YAML schema files from dir.
func WithSchemaDir(dir string) Option {
	return func(o *options) {
		o.schemaDir = dir
	}
}

// WithSchemaPattern overrides the glob used under the schema directory.
// Defaults to schema.DefaultPattern.
func WithSchemaPattern(pattern string) Option {
	return func(o *options) {
		if pattern != "" {
			o.schemaPattern = pattern
		}
	}
}

// WithDatabase names the Mongo database. It wins over the database in the URI.
func WithDatabase(name string) Option {
	return func(o *options) {
		o.database = name
	}
}

// WithTimeout bounds connection and server selection of network stores.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithEventBuffer sets the default buffer of event subscriptions.
// Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.eventBuffer = size
		}
	}
}

// WithReadOnly opens file stores in read-only mode: writes fail with
// core.ErrReadOnly.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}
