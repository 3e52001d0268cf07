package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"github.com/aretw0/strata/pkg/adapters/fs"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/adapters/mongo"
	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/schema"
)

// URI schemes understood by Init.
const (
	MemoryURI = "memory://"
	FileURI   = "file://"
)

// closer releases the resources of a store. It is a no-op for the memory store.
type closer func(ctx context.Context) error

// Init builds the store selected by uri: "" or memory:// for the in-process
// store, file://<dir> for Extended JSON files, mongodb:// or mongodb+srv://
// for MongoDB.
func Init(ctx context.Context, uri string, opts ...Option) (core.Store, closer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return initStore(ctx, uri, o)
}

func initStore(ctx context.Context, uri string, o *options) (core.Store, closer, error) {
	noop := func(context.Context) error { return nil }

	if o.store != nil {
		return o.store, noop, nil
	}

	switch {
	case uri == "" || strings.HasPrefix(uri, MemoryURI):
		return memory.NewStore(memory.Config{Logger: o.logger}), noop, nil
	case strings.HasPrefix(uri, FileURI):
		dir := strings.TrimPrefix(uri, FileURI)
		if dir == "" {
			return nil, nil, errors.New("file store needs a directory: file://<dir>")
		}
		store, err := fs.Open(dir, fs.Config{Logger: o.logger, ReadOnly: o.readOnly})
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return initMongo(ctx, uri, o)
	}
	return nil, nil, fmt.Errorf("unsupported store uri: %q", uri)
}

func initMongo(ctx context.Context, uri string, o *options) (core.Store, closer, error) {
	database := o.database
	if database == "" {
		cs, err := connstring.ParseAndValidate(uri)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid mongo uri: %w", err)
		}
		database = cs.Database
	}
	if database == "" {
		return nil, nil, errors.New("mongo store needs a database: set it in the uri path or with WithDatabase")
	}

	store, err := mongo.Connect(ctx, mongo.Config{
		URI:      uri,
		Database: database,
		Timeout:  o.timeout,
		Logger:   o.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// LoadRegistry resolves the schema from the options: an injected registry,
// inline definitions, or YAML files under the schema directory, in that order.
func LoadRegistry(opts ...Option) (*schema.Registry, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return loadRegistry(o)
}

func loadRegistry(o *options) (*schema.Registry, error) {
	switch {
	case o.registry != nil:
		return o.registry, nil
	case len(o.types) > 0:
		return schema.Compile(o.types...)
	case o.schemaDir != "":
		logger := o.logger
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		logger.Debug("loading schema files", "dir", o.schemaDir, "pattern", o.schemaPattern)
		return schema.LoadFiles(o.schemaDir, o.schemaPattern)
	}
	return nil, fmt.Errorf("%w: no schema configured", core.ErrInvalidSchema)
}
