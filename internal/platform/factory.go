package platform

import (
	"context"
	"log/slog"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/mapper"
)

// Engine is a mapper bound to the store it opened.
type Engine struct {
	*mapper.Mapper

	eventBuffer int
	close       closer
}

// New compiles the schema, opens the store selected by uri and wires the
// mapper.
//
//	engine, err := strata.New(ctx, "memory://", strata.WithSchemaDir("./schemas"))
func New(ctx context.Context, uri string, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	registry, err := loadRegistry(o)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := initStore(ctx, uri, o)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("engine ready", "types", len(registry.Types()), "hierarchies", len(registry.Roots()))
	return &Engine{
		Mapper:      mapper.New(store, registry, mapper.Config{Logger: o.logger}),
		eventBuffer: o.eventBuffer,
		close:       closeStore,
	}, nil
}

// Watch streams every fired hook until ctx is done, using the configured
// buffer size.
func (e *Engine) Watch(ctx context.Context) <-chan core.Event {
	return e.Events(ctx, e.eventBuffer)
}

// Close releases the store.
func (e *Engine) Close(ctx context.Context) error {
	return e.close(ctx)
}
