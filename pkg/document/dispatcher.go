package document

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/schema"
)

// HookFunc is a callback bound to a declared hook.
type HookFunc func(ctx context.Context, doc *Document) error

// Dispatcher fires the hooks of a document's ancestor chain, base type first,
// for both Pre and Post kinds. Every fired hook is labelled
// "<TypeLabel><EventKind>" in the document's event log.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	bindings map[*schema.DocumentType]map[core.EventKind][]HookFunc
	subs     map[chan core.Event]struct{}
}

// NewDispatcher creates a dispatcher. A nil logger disables logging.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		bindings: make(map[*schema.DocumentType]map[core.EventKind][]HookFunc),
		subs:     make(map[chan core.Event]struct{}),
	}
}

// Bind attaches fn to a hook declared by t. Callbacks run in bind order.
func (d *Dispatcher) Bind(t *schema.DocumentType, kind core.EventKind, fn HookFunc) error {
	if !slices.Contains(t.Hooks(), kind) {
		return fmt.Errorf("%w: %s does not declare hook %s", core.ErrInvalidSchema, t.Name(), kind)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bindings[t] == nil {
		d.bindings[t] = make(map[core.EventKind][]HookFunc)
	}
	d.bindings[t][kind] = append(d.bindings[t][kind], fn)
	return nil
}

// Dispatch fires kind for doc. A type that does not declare kind contributes
// nothing. The first failing callback stops the walk.
func (d *Dispatcher) Dispatch(ctx context.Context, doc *Document, kind core.EventKind) error {
	for _, t := range doc.Type().Chain() {
		if !slices.Contains(t.Hooks(), kind) {
			continue
		}

		label := t.Label() + string(kind)
		doc.appendEvent(label)
		d.publish(core.Event{
			ID:        uuid.NewString(),
			Kind:      kind,
			Type:      doc.Type().Name(),
			Label:     label,
			Key:       doc.Key(),
			Timestamp: time.Now(),
		})

		d.mu.RLock()
		fns := slices.Clone(d.bindings[t][kind])
		d.mu.RUnlock()

		for _, fn := range fns {
			if err := fn(ctx, doc); err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
		}
	}
	return nil
}

// Watch streams every fired hook until ctx is done.
// A subscriber that falls more than buffer events behind loses events rather
// than stalling persistence.
func (d *Dispatcher) Watch(ctx context.Context, buffer int) <-chan core.Event {
	if buffer <= 0 {
		buffer = 100
	}
	ch := make(chan core.Event, buffer)

	d.mu.Lock()
	d.subs[ch] = struct{}{}
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		delete(d.subs, ch)
		d.mu.Unlock()
		close(ch)
	}()
	return ch
}

func (d *Dispatcher) publish(e core.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for ch := range d.subs {
		select {
		case ch <- e:
		default:
			if d.logger != nil {
				d.logger.Warn("event subscriber is full, dropping event", "event", e.Label, "key", e.Key)
			}
		}
	}
}
