// Package document holds the in-memory representative of a stored record and
// the dispatcher that fires lifecycle hooks across its inheritance chain.
package document

import (
	"fmt"
	"iter"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/schema"
)

// Document is one instance of a concrete document type.
//
// A fresh document has every declared field at its default and every field
// marked modified. A hydrated document starts clean. Concurrent mutation of
// the same Document is not synchronized.
type Document struct {
	typ       *schema.DocumentType
	id        any
	values    map[string]any
	persisted map[string]any // values as of the last load or save
	modified  map[string]struct{}

	mu     sync.Mutex // guards events
	events []string
}

// New creates a document of type t with every field at its default.
func New(t *schema.DocumentType) (*Document, error) {
	if t.Abstract() {
		return nil, fmt.Errorf("%w: %s", core.ErrAbstractType, t.Name())
	}

	d := &Document{
		typ:       t,
		values:    make(map[string]any),
		persisted: make(map[string]any),
		modified:  make(map[string]struct{}),
	}
	for _, f := range t.Fields() {
		d.values[f.Name] = cloneDefault(f.Default)
		d.modified[f.Name] = struct{}{}
	}
	return d, nil
}

// Hydrate builds a clean document of type t from a stored record.
// Unknown keys are ignored and missing fields take their default.
func Hydrate(t *schema.DocumentType, record core.Record) (*Document, error) {
	if t.Abstract() {
		return nil, fmt.Errorf("%w: %s", core.ErrAbstractType, t.Name())
	}

	d := &Document{
		typ:      t,
		id:       record[core.IDField],
		values:   make(map[string]any),
		modified: make(map[string]struct{}),
	}
	for _, f := range t.Fields() {
		raw, ok := record[f.Name]
		if !ok {
			d.values[f.Name] = cloneDefault(f.Default)
			continue
		}
		v, err := f.Type.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", t.Name(), f.Name, err)
		}
		d.values[f.Name] = v
	}
	d.persisted = maps.Clone(d.values)
	return d, nil
}

// Type returns the concrete type of the document.
func (d *Document) Type() *schema.DocumentType {
	return d.typ
}

// ID returns the store identifier, nil until the first save.
func (d *Document) ID() any {
	return d.id
}

// Key returns the stringified identifier used by the identity map.
func (d *Document) Key() string {
	return core.KeyOf(d.id)
}

// IsPersisted reports whether the document has been saved or loaded.
func (d *Document) IsPersisted() bool {
	return d.id != nil
}

// Set assigns a field after coercing the value to the declared type.
// Assigning the current value again leaves dirtiness untouched.
func (d *Document) Set(name string, value any) error {
	f, ok := d.typ.Field(name)
	if !ok {
		return d.unknown(name)
	}
	v, err := f.Type.Coerce(value)
	if err != nil {
		return fmt.Errorf("field %s.%s: %w", d.typ.Name(), name, err)
	}
	if reflect.DeepEqual(d.values[name], v) {
		return nil
	}
	d.values[name] = v
	d.modified[name] = struct{}{}
	return nil
}

// Get returns the current value of a field.
// Mappings and collections are returned by reference.
func (d *Document) Get(name string) (any, error) {
	if _, ok := d.typ.Field(name); !ok {
		return nil, d.unknown(name)
	}
	return d.values[name], nil
}

// FromMap assigns every entry through Set, in declaration order.
// Nothing is assigned when an entry names an undeclared field.
func (d *Document) FromMap(values map[string]any) error {
	for name := range values {
		if _, ok := d.typ.Field(name); !ok {
			return d.unknown(name)
		}
	}
	for _, name := range d.typ.FieldNames() {
		v, ok := values[name]
		if !ok {
			continue
		}
		if err := d.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

// ToMap exports the fields holding a value (never the identifier). Unset
// fields are left out, so ToMap returns what FromMap received for any map
// restricted to declared fields.
func (d *Document) ToMap() map[string]any {
	out := make(map[string]any, len(d.values))
	for name, v := range d.Values() {
		out[name] = v
	}
	return out
}

// Values iterates over the fields holding a value in declaration order.
func (d *Document) Values() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, name := range d.typ.FieldNames() {
			v := d.values[name]
			if v == nil {
				continue
			}
			if !yield(name, v) {
				return
			}
		}
	}
}

// IsModified reports whether a field changed since the last load or save.
func (d *Document) IsModified(name string) bool {
	_, ok := d.modified[name]
	return ok
}

// Modified returns the dirty fields in declaration order.
func (d *Document) Modified() []string {
	var out []string
	for _, name := range d.typ.FieldNames() {
		if d.IsModified(name) {
			out = append(out, name)
		}
	}
	return out
}

// ClearModified forgets every pending change without reverting values.
func (d *Document) ClearModified() {
	clear(d.modified)
	d.persisted = maps.Clone(d.values)
}

// Revert restores a field to its value as of the last load or save.
// On a document that was never persisted the default is restored and the
// field stays part of the insert payload.
func (d *Document) Revert(name string) error {
	f, ok := d.typ.Field(name)
	if !ok {
		return d.unknown(name)
	}
	if !d.IsPersisted() {
		d.values[name] = cloneDefault(f.Default)
		return nil
	}
	d.values[name] = d.persisted[name]
	delete(d.modified, name)
	return nil
}

// QueryForSave returns the minimal write payload.
//
// A document never persisted yields every declared field plus the
// discriminator of a non-root type. A persisted document yields only its
// dirty fields, and an empty payload when nothing changed.
func (d *Document) QueryForSave() (core.Record, error) {
	payload := core.Record{}
	if !d.IsPersisted() {
		if tag := d.typ.Tag(); tag != "" {
			payload[d.typ.Discriminator()] = tag
		}
		for _, f := range d.typ.Fields() {
			if err := d.encode(payload, f); err != nil {
				return nil, err
			}
		}
		return payload, nil
	}

	for _, f := range d.typ.Fields() {
		if !d.IsModified(f.Name) {
			continue
		}
		if err := d.encode(payload, f); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// MarkPersisted records a successful write: the identifier assigned by the
// store is attached (if the document had none) and the dirty set is cleared.
func (d *Document) MarkPersisted(id any) {
	if d.id == nil {
		d.id = id
	}
	d.ClearModified()
}

// Events returns the labels of every hook fired for this document.
func (d *Document) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.events)
}

func (d *Document) appendEvent(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, label)
}

func (d *Document) encode(payload core.Record, f schema.Field) error {
	v, err := f.Type.Encode(d.values[f.Name])
	if err != nil {
		return fmt.Errorf("field %s.%s: %w", d.typ.Name(), f.Name, err)
	}
	payload[f.Name] = v
	return nil
}

func (d *Document) unknown(name string) error {
	return fmt.Errorf("%w: %q on %s", core.ErrUnknownField, name, d.typ.Name())
}

func (d *Document) String() string {
	if d.id == nil {
		return d.typ.Name() + "(new)"
	}
	return d.typ.Name() + "(" + d.Key() + ")"
}

// cloneDefault keeps instances from sharing a mutable default.
func cloneDefault(v any) any {
	switch dv := v.(type) {
	case map[string]any:
		return maps.Clone(dv)
	case []any:
		return slices.Clone(dv)
	}
	return v
}
