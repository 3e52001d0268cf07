package mapper

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"reflect"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/document"
	"github.com/aretw0/strata/pkg/schema"
)

// Repository runs store operations for one document type. Every operation is
// scoped to the type and its descendants, so a derived repository never
// counts, removes or loads sibling records sharing the collection.
type Repository struct {
	typ        *schema.DocumentType
	registry   *schema.Registry
	store      core.Store
	dispatcher *document.Dispatcher
	logger     *slog.Logger
	hierarchy  *hierarchy
}

// Type returns the document type the repository is scoped to.
func (r *Repository) Type() *schema.DocumentType {
	return r.typ
}

// CollectionName returns the collection shared by the whole hierarchy.
func (r *Repository) CollectionName() string {
	return r.typ.Collection()
}

// IdentityMap returns the identity map shared by the hierarchy.
func (r *Repository) IdentityMap() *IdentityMap {
	return r.hierarchy.identity
}

// Create instantiates a new document of the repository type.
func (r *Repository) Create() (*document.Document, error) {
	return document.New(r.typ)
}

// Query starts a lazy query. Nothing reaches the store until a terminal
// operation runs.
func (r *Repository) Query(criteria core.Criteria) *Query {
	return &Query{repo: r, criteria: maps.Clone(criteria)}
}

// Count returns the number of records in scope matching criteria.
func (r *Repository) Count(ctx context.Context, criteria core.Criteria) (int64, error) {
	scoped := r.scope(criteria)
	r.logger.Debug("count", "criteria", scoped)
	return r.store.Count(ctx, r.CollectionName(), scoped)
}

// Remove deletes the records in scope matching criteria (all of them when
// criteria is empty).
//
// Cached documents are evicted only when the affected identifiers are known
// without reading the store: an empty criteria evicts every cached document
// in scope, and criteria made only of an _id equality or an _id $in list
// evicts exactly those. Any other criteria leaves the identity map untouched.
func (r *Repository) Remove(ctx context.Context, criteria core.Criteria) error {
	scoped := r.scope(criteria)
	r.logger.Debug("remove", "criteria", scoped)
	if err := r.store.Remove(ctx, r.CollectionName(), scoped); err != nil {
		return err
	}

	inScope := func(doc *document.Document) bool { return doc.Type().Is(r.typ) }
	if len(criteria) == 0 {
		n := r.IdentityMap().ForgetFunc(inScope)
		r.logger.Debug("evicted cached documents", "count", n)
		return nil
	}
	ids, ok := identifiersOf(criteria)
	if !ok {
		r.logger.Debug("remove criteria do not name identifiers, cached documents may be stale")
		return nil
	}
	for _, id := range ids {
		r.IdentityMap().ForgetIf(id, inScope)
	}
	return nil
}

// Save persists the changes of doc.
//
// A document with nothing to write is left alone: no store call and no hooks.
// Otherwise the Pre hooks fire, the document is inserted (or updated by
// identifier), marked clean, registered in the identity map, and the Post
// hooks fire.
func (r *Repository) Save(ctx context.Context, doc *document.Document) error {
	if !doc.Type().Is(r.typ) {
		return fmt.Errorf("%w: cannot save %s through the %s repository", core.ErrTypeMismatch, doc.Type().Name(), r.typ.Name())
	}

	payload, err := doc.QueryForSave()
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}

	if !doc.IsPersisted() {
		return r.insert(ctx, doc)
	}
	return r.update(ctx, doc)
}

func (r *Repository) insert(ctx context.Context, doc *document.Document) error {
	ctx = context.WithValue(ctx, core.OperationKey, "insert")
	if err := r.dispatcher.Dispatch(ctx, doc, core.PreInserting); err != nil {
		return err
	}

	// Pre hooks may have changed fields.
	payload, err := doc.QueryForSave()
	if err != nil {
		return err
	}

	id, err := r.store.Insert(ctx, r.CollectionName(), payload)
	if err != nil {
		return err
	}
	r.logger.Debug("inserted", "id", core.KeyOf(id), "fields", len(payload))

	doc.MarkPersisted(id)
	if err := r.IdentityMap().Register(id, doc); err != nil {
		return err
	}
	return r.dispatcher.Dispatch(ctx, doc, core.PostInserting)
}

func (r *Repository) update(ctx context.Context, doc *document.Document) error {
	ctx = context.WithValue(ctx, core.OperationKey, "update")
	if err := r.dispatcher.Dispatch(ctx, doc, core.PreUpdating); err != nil {
		return err
	}

	payload, err := doc.QueryForSave()
	if err != nil {
		return err
	}
	if len(payload) > 0 {
		if err := r.store.UpdateByID(ctx, r.CollectionName(), doc.ID(), payload); err != nil {
			return err
		}
		r.logger.Debug("updated", "id", doc.Key(), "fields", len(payload))
	}

	doc.MarkPersisted(nil)
	if err := r.IdentityMap().Register(doc.ID(), doc); err != nil {
		return err
	}
	return r.dispatcher.Dispatch(ctx, doc, core.PostUpdating)
}

// Delete removes a persisted document by identifier and evicts it.
func (r *Repository) Delete(ctx context.Context, doc *document.Document) error {
	if !doc.Type().Is(r.typ) {
		return fmt.Errorf("%w: cannot delete %s through the %s repository", core.ErrTypeMismatch, doc.Type().Name(), r.typ.Name())
	}
	if !doc.IsPersisted() {
		return fmt.Errorf("cannot delete %s: document was never saved", doc)
	}

	ctx = context.WithValue(ctx, core.OperationKey, "delete")
	if err := r.dispatcher.Dispatch(ctx, doc, core.PreDeleting); err != nil {
		return err
	}
	if err := r.store.Remove(ctx, r.CollectionName(), core.Criteria{core.IDField: doc.ID()}); err != nil {
		return err
	}
	r.IdentityMap().ForgetIf(doc.ID(), func(cached *document.Document) bool { return cached == doc })
	r.logger.Debug("deleted", "id", doc.Key())
	return r.dispatcher.Dispatch(ctx, doc, core.PostDeleting)
}

// FindByID returns the document with the given identifier, served from the
// identity map when cached. It returns nil when no record in scope matches.
func (r *Repository) FindByID(ctx context.Context, id any) (*document.Document, error) {
	if doc, ok := r.IdentityMap().Get(id); ok && doc.Type().Is(r.typ) {
		r.logger.Debug("identity map hit", "id", core.KeyOf(id))
		return doc, nil
	}
	return r.Query(core.Criteria{core.IDField: id}).One(ctx)
}

// scope adds the discriminator constraint of a non-root type to criteria.
func (r *Repository) scope(criteria core.Criteria) core.Criteria {
	if r.typ.IsRoot() {
		return criteria
	}

	var constraint core.Criteria
	tags := r.typ.ScopeTags()
	if len(tags) == 1 {
		constraint = core.Criteria{r.typ.Discriminator(): tags[0]}
	} else {
		in := make([]any, len(tags))
		for i, tag := range tags {
			in[i] = tag
		}
		constraint = core.Criteria{r.typ.Discriminator(): core.Criteria{"$in": in}}
	}

	if len(criteria) == 0 {
		return constraint
	}
	return core.Criteria{"$and": []any{criteria, constraint}}
}

// materialize turns a stored record into the canonical document for its
// identifier. A cached document wins over the fetched field values.
func (r *Repository) materialize(record core.Record) (*document.Document, error) {
	id, ok := record[core.IDField]
	if !ok || id == nil {
		return nil, fmt.Errorf("record in %s has no %s", r.CollectionName(), core.IDField)
	}

	typ, err := r.registry.Resolve(r.typ.Root(), record)
	if err != nil {
		return nil, err
	}
	if !typ.Is(r.typ) {
		r.logger.Debug("skipping record outside repository scope", "id", core.KeyOf(id), "resolved", typ.Name())
		return nil, nil
	}

	if doc, ok := r.IdentityMap().Get(id); ok {
		r.logger.Debug("identity map hit", "id", core.KeyOf(id))
		return doc, nil
	}

	fresh, err := document.Hydrate(typ, record)
	if err != nil {
		return nil, err
	}
	doc, loaded := r.IdentityMap().LoadOrRegister(id, fresh)
	if !loaded {
		r.hierarchy.hydrations.Add(1)
	}
	return doc, nil
}

// identifiersOf extracts the identifiers named by criteria of the form
// {_id: v} or {_id: {$in: [...]}}.
func identifiersOf(criteria core.Criteria) ([]any, bool) {
	if len(criteria) != 1 {
		return nil, false
	}
	v, ok := criteria[core.IDField]
	if !ok {
		return nil, false
	}

	ops, isMap := asMap(v)
	if !isMap {
		return []any{v}, true
	}
	if len(ops) != 1 {
		return nil, false
	}
	in, ok := ops["$in"]
	if !ok {
		return nil, false
	}
	rv := reflect.ValueOf(in)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	ids := make([]any, rv.Len())
	for i := range ids {
		ids[i] = rv.Index(i).Interface()
	}
	return ids, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case core.Criteria:
		return m, true
	case core.Record:
		return m, true
	case map[string]any:
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
