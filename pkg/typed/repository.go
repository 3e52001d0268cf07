// Package typed offers a generic, struct-backed view over mapper repositories.
//
// Field values travel through encoding/json, so struct fields bind to declared
// document fields by their json tags.
package typed

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/document"
	"github.com/aretw0/strata/pkg/mapper"
)

// DocumentModel pairs a document with a typed copy of its fields.
// Data is a snapshot: edits reach the document on Save.
type DocumentModel[T any] struct {
	Doc  *document.Document
	Data T

	saver Saver[T]
}

// Saver avoids coupling a model to a concrete repository.
type Saver[T any] interface {
	Save(ctx context.Context, model *DocumentModel[T]) error
}

// ID returns the store identifier of the underlying document.
func (m *DocumentModel[T]) ID() any {
	return m.Doc.ID()
}

// Save persists the model through the repository that produced it.
func (m *DocumentModel[T]) Save(ctx context.Context) error {
	if m.saver == nil {
		return fmt.Errorf("document model is detached (missing saver)")
	}
	return m.saver.Save(ctx, m)
}

// Repository wraps a mapper repository to provide type-safe access.
type Repository[T any] struct {
	repo *mapper.Repository
}

// NewRepository creates a typed view over repo.
func NewRepository[T any](repo *mapper.Repository) *Repository[T] {
	return &Repository[T]{repo: repo}
}

// Of is a shortcut for NewRepository over the named type of m.
func Of[T any](m *mapper.Mapper, name string) (*Repository[T], error) {
	repo, err := m.Repository(name)
	if err != nil {
		return nil, err
	}
	return NewRepository[T](repo), nil
}

// Raw returns the underlying mapper repository.
func (r *Repository[T]) Raw() *mapper.Repository {
	return r.repo
}

// Create instantiates a new document carrying data.
// Nothing is written until Save.
func (r *Repository[T]) Create(data T) (*DocumentModel[T], error) {
	doc, err := r.repo.Create()
	if err != nil {
		return nil, err
	}
	model := &DocumentModel[T]{Doc: doc, Data: data, saver: r}
	if err := r.push(model); err != nil {
		return nil, err
	}
	return model, nil
}

// Save copies Data onto the document and persists the resulting changes.
// Fields whose value did not change stay out of the update payload.
func (r *Repository[T]) Save(ctx context.Context, model *DocumentModel[T]) error {
	if model.Doc == nil {
		return fmt.Errorf("document model has no document")
	}
	if err := r.push(model); err != nil {
		return err
	}
	if err := r.repo.Save(ctx, model.Doc); err != nil {
		return err
	}
	// Pre hooks may have rewritten fields.
	return r.pull(model)
}

// FindByID returns the typed model of the given identifier, or nil.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (*DocumentModel[T], error) {
	doc, err := r.repo.FindByID(ctx, id)
	if err != nil || doc == nil {
		return nil, err
	}
	return r.Wrap(doc)
}

// Find returns the typed models matching criteria, in store order.
func (r *Repository[T]) Find(ctx context.Context, criteria core.Criteria) ([]*DocumentModel[T], error) {
	results, err := r.repo.Query(criteria).All(ctx)
	if err != nil {
		return nil, err
	}
	models := make([]*DocumentModel[T], 0, results.Len())
	for _, doc := range results.Documents() {
		model, err := r.Wrap(doc)
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}
	return models, nil
}

// Delete removes the document behind model.
func (r *Repository[T]) Delete(ctx context.Context, model *DocumentModel[T]) error {
	return r.repo.Delete(ctx, model.Doc)
}

// Wrap builds a typed model around an existing document.
func (r *Repository[T]) Wrap(doc *document.Document) (*DocumentModel[T], error) {
	model := &DocumentModel[T]{Doc: doc, saver: r}
	if err := r.pull(model); err != nil {
		return nil, err
	}
	return model, nil
}

func (r *Repository[T]) push(model *DocumentModel[T]) error {
	values, err := jsonObject(model.Data)
	if err != nil {
		return err
	}
	for name := range values {
		if _, ok := model.Doc.Type().Field(name); !ok {
			return fmt.Errorf("%w: %q on %s", core.ErrUnknownField, name, model.Doc.Type().Name())
		}
	}

	// Compare in JSON form: a stored int and its decoded float64 are the
	// same value and must not dirty the field.
	current, err := jsonObject(model.Doc.ToMap())
	if err != nil {
		return err
	}
	changed := make(map[string]any, len(values))
	for name, v := range values {
		if reflect.DeepEqual(current[name], v) {
			continue
		}
		changed[name] = v
	}
	return model.Doc.FromMap(changed)
}

// jsonObject round-trips v through encoding/json into a plain object.
func jsonObject(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%T does not encode as an object: %w", v, err)
	}
	return out, nil
}

func (r *Repository[T]) pull(model *DocumentModel[T]) error {
	raw, err := json.Marshal(model.Doc.ToMap())
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", model.Doc, err)
	}
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to decode %s into %T: %w", model.Doc, data, err)
	}
	model.Data = data
	return nil
}
