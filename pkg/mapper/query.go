package mapper

import (
	"context"
	"iter"
	"maps"
	"slices"

	"github.com/aretw0/strata/pkg/core"
	"github.com/aretw0/strata/pkg/document"
)

// Query is a lazy, restartable view over the records of a repository.
// Builder methods return a new Query; the receiver is never modified.
// Every terminal operation issues a fresh store request: caching is the
// identity map's job, not the query's.
type Query struct {
	repo     *Repository
	criteria core.Criteria
	opts     core.FindOptions
}

// Criteria returns the user criteria (without the type scope).
func (q *Query) Criteria() core.Criteria {
	return maps.Clone(q.criteria)
}

// Limit caps the number of records returned by All.
func (q *Query) Limit(n int64) *Query {
	next := q.clone()
	next.opts.Limit = n
	return next
}

// Skip drops the first n matching records.
func (q *Query) Skip(n int64) *Query {
	next := q.clone()
	next.opts.Skip = n
	return next
}

// Sort appends an ordering rule (1 ascending, -1 descending).
func (q *Query) Sort(field string, order int) *Query {
	next := q.clone()
	next.opts.Sort = append(next.opts.Sort, core.SortField{Field: field, Order: order})
	return next
}

func (q *Query) clone() *Query {
	return &Query{
		repo:     q.repo,
		criteria: q.criteria,
		opts: core.FindOptions{
			Limit: q.opts.Limit,
			Skip:  q.opts.Skip,
			Sort:  slices.Clone(q.opts.Sort),
		},
	}
}

// One returns the first matching document, or nil when nothing matches.
func (q *Query) One(ctx context.Context) (*document.Document, error) {
	r := q.repo
	scoped := r.scope(q.criteria)

	var (
		record core.Record
		err    error
	)
	if q.opts.Skip > 0 || len(q.opts.Sort) > 0 {
		opts := q.opts
		opts.Limit = 1
		var records []core.Record
		records, err = r.store.Find(ctx, r.CollectionName(), scoped, opts)
		if len(records) > 0 {
			record = records[0]
		}
	} else {
		record, err = r.store.FindOne(ctx, r.CollectionName(), scoped)
	}
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return r.materialize(record)
}

// All returns every matching document keyed by stringified identifier, in
// store order.
func (q *Query) All(ctx context.Context) (*Results, error) {
	r := q.repo
	records, err := r.store.Find(ctx, r.CollectionName(), r.scope(q.criteria), q.opts)
	if err != nil {
		return nil, err
	}

	results := &Results{docs: make(map[string]*document.Document, len(records))}
	for _, record := range records {
		doc, err := r.materialize(record)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		results.add(doc)
	}
	return results, nil
}

// Count returns the number of matching records, ignoring limit and skip.
func (q *Query) Count(ctx context.Context) (int64, error) {
	return q.repo.Count(ctx, q.criteria)
}

// Results is an ordered collection of documents keyed by identifier.
type Results struct {
	keys []string
	docs map[string]*document.Document
}

func (r *Results) add(doc *document.Document) {
	key := doc.Key()
	if _, dup := r.docs[key]; dup {
		return
	}
	r.keys = append(r.keys, key)
	r.docs[key] = doc
}

// Len returns the number of documents.
func (r *Results) Len() int {
	return len(r.keys)
}

// Keys returns the identifiers in store order.
func (r *Results) Keys() []string {
	return slices.Clone(r.keys)
}

// Get returns the document with the given stringified identifier.
func (r *Results) Get(key string) (*document.Document, bool) {
	doc, ok := r.docs[key]
	return doc, ok
}

// Documents returns the documents in store order.
func (r *Results) Documents() []*document.Document {
	out := make([]*document.Document, len(r.keys))
	for i, key := range r.keys {
		out[i] = r.docs[key]
	}
	return out
}

// All iterates over the documents in store order.
func (r *Results) All() iter.Seq2[string, *document.Document] {
	return func(yield func(string, *document.Document) bool) {
		for _, key := range r.keys {
			if !yield(key, r.docs[key]) {
				return
			}
		}
	}
}
