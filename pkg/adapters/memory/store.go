// Package memory implements core.Store in process memory.
//
// Records are deep-copied on the way in and out, identifiers are BSON
// ObjectIDs, and criteria follow the Mongo query dialect, so the store can
// stand in for a real database in tests and tooling.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/aretw0/strata/pkg/core"
)

// Store is an in-memory document store. It is safe for concurrent use.
type Store struct {
	logger *slog.Logger

	mu          sync.RWMutex
	collections map[string]*collection
	ops         map[string]int64
}

type collection struct {
	records []core.Record // insertion order
}

// Config holds the configuration for the memory store.
type Config struct {
	Logger *slog.Logger
}

// NewStore creates an empty store.
func NewStore(config Config) *Store {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		logger:      logger,
		collections: make(map[string]*collection),
		ops:         make(map[string]int64),
	}
}

var _ core.Store = (*Store)(nil)

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{}
		s.collections[name] = c
	}
	return c
}

// Insert stores a copy of record under a new ObjectID unless it already
// carries an identifier.
func (s *Store) Insert(ctx context.Context, name string, record core.Record) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := deepCopy(record)
	id, ok := rec[core.IDField]
	if !ok || id == nil {
		id = primitive.NewObjectID()
		rec[core.IDField] = id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops["insert"]++
	c := s.coll(name)
	for _, existing := range c.records {
		if equal(existing[core.IDField], id) {
			return nil, fmt.Errorf("duplicate key %s in %s", core.KeyOf(id), name)
		}
	}
	c.records = append(c.records, rec)
	s.logger.Debug("insert", "collection", name, "id", core.KeyOf(id))
	return id, nil
}

// UpdateByID sets fields on the record with the given identifier.
func (s *Store) UpdateByID(ctx context.Context, name string, id any, fields core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops["update"]++
	for _, rec := range s.coll(name).records {
		if equal(rec[core.IDField], id) {
			for k, v := range deepCopy(fields) {
				if k == core.IDField {
					continue
				}
				rec[k] = v
			}
			return nil
		}
	}
	return fmt.Errorf("no record %s in %s", core.KeyOf(id), name)
}

// Count returns the number of matching records.
func (s *Store) Count(ctx context.Context, name string, criteria core.Criteria) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops["count"]++

	var n int64
	for _, rec := range s.coll(name).records {
		ok, err := matches(rec, criteria)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Remove deletes every matching record.
func (s *Store) Remove(ctx context.Context, name string, criteria core.Criteria) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops["remove"]++

	// Filter into a fresh slice so a failing criteria leaves the collection intact.
	c := s.coll(name)
	kept := make([]core.Record, 0, len(c.records))
	for _, rec := range c.records {
		ok, err := matches(rec, criteria)
		if err != nil {
			return err
		}
		if !ok {
			kept = append(kept, rec)
		}
	}
	removed := len(c.records) - len(kept)
	c.records = kept
	s.logger.Debug("remove", "collection", name, "removed", removed)
	return nil
}

// Find returns copies of the matching records.
func (s *Store) Find(ctx context.Context, name string, criteria core.Criteria, opts core.FindOptions) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.ops["find"]++
	var found []core.Record
	for _, rec := range s.coll(name).records {
		ok, err := matches(rec, criteria)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		if ok {
			found = append(found, deepCopy(rec))
		}
	}
	s.mu.Unlock()

	if len(opts.Sort) > 0 {
		slices.SortStableFunc(found, func(a, b core.Record) int {
			for _, sf := range opts.Sort {
				c := compare(a[sf.Field], b[sf.Field])
				if c != 0 {
					if sf.Order < 0 {
						return -c
					}
					return c
				}
			}
			return 0
		})
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(found)) {
			return nil, nil
		}
		found = found[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < int64(len(found)) {
		found = found[:opts.Limit]
	}
	return found, nil
}

// FindOne returns a copy of the first matching record, or nil.
func (s *Store) FindOne(ctx context.Context, name string, criteria core.Criteria) (core.Record, error) {
	found, err := s.Find(ctx, name, criteria, core.FindOptions{Limit: 1})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

// Records returns copies of every record of a collection in insertion order.
func (s *Store) Records(name string) []core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]core.Record, len(c.records))
	for i, rec := range c.records {
		out[i] = deepCopy(rec)
	}
	return out
}

// Restore replaces the content of a collection without counting an
// operation. Persistent adapters use it to load their snapshot.
func (s *Store) Restore(name string, records []core.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	c.records = make([]core.Record, len(records))
	for i, rec := range records {
		c.records[i] = deepCopy(rec)
	}
}

// Collections returns the names of the collections holding records, sorted.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name, c := range s.collections {
		if len(c.records) > 0 {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Ops returns how many times each store operation ran.
func (s *Store) Ops() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.ops)
}

func deepCopy(rec core.Record) core.Record {
	if rec == nil {
		return core.Record{}
	}
	out := make(core.Record, len(rec))
	for k, v := range rec {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = copyValue(item)
		}
		return m
	case core.Record:
		return map[string]any(deepCopy(val))
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = copyValue(item)
		}
		return s
	case []byte:
		return slices.Clone(val)
	}
	return v
}
