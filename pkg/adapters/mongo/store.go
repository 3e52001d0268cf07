// Package mongo implements core.Store on top of the official MongoDB driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aretw0/strata/pkg/core"
)

// DefaultTimeout bounds connection and server selection.
const DefaultTimeout = 10 * time.Second

// Config holds the connection settings of the Mongo store.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Store is a core.Store backed by one MongoDB database.
type Store struct {
	client   *mongo.Client
	database string
	logger   *slog.Logger

	mu  sync.Mutex
	ops map[string]int64
}

var _ core.Store = (*Store)(nil)

// Connect dials the server and verifies it with a ping.
func Connect(ctx context.Context, config Config) (*Store, error) {
	if config.Database == "" {
		return nil, errors.New("mongo: database name is required")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := mopt.Client().ApplyURI(config.URI)
	opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return NewStore(client, config.Database, config.Logger), nil
}

// NewStore wraps an already connected client.
func NewStore(client *mongo.Client, database string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		client:   client,
		database: database,
		logger:   logger,
		ops:      make(map[string]int64),
	}
}

// Ping checks that the server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.client.Database(s.database).Collection(name)
}

func (s *Store) count(op string) {
	s.mu.Lock()
	s.ops[op]++
	s.mu.Unlock()
}

// Insert adds record and returns the identifier assigned by the server
// (or carried by the record).
func (s *Store) Insert(ctx context.Context, name string, record core.Record) (any, error) {
	s.count("insert")
	res, err := s.coll(name).InsertOne(ctx, bson.M(record))
	if err != nil {
		return nil, fmt.Errorf("mongo: insert into %s: %w", name, err)
	}
	s.logger.Debug("insert", "collection", name, "id", core.KeyOf(res.InsertedID))
	return res.InsertedID, nil
}

// UpdateByID $sets fields on the document with the given identifier.
func (s *Store) UpdateByID(ctx context.Context, name string, id any, fields core.Record) error {
	s.count("update")
	set := bson.M{}
	for k, v := range fields {
		if k == core.IDField {
			continue
		}
		set[k] = v
	}
	if len(set) == 0 {
		return nil
	}

	res, err := s.coll(name).UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("mongo: update %s in %s: %w", core.KeyOf(id), name, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("mongo: no document %s in %s", core.KeyOf(id), name)
	}
	return nil
}

// Count returns the number of documents matching criteria.
func (s *Store) Count(ctx context.Context, name string, criteria core.Criteria) (int64, error) {
	s.count("count")
	n, err := s.coll(name).CountDocuments(ctx, filter(criteria))
	if err != nil {
		return 0, fmt.Errorf("mongo: count %s: %w", name, err)
	}
	return n, nil
}

// Remove deletes every document matching criteria.
func (s *Store) Remove(ctx context.Context, name string, criteria core.Criteria) error {
	s.count("remove")
	res, err := s.coll(name).DeleteMany(ctx, filter(criteria))
	if err != nil {
		return fmt.Errorf("mongo: remove from %s: %w", name, err)
	}
	s.logger.Debug("remove", "collection", name, "removed", res.DeletedCount)
	return nil
}

// Find returns the matching documents with plain Go maps and slices in place
// of the driver's BSON types.
func (s *Store) Find(ctx context.Context, name string, criteria core.Criteria, opts core.FindOptions) ([]core.Record, error) {
	s.count("find")
	findOpts := mopt.Find()
	if sort := sortDoc(opts.Sort); len(sort) > 0 {
		findOpts.SetSort(sort)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}

	cursor, err := s.coll(name).Find(ctx, filter(criteria), findOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find in %s: %w", name, err)
	}
	defer cursor.Close(ctx)

	var out []core.Record
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mongo: decode from %s: %w", name, err)
		}
		out = append(out, NormalizeRecord(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: cursor on %s: %w", name, err)
	}
	return out, nil
}

// FindOne returns the first matching document, or nil when none matches.
func (s *Store) FindOne(ctx context.Context, name string, criteria core.Criteria) (core.Record, error) {
	s.count("find_one")
	var raw bson.M
	err := s.coll(name).FindOne(ctx, filter(criteria)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: find one in %s: %w", name, err)
	}
	return NormalizeRecord(raw), nil
}

func filter(criteria core.Criteria) bson.M {
	if criteria == nil {
		return bson.M{}
	}
	return bson.M(criteria)
}

func sortDoc(fields []core.SortField) bson.D {
	var doc bson.D
	for _, f := range fields {
		direction := 1
		if f.Order < 0 {
			direction = -1
		}
		doc = append(doc, bson.E{Key: f.Field, Value: direction})
	}
	return doc
}

// NormalizeRecord converts a decoded document into a core.Record, see Normalize.
func NormalizeRecord(raw bson.M) core.Record {
	out := make(core.Record, len(raw))
	for k, v := range raw {
		out[k] = Normalize(v)
	}
	return out
}

// Normalize replaces driver document and array types with map[string]any and
// []any so values coerce like any other decoded data.
func Normalize(v any) any {
	switch val := v.(type) {
	case primitive.M:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = Normalize(item)
		}
		return m
	case primitive.D:
		m := make(map[string]any, len(val))
		for _, e := range val {
			m[e.Key] = Normalize(e.Value)
		}
		return m
	case primitive.A:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = Normalize(item)
		}
		return s
	case primitive.DateTime:
		return val.Time().UTC()
	}
	return v
}
