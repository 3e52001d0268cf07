// Package fs implements core.Store as a directory of Extended JSON files.
//
// Every collection lives in <dir>/<collection>.jsonl, one canonical Extended
// JSON document per line, so BSON types such as ObjectIDs survive a restart.
// Reads are served from memory; every write rewrites the collection file
// atomically.
package fs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/adapters/mongo"
	"github.com/aretw0/strata/pkg/core"
)

// Extension is the file extension of collection files.
const Extension = ".jsonl"

// Config holds the configuration for the file store.
type Config struct {
	Logger   *slog.Logger
	ReadOnly bool
}

// Store is a file-backed document store. It is safe for concurrent use.
type Store struct {
	*memory.Store

	dir      string
	readOnly bool
	logger   *slog.Logger

	mu      sync.Mutex // serializes write then flush
	flushes int64
}

var _ core.Store = (*Store)(nil)

// Open loads every collection file below dir, creating dir when missing
// (unless read-only).
func Open(dir string, config Config) (*Store, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if !config.ReadOnly {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	s := &Store{
		Store:    memory.NewStore(memory.Config{Logger: logger}),
		dir:      dir,
		readOnly: config.ReadOnly,
		logger:   logger,
	}

	files, err := doublestar.Glob(os.DirFS(dir), "*"+Extension)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range files {
		records, err := readCollection(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		s.Store.Restore(strings.TrimSuffix(name, Extension), records)
		logger.Debug("collection loaded", "file", name, "records", len(records))
	}
	return s, nil
}

// Dir returns the directory holding the collection files.
func (s *Store) Dir() string {
	return s.dir
}

// Insert stores record and rewrites its collection file.
func (s *Store) Insert(ctx context.Context, name string, record core.Record) (any, error) {
	if s.readOnly {
		return nil, core.ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var id any
	err := s.apply(name, func() error {
		var err error
		id, err = s.Store.Insert(ctx, name, record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// UpdateByID sets fields on a record and rewrites its collection file.
func (s *Store) UpdateByID(ctx context.Context, name string, id any, fields core.Record) error {
	if s.readOnly {
		return core.ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(name, func() error {
		return s.Store.UpdateByID(ctx, name, id, fields)
	})
}

// Remove deletes matching records and rewrites the collection file.
func (s *Store) Remove(ctx context.Context, name string, criteria core.Criteria) error {
	if s.readOnly {
		return core.ErrReadOnly
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(name, func() error {
		return s.Store.Remove(ctx, name, criteria)
	})
}

// apply runs a memory write and flushes the collection. When the flush fails
// the collection is restored, so memory never holds a change the file lacks.
func (s *Store) apply(name string, write func() error) error {
	before := s.Store.Records(name)
	if err := write(); err != nil {
		return err
	}
	if err := s.flush(name); err != nil {
		s.Store.Restore(name, before)
		s.logger.Warn("write rolled back", "collection", name, "error", err)
		return err
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+Extension)
}

func (s *Store) flush(name string) error {
	var buf bytes.Buffer
	for _, rec := range s.Store.Records(name) {
		data, err := bson.MarshalExtJSON(bson.M(rec), true, false)
		if err != nil {
			return fmt.Errorf("failed to encode record of %s: %w", name, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if err := writeFileAtomic(s.path(name), buf.Bytes(), 0644); err != nil {
		return err
	}
	s.flushes++
	s.logger.Debug("collection written", "collection", name, "bytes", buf.Len())
	return nil
}

func readCollection(path string) ([]core.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection: %w", err)
	}
	defer f.Close()

	var records []core.Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var raw bson.M
		if err := bson.UnmarshalExtJSON(data, false, &raw); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, mongo.NormalizeRecord(raw))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}
