package schema

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DebounceInterval groups bursts of file events into one reload.
const DebounceInterval = 100 * time.Millisecond

// Watch compiles the schema files below dir and recompiles them whenever a
// file matching pattern changes, until ctx is done. Every outcome, starting
// with the initial load, is reported to fn from the watcher goroutine.
func Watch(ctx context.Context, dir, pattern string, logger *slog.Logger, fn func(*Registry, error)) error {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create schema watcher: %w", err)
	}
	if err := addTree(w, dir); err != nil {
		w.Close()
		return err
	}

	fn(LoadFiles(dir, pattern))

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer w.Close()

		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return nil
			case event, ok := <-w.Events:
				if !ok {
					return nil
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := addTree(w, event.Name); err != nil {
							logger.Warn("cannot watch new schema directory", "dir", event.Name, "error", err)
						}
					}
				}
				if !relevant(dir, pattern, event.Name) {
					continue
				}
				logger.Debug("schema file changed", "name", event.Name, "op", event.Op.String())
				if timer == nil {
					timer = time.NewTimer(DebounceInterval)
				} else {
					timer.Reset(DebounceInterval)
				}
				fire = timer.C
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				logger.Error("schema watcher error", "error", err)
			case <-fire:
				fire = nil
				fn(LoadFiles(dir, pattern))
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("schema watcher stopped", "error", err)
	}))
	return nil
}

// addTree watches root and every directory below it; fsnotify is not recursive.
func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func relevant(dir, pattern, name string) bool {
	rel, err := filepath.Rel(dir, name)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(pattern, filepath.ToSlash(rel))
	return err == nil && ok
}
