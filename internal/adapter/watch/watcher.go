// Package watch triggers a full rebuild when files under a root change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// RebuildFunc rebuilds and publishes the corpus.
type RebuildFunc func(ctx context.Context) error

// ExcludeFunc reports whether a root-relative, slash-separated path should
// be ignored. Directories are passed with a trailing slash.
type ExcludeFunc func(rel string) bool

// Watcher watches a directory tree and calls a RebuildFunc once changes have
// been quiet for the debounce interval. Rebuilds never overlap.
type Watcher struct {
	root     string
	debounce time.Duration
	exclude  ExcludeFunc
	rebuild  RebuildFunc
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
}

// New creates a Watcher and registers every directory under root.
func New(root string, debounce time.Duration, exclude ExcludeFunc, rebuild RebuildFunc, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exclude == nil {
		exclude = func(string) bool { return false }
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		exclude:  exclude,
		rebuild:  rebuild,
		logger:   logger,
		watcher:  fw,
	}

	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}

	return w, nil
}

// addTree watches dir and every directory below it that is not excluded.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// directory vanished while walking
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.exclude(w.rel(path)+"/") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// relevant reports whether event should schedule a rebuild.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel := w.rel(event.Name)
	return !w.exclude(rel) && !w.exclude(rel+"/")
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}

			w.logger.Debug("change detected", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true

		case <-timer.C:
			pending = false
			if err := w.rebuild(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("rebuild failed", zap.Error(err))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}
