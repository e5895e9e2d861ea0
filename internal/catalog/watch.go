package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/leapstack-labs/datarade/pkg/core"
)

// watchDebounce collapses bursts of writes to one file into one notification.
const watchDebounce = 100 * time.Millisecond

// Watcher is implemented by stores that can report changed files.
type Watcher interface {
	// Watch calls fn with the store-relative path of every catalog file
	// written under dir until ctx is done.
	Watch(ctx context.Context, dir string, fn func(p string)) error
}

// Watch reports changes to config.yaml and definition.sql files below dir.
func (s *LocalStore) Watch(ctx context.Context, dir string, fn func(p string)) error {
	root, err := s.resolve(dir)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchDirRecursive(watcher, root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// New dataset directories are watched as they appear.
				_ = watchDirRecursive(watcher, event.Name)
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			base := filepath.Base(event.Name)
			if base != ConfigFile && base != DefinitionFile {
				continue
			}
			rel, err := filepath.Rel(s.root, event.Name)
			if err != nil {
				continue
			}
			p := filepath.ToSlash(rel)

			mu.Lock()
			if t, ok := timers[p]; ok {
				t.Stop()
			}
			timers[p] = time.AfterFunc(watchDebounce, func() {
				if ctx.Err() == nil {
					fn(p)
				}
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// watchDirRecursive adds a directory and all subdirectories to the watcher.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
}

// Watch calls fn with the name of every dataset whose catalog files change.
// Only stores implementing Watcher support it.
func (r *Repository) Watch(ctx context.Context, fn func(name string)) error {
	w, ok := r.store.(Watcher)
	if !ok {
		return &core.ValidationError{Source: "catalog", Message: fmt.Sprintf("%s does not support watching", r.store.Location())}
	}
	prefix := r.catalogPath + "/"
	return w.Watch(ctx, r.catalogPath, func(p string) {
		rest, ok := strings.CutPrefix(p, prefix)
		if !ok {
			return
		}
		name := path.Dir(rest)
		if name == "." || strings.Contains(name, "/") {
			return
		}
		r.logger.Debug("catalog changed", "dataset", name, "path", p)
		fn(name)
	})
}
