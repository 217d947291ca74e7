// Package watch drives rebuild-on-save: it watches a project tree for
// source changes and invokes a callback once the filesystem settles.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Vantio-Games/lingual/internal/config"
)

// DefaultDebounce is the quiet period before changes trigger the callback.
const DefaultDebounce = 200 * time.Millisecond

// IsSource matches the files a rebuild depends on: .lin sources and the
// project manifest.
func IsSource(path string) bool {
	return strings.HasSuffix(path, ".lin") || filepath.Base(path) == config.FileName
}

// Watcher batches filesystem events and hands the changed paths to one
// callback at a time.
type Watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
	match    func(string) bool
}

// New creates a watcher over dir and its subdirectories. A nil match
// defaults to IsSource; a non-positive debounce defaults to
// DefaultDebounce. Directories created later are picked up automatically.
func New(dir string, debounce time.Duration, match func(string) bool) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if match == nil {
		match = IsSource
	}

	w := &Watcher{fw: fw, debounce: debounce, match: match}

	if err := w.addTree(dir); err != nil {
		fw.Close()
		return nil, err
	}

	return w, nil
}

// addTree registers dir and every subdirectory. fsnotify watches
// directories, not patterns, so the tree is walked once up front.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fw.Add(path)
		}

		return nil
	})
}

// Run blocks, dispatching debounced batches of changed paths to fn until
// ctx is done or the watcher fails. fn runs on the watch goroutine, so
// rebuilds never overlap.
func (w *Watcher) Run(ctx context.Context, fn func(paths []string)) error {
	pending := make(map[string]struct{})

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}

			// Chmod-only events are editor noise.
			if ev.Op == fsnotify.Chmod {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					_ = w.addTree(ev.Name)
					continue
				}
			}

			if !w.match(ev.Name) {
				continue
			}

			pending[ev.Name] = struct{}{}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}

			return err

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}

			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)

			pending = make(map[string]struct{})

			fn(paths)
		}
	}
}

// Close releases the underlying watcher. Run returns after Close.
func (w *Watcher) Close() error {
	return w.fw.Close()
}
