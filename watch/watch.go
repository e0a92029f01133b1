/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package watch reruns a build when files under its roots change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"bennypowers.dev/minnow/delta"
	"bennypowers.dev/minnow/finalize"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 300 * time.Millisecond

// RunFunc performs an incremental run over the changed paths.
type RunFunc func(ctx context.Context, changed *delta.Set) error

// Watcher watches directory trees and batches change events.
type Watcher struct {
	watcher  *fsnotify.Watcher
	roots    []string
	debounce time.Duration
	ignore   func(path string) bool
	logger   *slog.Logger
}

// New starts watching roots recursively. Roots that do not exist are
// skipped.
func New(roots ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		watcher:  fw,
		debounce: DefaultDebounce,
		ignore:   IsTemp,
		logger:   slog.Default(),
	}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}
		if err := w.addTree(abs); err != nil {
			fw.Close()
			return nil, err
		}
		w.roots = append(w.roots, abs)
	}
	return w, nil
}

// WithDebounce sets the settle time.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// WithIgnore replaces the filter for paths whose events are dropped.
func (w *Watcher) WithIgnore(ignore func(path string) bool) *Watcher {
	w.ignore = ignore
	return w
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	w.logger = logger
	return w
}

// Roots returns the absolute watched roots.
func (w *Watcher) Roots() []string {
	return w.roots
}

// IsTemp reports whether path is a finalizer temp file.
func IsTemp(path string) bool {
	return strings.HasSuffix(path, finalize.TempSuffix)
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) addTree(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		w.logger.Info("Directory does not exist, not watching", "path", root)
		return nil
	}
	return err
}

// Run calls run with every settled batch of changes until ctx is done.
// Failed runs are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, run RunFunc) error {
	pending := delta.NewSet(true)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
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
						w.logger.Warn("Could not watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			w.logger.Debug("Change detected", "path", event.Name, "op", event.Op.String())
			pending.Add(event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := pending
			pending = delta.NewSet(true)
			w.logger.Info("Rebuilding", "changed", changed.Len())
			if err := run(ctx, changed); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("Rebuild failed", "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.ignore == nil || !w.ignore(event.Name)
}
