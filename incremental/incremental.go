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

// Package incremental tracks what changed and what was written during a run.
//
// Change detection itself is delegated to a DeltaProvider. Without one, every
// run is a full run: every file has a delta and no aggregate is skipped.
package incremental

import (
	"path/filepath"
	"slices"
	"sync"
)

// DeltaProvider reports which files changed since a reference point.
type DeltaProvider interface {
	// IsIncremental reports whether this run should only process changes.
	IsIncremental() bool
	// HasChanged reports whether the file at the absolute path changed.
	HasChanged(path string) bool
	// Removed notifies the provider that a file was deleted by the run.
	Removed(path string)
}

// Observer is implemented by providers that record the state of successfully
// processed inputs, so the next run can compare against it.
type Observer interface {
	Observe(path string)
}

// Tracker holds the run-scoped set of written outputs.
type Tracker struct {
	provider DeltaProvider

	mu      sync.Mutex
	outputs map[string]struct{}
}

// NewTracker creates a Tracker. A nil provider means a full run.
func NewTracker(provider DeltaProvider) *Tracker {
	return &Tracker{
		provider: provider,
		outputs:  make(map[string]struct{}),
	}
}

// Provider returns the underlying delta provider, or nil.
func (t *Tracker) Provider() DeltaProvider {
	return t.provider
}

// IsIncrementalRun reports whether the run processes changes only.
func (t *Tracker) IsIncrementalRun() bool {
	return t.provider != nil && t.provider.IsIncremental()
}

// HasDelta reports whether path needs processing. Always true on full runs.
func (t *Tracker) HasDelta(path string) bool {
	if !t.IsIncrementalRun() {
		return true
	}
	return t.provider.HasChanged(path)
}

// RecordOutput remembers that path was written during this run.
func (t *Tracker) RecordOutput(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outputs[filepath.Clean(path)] = struct{}{}
}

// AnyOutputMatches reports whether any of paths was written during this run.
func (t *Tracker) AnyOutputMatches(paths []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range paths {
		if _, ok := t.outputs[filepath.Clean(p)]; ok {
			return true
		}
	}
	return false
}

// Observe tells the provider that path was processed successfully. It is
// called on full runs too.
func (t *Tracker) Observe(path string) {
	if o, ok := t.provider.(Observer); ok {
		o.Observe(path)
	}
}

// Removed forwards a deletion to the provider, if any.
func (t *Tracker) Removed(path string) {
	if t.provider != nil {
		t.provider.Removed(path)
	}
}

// Outputs returns the recorded outputs, sorted.
func (t *Tracker) Outputs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.outputs))
	for p := range t.outputs {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Lister lists files below a root.
type Lister interface {
	Scan(root string, includes, excludes []string) ([]string, error)
}

// DeltaScanner narrows a Lister's results to changed files on incremental runs.
type DeltaScanner struct {
	Lister  Lister
	Tracker *Tracker
}

// Scan implements Lister.
func (d DeltaScanner) Scan(root string, includes, excludes []string) ([]string, error) {
	files, err := d.Lister.Scan(root, includes, excludes)
	if err != nil || d.Tracker == nil || !d.Tracker.IsIncrementalRun() {
		return files, err
	}
	changed := files[:0:0]
	for _, rel := range files {
		if d.Tracker.HasDelta(filepath.Join(root, filepath.FromSlash(rel))) {
			changed = append(changed, rel)
		}
	}
	return changed, nil
}
