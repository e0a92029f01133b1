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
package delta

import (
	"path/filepath"
	"slices"
	"sync"
)

// Set is an explicit list of changed absolute paths.
type Set struct {
	incremental bool

	mu    sync.RWMutex
	paths map[string]struct{}
}

// NewSet creates a Set holding paths.
func NewSet(incremental bool, paths ...string) *Set {
	s := &Set{incremental: incremental, paths: make(map[string]struct{}, len(paths))}
	s.Add(paths...)
	return s
}

// Add marks paths as changed.
func (s *Set) Add(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		s.paths[filepath.Clean(p)] = struct{}{}
	}
}

// IsIncremental implements incremental.DeltaProvider.
func (s *Set) IsIncremental() bool {
	return s.incremental
}

// HasChanged implements incremental.DeltaProvider.
func (s *Set) HasChanged(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paths[filepath.Clean(path)]
	return ok
}

// Removed implements incremental.DeltaProvider.
func (s *Set) Removed(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, filepath.Clean(path))
}

// Len returns the number of changed paths.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.paths)
}

// Paths returns the changed paths, sorted.
func (s *Set) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}
