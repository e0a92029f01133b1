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
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// GitStatus treats every file git reports as modified, staged or untracked
// as changed. It is always incremental.
type GitStatus struct {
	root    string
	changed *Set
}

// OpenGitStatus reads the worktree status of the repository containing dir.
func OpenGitStatus(dir string) (*GitStatus, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open git repository at %s: %w", dir, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("get git worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("get git status: %w", err)
	}

	root := resolve(wt.Filesystem.Root())
	changed := NewSet(true)
	for rel, fileStatus := range status {
		if fileStatus.Worktree == git.Unmodified && fileStatus.Staging == git.Unmodified {
			continue
		}
		changed.Add(filepath.Join(root, filepath.FromSlash(rel)))
	}

	return &GitStatus{root: root, changed: changed}, nil
}

// Root returns the repository's worktree root.
func (g *GitStatus) Root() string {
	return g.root
}

// IsIncremental implements incremental.DeltaProvider.
func (g *GitStatus) IsIncremental() bool {
	return true
}

// HasChanged implements incremental.DeltaProvider.
func (g *GitStatus) HasChanged(path string) bool {
	return g.changed.HasChanged(resolve(path))
}

// Removed implements incremental.DeltaProvider.
func (g *GitStatus) Removed(path string) {
	g.changed.Removed(resolve(path))
}

// Paths returns the changed paths, sorted.
func (g *GitStatus) Paths() []string {
	return g.changed.Paths()
}

// resolve makes path absolute and symlink-free where possible, so paths
// reported by git and paths built from configured roots compare equal.
func resolve(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
