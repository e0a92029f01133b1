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

// Package scan walks source roots and selects files by glob rules.
//
// Patterns are doublestar globs matched against slash-separated paths
// relative to the scanned root. A pattern ending in "/" selects everything
// below that directory.
package scan

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	mfs "bennypowers.dev/minnow/fs"
)

// DefaultIncludes is used when the caller supplies no include patterns.
var DefaultIncludes = []string{"**/*.css", "**/*.js"}

// DefaultExcludes are always applied: version-control metadata, editor and
// OS droppings, and temp files left behind by an interrupted run.
var DefaultExcludes = []string{
	// editors and OS
	"**/*~",
	"**/#*#",
	"**/.#*",
	"**/%*%",
	"**/._*",
	"**/.DS_Store",
	"**/vssver.scc",
	"**/project.pj",
	"**/.metadata",
	"**/.metadata/**",

	// version control
	"**/CVS",
	"**/CVS/**",
	"**/.cvsignore",
	"**/RCS",
	"**/RCS/**",
	"**/SCCS",
	"**/SCCS/**",
	"**/.svn",
	"**/.svn/**",
	"**/.arch-ids",
	"**/.arch-ids/**",
	"**/.bzr",
	"**/.bzr/**",
	"**/.MySCMServerInfo",
	"**/.hg",
	"**/.hg/**",
	"**/.git",
	"**/.git/**",
	"**/.gitignore",
	"**/.gitattributes",
	"**/BitKeeper",
	"**/BitKeeper/**",
	"**/ChangeSet",
	"**/ChangeSet/**",
	"**/_darcs",
	"**/_darcs/**",
	"**/.darcsrepo",
	"**/.darcsrepo/**",
	"**/-darcs-backup*",
	"**/.darcs-temp-mail",

	// interrupted finalization
	"**/*.tmp",
}

// Scanner lists files under a root.
type Scanner struct {
	fs        mfs.FileSystem
	gitignore bool
}

// New creates a Scanner reading through fsys.
func New(fsys mfs.FileSystem) *Scanner {
	return &Scanner{fs: fsys}
}

// WithGitignore makes the scanner also honour the root's .gitignore file.
func (s *Scanner) WithGitignore(enabled bool) *Scanner {
	clone := *s
	clone.gitignore = enabled
	return &clone
}

// IsWildcard reports whether pattern needs a directory scan to resolve.
func IsWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// Scan returns the sorted, slash-separated relative paths of the regular
// files under root that match at least one include and no exclude.
// A root that does not exist yields an empty list and no error.
func (s *Scanner) Scan(root string, includes, excludes []string) ([]string, error) {
	info, err := s.fs.Stat(root)
	if err != nil {
		if !s.fs.Exists(root) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	w := walker{
		fs:       s.fs,
		includes: normalizePatterns(includes),
		excludes: normalizePatterns(append(slices.Clone(excludes), DefaultExcludes...)),
	}
	for _, p := range w.includes {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid include pattern %q", p)
		}
	}
	for _, p := range w.excludes {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	if s.gitignore {
		gi, err := s.loadGitignore(root)
		if err != nil {
			return nil, err
		}
		w.ignore = gi
	}

	if err := w.walk(root, ""); err != nil {
		return nil, err
	}
	slices.Sort(w.found)
	return w.found, nil
}

func (s *Scanner) loadGitignore(root string) (*ignore.GitIgnore, error) {
	giPath := filepath.Join(root, ".gitignore")
	if !s.fs.Exists(giPath) {
		return nil, nil
	}
	data, err := s.fs.ReadFile(giPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", giPath, err)
	}
	return ignore.CompileIgnoreLines(strings.Split(string(data), "\n")...), nil
}

type walker struct {
	fs       mfs.FileSystem
	includes []string
	excludes []string
	ignore   *ignore.GitIgnore
	found    []string
}

func (w *walker) walk(dir, rel string) error {
	entries, err := w.fs.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		childRel := entry.Name()
		if rel != "" {
			childRel = path.Join(rel, entry.Name())
		}
		childPath := filepath.Join(dir, entry.Name())

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			// Symlinked files are followed, symlinked directories are not.
			info, err := w.fs.Stat(childPath)
			if err != nil || info.IsDir() {
				continue
			}
		}

		if isDir {
			if w.excluded(childRel, true) {
				continue
			}
			if err := w.walk(childPath, childRel); err != nil {
				return err
			}
			continue
		}

		if w.excluded(childRel, false) || !matchAny(w.includes, childRel) {
			continue
		}
		w.found = append(w.found, childRel)
	}
	return nil
}

func (w *walker) excluded(rel string, isDir bool) bool {
	if matchAny(w.excludes, rel) {
		return true
	}
	if w.ignore != nil {
		if isDir {
			return w.ignore.MatchesPath(rel + "/")
		}
		return w.ignore.MatchesPath(rel)
	}
	return false
}

// Match reports whether rel matches any of patterns, after the same
// normalization Scan applies.
func Match(patterns []string, rel string) bool {
	return matchAny(normalizePatterns(patterns), filepath.ToSlash(rel))
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func normalizePatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		if p == "" {
			continue
		}
		p = strings.TrimPrefix(p, "/")
		if strings.HasSuffix(p, "/") {
			p += "**"
		}
		out = append(out, p)
	}
	return out
}
