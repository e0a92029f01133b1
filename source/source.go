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

// Package source describes a discovered asset and where its output goes.
//
// A File pairs a source root with a destination root. Path resolution is a
// pure function of those roots, the relative name, and an injected existence
// predicate, so it can be exercised without touching a filesystem.
package source

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrEmptyName is returned by New when the relative name is blank.
var ErrEmptyName = errors.New("source: name must not be empty")

// File is an immutable descriptor for one discovered asset.
type File struct {
	SourceRoot string
	DestRoot   string
	// Rel is the slash- or OS-separated relative path without its extension.
	Rel string
	// Ext includes the leading dot, or is empty.
	Ext string
	// PreferDest uses an existing, readable destination file as the source.
	PreferDest bool
}

// New splits name into relative path and extension. A dot at index 0
// (".eslintrc") does not start an extension.
func New(sourceRoot, destRoot, name string, preferDest bool) (File, error) {
	if strings.TrimSpace(name) == "" {
		return File{}, ErrEmptyName
	}
	rel, ext := SplitExt(name)
	return File{
		SourceRoot: sourceRoot,
		DestRoot:   destRoot,
		Rel:        rel,
		Ext:        ext,
		PreferDest: preferDest,
	}, nil
}

// SplitExt splits name at its last dot when that dot is past index 0.
func SplitExt(name string) (rel, ext string) {
	sep := strings.LastIndexByte(name, '.')
	if sep > 0 {
		return name[:sep], name[sep:]
	}
	return name, ""
}

// Name returns the relative name with its extension.
func (f File) Name() string {
	return f.Rel + f.Ext
}

// SourcePath returns the path to read from. When PreferDest is set and
// exists reports the destination copy present, that copy wins.
func (f File) SourcePath(exists func(string) bool) string {
	if f.PreferDest && exists != nil {
		dest := filepath.Join(f.DestRoot, filepath.FromSlash(f.Name()))
		if exists(dest) {
			return dest
		}
	}
	return filepath.Join(f.SourceRoot, filepath.FromSlash(f.Name()))
}

// DestPath returns DestRoot/Rel + suffix + Ext.
func (f File) DestPath(suffix string) string {
	return filepath.Join(f.DestRoot, filepath.FromSlash(f.Rel+suffix+f.Ext))
}

// ShortName is the display name used when a diagnostic carries no source name.
func (f File) ShortName(exists func(string) bool) string {
	return ShortName(f.SourcePath(exists))
}

// ShortName returns "..." followed by the last segment of path, accepting
// either separator.
func ShortName(path string) string {
	last := strings.LastIndexAny(path, `/\`)
	return "..." + path[last+1:]
}
