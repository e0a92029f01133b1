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

// Package finalize commits transform results to their destinations.
//
// Outputs are always written to a temporary sibling first and renamed into
// place, so readers never observe a partially written destination.
package finalize

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	mfs "bennypowers.dev/minnow/fs"
	"bennypowers.dev/minnow/source"
)

// TempSuffix is appended to a destination path to form its temp path.
const TempSuffix = ".tmp"

// Reason explains why a file was not processed.
type Reason int

const (
	// Process means the file should be transformed.
	Process Reason = iota
	// AlreadyMinified means the source name already carries the output suffix.
	AlreadyMinified
	// PrebuiltInSource means a file named like the output sits next to the source.
	PrebuiltInSource
	// UpToDate means the output is newer than the source.
	UpToDate
)

func (r Reason) String() string {
	switch r {
	case AlreadyMinified:
		return "already minified"
	case PrebuiltInSource:
		return "prebuilt in source"
	case UpToDate:
		return "up to date"
	default:
		return "process"
	}
}

// Config controls skip rules, the size policy and sidecars.
type Config struct {
	Suffix      string
	Force       bool
	UseSmallest bool
	Gzip        bool
	GzipLevel   int
	Brotli      bool
	BrotliLevel int
}

// Error is a filesystem failure while committing an output.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("finalize: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Sidecar is a compressed companion of an output.
type Sidecar struct {
	Path string
	Size int64
}

// Commit describes a committed output.
type Commit struct {
	Path         string
	UsedOriginal bool
	InSize       int64
	OutSize      int64
	Sidecars     []Sidecar
}

// Finalizer commits outputs through a FileSystem.
type Finalizer struct {
	fs     mfs.FileSystem
	cfg    Config
	logger *slog.Logger
}

// New creates a Finalizer.
func New(fsys mfs.FileSystem, cfg Config) *Finalizer {
	return &Finalizer{fs: fsys, cfg: cfg, logger: slog.Default()}
}

// WithLogger sets the logger.
func (f *Finalizer) WithLogger(logger *slog.Logger) *Finalizer {
	f.logger = logger
	return f
}

// Config returns the finalizer's configuration.
func (f *Finalizer) Config() Config {
	return f.cfg
}

// Skip evaluates the pre-transform skip rules for the file read from in and
// written to out.
func (f *Finalizer) Skip(src source.File, in, out string) (Reason, bool) {
	if f.cfg.Suffix != "" {
		name := strings.ToLower(filepath.Base(in))
		if strings.HasSuffix(name, f.cfg.Suffix+".js") || strings.HasSuffix(name, f.cfg.Suffix+".css") {
			f.logger.Debug("Skipping already minified file", "path", in)
			return AlreadyMinified, true
		}
	}

	sibling := filepath.Join(filepath.Dir(in), filepath.Base(out))
	if sibling != filepath.Clean(in) && f.fs.Exists(sibling) {
		f.logger.Info("Compressed file already exists in source directory", "path", sibling, "source", src.Name())
		return PrebuiltInSource, true
	}

	if !f.cfg.Force {
		outInfo, outErr := f.fs.Stat(out)
		inInfo, inErr := f.fs.Stat(in)
		if outErr == nil && inErr == nil && outInfo.ModTime().After(inInfo.ModTime()) {
			f.logger.Info("Output file is newer than input, skipping", "output", out)
			return UpToDate, true
		}
	}

	return Process, false
}

// TempPath returns the temp path for out.
func (f *Finalizer) TempPath(out string) string {
	return out + TempSuffix
}

// WriteTemp writes data to out's temp path, replacing any stale temp file.
func (f *Finalizer) WriteTemp(out string, data []byte) (string, error) {
	tmp := f.TempPath(out)
	if err := f.removeIfExists(tmp); err != nil {
		return "", err
	}
	if err := f.fs.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", &Error{Op: "mkdir", Path: filepath.Dir(out), Err: err}
	}
	if err := f.fs.WriteFile(tmp, data, 0644); err != nil {
		return "", &Error{Op: "write", Path: tmp, Err: err}
	}
	return tmp, nil
}

// Discard removes a temp file left by a failed transform.
func (f *Finalizer) Discard(tmp string) error {
	return f.removeIfExists(tmp)
}

// Commit moves tmp into place at out. When UseSmallest is set and the input
// is strictly smaller than the transformed output, the input is copied
// verbatim instead.
func (f *Finalizer) Commit(in, tmp, out string) (Commit, error) {
	inInfo, err := f.fs.Stat(in)
	if err != nil {
		return Commit{}, &Error{Op: "stat", Path: in, Err: err}
	}
	tmpInfo, err := f.fs.Stat(tmp)
	if err != nil {
		return Commit{}, &Error{Op: "stat", Path: tmp, Err: err}
	}

	c := Commit{Path: out, InSize: inInfo.Size(), OutSize: tmpInfo.Size()}
	c.UsedOriginal = f.cfg.UseSmallest && inInfo.Size() < tmpInfo.Size()

	if c.UsedOriginal {
		if err := f.fs.Remove(tmp); err != nil {
			return Commit{}, &Error{Op: "remove", Path: tmp, Err: err}
		}
		if err := mfs.CopyFile(f.fs, in, tmp); err != nil {
			_ = f.removeIfExists(tmp)
			return Commit{}, &Error{Op: "copy", Path: in, Err: err}
		}
		c.OutSize = inInfo.Size()
		f.logger.Debug("Compressed output larger than input, using original", "path", in)
	}

	if err := f.fs.Rename(tmp, out); err != nil {
		_ = f.removeIfExists(tmp)
		return Commit{}, &Error{Op: "rename", Path: out, Err: err}
	}
	return c, nil
}

// tempTargets are the extensions of files written through a temp path.
var tempTargets = []string{".js", ".mjs", ".cjs", ".css", ".gz", ".br"}

// IsOwnTemp reports whether name looks like a temp file written by a
// Finalizer or Aggregator: a script, stylesheet or sidecar name followed by
// TempSuffix.
func IsOwnTemp(name string) bool {
	target, ok := strings.CutSuffix(name, TempSuffix)
	if !ok {
		return false
	}
	return slices.Contains(tempTargets, strings.ToLower(filepath.Ext(target)))
}

// Sweep removes stale temp files below root. Only names matching IsOwnTemp
// are removed. A missing root is not an error.
func (f *Finalizer) Sweep(root string) (int, error) {
	if !mfs.IsDir(f.fs, root) {
		return 0, nil
	}
	return f.sweep(root)
}

func (f *Finalizer) sweep(dir string) (int, error) {
	entries, err := f.fs.ReadDir(dir)
	if err != nil {
		return 0, &Error{Op: "readdir", Path: dir, Err: err}
	}
	removed := 0
	for _, entry := range entries {
		p := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			n, err := f.sweep(p)
			removed += n
			if err != nil {
				return removed, err
			}
			continue
		}
		if !IsOwnTemp(entry.Name()) {
			continue
		}
		if err := f.fs.Remove(p); err != nil {
			return removed, &Error{Op: "remove", Path: p, Err: err}
		}
		f.logger.Debug("Removed stale temp file", "path", p)
		removed++
	}
	return removed, nil
}

func (f *Finalizer) removeIfExists(path string) error {
	if err := f.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "remove", Path: path, Err: err}
	}
	return nil
}
