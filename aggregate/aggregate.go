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

// Package aggregate concatenates groups of files into single outputs.
//
// Include patterns are resolved in declared order. Literal patterns name one
// file each; wildcard patterns expand to a sorted directory scan. The order
// of the resolved set is the order of the bytes in the output.
package aggregate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"bennypowers.dev/minnow/finalize"
	mfs "bennypowers.dev/minnow/fs"
	"bennypowers.dev/minnow/incremental"
	"bennypowers.dev/minnow/scan"
	"bennypowers.dev/minnow/stats"
)

// ErrInputDir means the aggregation's input directory is missing or is not
// a directory.
var ErrInputDir = errors.New("input directory not found or not a directory")

// Kind classifies an aggregation failure.
type Kind int

const (
	// KindInput is a configuration problem, such as a bad input directory.
	KindInput Kind = iota
	// KindIO is a failure reading inputs or writing the output.
	KindIO
)

func (k Kind) String() string {
	if k == KindInput {
		return "input"
	}
	return "io"
}

// Error is a failure of a single aggregation.
type Error struct {
	Kind   Kind
	Output string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	if e.Path != "" && e.Path != e.Output {
		return fmt.Sprintf("aggregate %s: %s: %v", e.Output, e.Path, e.Err)
	}
	return fmt.Sprintf("aggregate %s: %v", e.Output, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Spec configures one aggregation.
type Spec struct {
	// InputDir anchors relative and wildcard includes. Defaults to the
	// output's directory.
	InputDir string `mapstructure:"inputDir"`

	Output   string   `mapstructure:"output"`
	Includes []string `mapstructure:"includes"`
	Excludes []string `mapstructure:"excludes"`

	// RemoveIncluded deletes each input once it has been copied.
	RemoveIncluded bool `mapstructure:"removeIncluded"`

	// InsertNewLine appends "\n" after each file and after each header.
	InsertNewLine bool `mapstructure:"insertNewLine"`

	// InsertFileHeader writes "/*<base name>*/" before each file.
	InsertFileHeader bool `mapstructure:"insertFileHeader"`

	// FixLastSemicolon appends ";" after each file.
	FixLastSemicolon bool `mapstructure:"fixLastSemicolon"`

	// AutoExcludeWildcards skips wildcard matches already aggregated by an
	// earlier spec in the same run.
	AutoExcludeWildcards bool `mapstructure:"autoExcludeWildcards"`
}

// FileSet is an ordered list of absolute input paths.
type FileSet []string

// Included is the set of files consumed by earlier aggregations in a run.
type Included map[string]struct{}

// Has reports whether path is in the set. A nil set is empty.
func (i Included) Has(path string) bool {
	_, ok := i[filepath.Clean(path)]
	return ok
}

// Add puts paths in the set.
func (i Included) Add(paths ...string) {
	for _, p := range paths {
		i[filepath.Clean(p)] = struct{}{}
	}
}

// Aggregator resolves and writes aggregations.
type Aggregator struct {
	fs        mfs.FileSystem
	scanner   incremental.Lister
	tracker   *incremental.Tracker
	logger    *slog.Logger
	finalizer *finalize.Finalizer
	stats     *stats.Collector
}

// New creates an Aggregator. A nil tracker means a full run.
func New(fsys mfs.FileSystem, tracker *incremental.Tracker) *Aggregator {
	if tracker == nil {
		tracker = incremental.NewTracker(nil)
	}
	return &Aggregator{
		fs:      fsys,
		scanner: scan.New(fsys),
		tracker: tracker,
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger.
func (a *Aggregator) WithLogger(logger *slog.Logger) *Aggregator {
	a.logger = logger
	return a
}

// InputDir returns the canonical input directory of spec.
func (a *Aggregator) InputDir(spec Spec) (string, error) {
	dir := spec.InputDir
	if dir == "" {
		dir = filepath.Dir(spec.Output)
	}
	canonical, err := a.fs.Canonical(dir)
	if err != nil {
		return "", &Error{Kind: KindInput, Output: spec.Output, Path: dir, Err: fmt.Errorf("%w: %v", ErrInputDir, err)}
	}
	if !mfs.IsDir(a.fs, canonical) {
		return "", &Error{Kind: KindInput, Output: spec.Output, Path: canonical, Err: ErrInputDir}
	}
	return canonical, nil
}

// Resolve expands spec's includes into an ordered, duplicate-free set.
// previouslyIncluded only affects wildcard matches, and only when
// AutoExcludeWildcards is set.
func (a *Aggregator) Resolve(spec Spec, previouslyIncluded Included) (FileSet, error) {
	inputDir, err := a.InputDir(spec)
	if err != nil {
		return nil, err
	}
	if !spec.AutoExcludeWildcards {
		previouslyIncluded = nil
	}

	var files FileSet
	seen := make(map[string]struct{})
	add := func(path string) {
		if _, exists := seen[path]; exists {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, include := range spec.Includes {
		if !scan.IsWildcard(include) {
			path := filepath.FromSlash(include)
			if !filepath.IsAbs(path) {
				path = filepath.Join(inputDir, path)
			}
			add(filepath.Clean(path))
			continue
		}

		matches, err := a.scanner.Scan(inputDir, []string{include}, spec.Excludes)
		if err != nil {
			return nil, &Error{Kind: KindInput, Output: spec.Output, Path: include, Err: err}
		}
		for _, rel := range matches {
			path := filepath.Join(inputDir, filepath.FromSlash(rel))
			if previouslyIncluded.Has(path) {
				continue
			}
			add(path)
		}
	}

	return files, nil
}

// Write concatenates files into spec.Output. The bytes go to a temp file
// that replaces the output only once every input was copied, so a failed
// write leaves any previous output in place. The output itself is never
// copied into itself. With RemoveIncluded, inputs are deleted after the
// output is in place.
func (a *Aggregator) Write(files FileSet, spec Spec) error {
	output, err := a.fs.Canonical(spec.Output)
	if err != nil {
		return &Error{Kind: KindIO, Output: spec.Output, Err: err}
	}

	if err := a.fs.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return &Error{Kind: KindIO, Output: spec.Output, Path: filepath.Dir(output), Err: err}
	}

	tmp := output + finalize.TempSuffix
	consumed, err := a.writeTemp(tmp, output, files, spec)
	if err != nil {
		_ = a.fs.Remove(tmp)
		return err
	}
	if err := a.fs.Rename(tmp, output); err != nil {
		_ = a.fs.Remove(tmp)
		return &Error{Kind: KindIO, Output: spec.Output, Err: err}
	}

	if !spec.RemoveIncluded {
		return nil
	}
	for _, file := range consumed {
		if err := a.fs.Remove(file); err != nil {
			return &Error{Kind: KindIO, Output: spec.Output, Path: file, Err: fmt.Errorf("remove after aggregation: %w", err)}
		}
		a.tracker.Removed(file)
	}
	return nil
}

func (a *Aggregator) writeTemp(tmp, output string, files FileSet, spec Spec) (consumed []string, err error) {
	out, err := a.fs.Create(tmp)
	if err != nil {
		return nil, &Error{Kind: KindIO, Output: spec.Output, Path: tmp, Err: err}
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = &Error{Kind: KindIO, Output: spec.Output, Path: tmp, Err: cerr}
		}
	}()

	for _, file := range files {
		canonical, err := a.fs.Canonical(file)
		if err != nil {
			return nil, &Error{Kind: KindIO, Output: spec.Output, Path: file, Err: err}
		}
		if canonical == output {
			continue
		}
		if err := a.append(out, file, spec); err != nil {
			return nil, &Error{Kind: KindIO, Output: spec.Output, Path: file, Err: err}
		}
		consumed = append(consumed, file)
	}
	return consumed, nil
}

func (a *Aggregator) append(out io.Writer, file string, spec Spec) error {
	in, err := a.fs.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()

	if spec.InsertFileHeader {
		header := "/*" + filepath.Base(file) + "*/"
		if spec.InsertNewLine {
			header += "\n"
		}
		if _, err := io.WriteString(out, header); err != nil {
			return err
		}
	}
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if spec.FixLastSemicolon {
		if _, err := io.WriteString(out, ";"); err != nil {
			return err
		}
	}
	if spec.InsertNewLine {
		if _, err := io.WriteString(out, "\n"); err != nil {
			return err
		}
	}
	return nil
}

func (a *Aggregator) canonical(files FileSet) []string {
	out := make([]string, len(files))
	for i, file := range files {
		if c, err := a.fs.Canonical(file); err == nil {
			out[i] = c
		} else {
			out[i] = file
		}
	}
	return out
}

// Run resolves spec and writes it. On incremental runs the aggregation is
// skipped, and an empty set returned, unless one of its inputs was written
// during this run. An empty set writes nothing.
func (a *Aggregator) Run(spec Spec, previouslyIncluded Included) (FileSet, error) {
	files, err := a.Resolve(spec, previouslyIncluded)
	if err != nil {
		return nil, err
	}

	if a.tracker.IsIncrementalRun() && !a.tracker.AnyOutputMatches(a.canonical(files)) {
		a.logger.Debug("No aggregated input changed, skipping", "output", spec.Output)
		return nil, nil
	}

	if len(files) == 0 {
		return nil, nil
	}
	if err := a.Write(files, spec); err != nil {
		return nil, err
	}
	return files, nil
}
