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
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"bennypowers.dev/minnow/diag"
	mfs "bennypowers.dev/minnow/fs"
	"bennypowers.dev/minnow/incremental"
	"bennypowers.dev/minnow/source"
	"bennypowers.dev/minnow/transform"
)

// LintGoal checks files and reports diagnostics. It writes nothing.
type LintGoal struct {
	fs       mfs.FileSystem
	linter   transform.Transformer
	tracker  *incremental.Tracker
	reporter diag.Sink
	logger   *slog.Logger

	checked atomic.Int64
}

// NewLintGoal creates a LintGoal.
func NewLintGoal(fsys mfs.FileSystem, linter transform.Transformer, tracker *incremental.Tracker, reporter diag.Sink) *LintGoal {
	if tracker == nil {
		tracker = incremental.NewTracker(nil)
	}
	return &LintGoal{
		fs:       fsys,
		linter:   linter,
		tracker:  tracker,
		reporter: reporter,
		logger:   slog.Default(),
	}
}

// WithLogger sets the logger.
func (g *LintGoal) WithLogger(logger *slog.Logger) *LintGoal {
	g.logger = logger
	return g
}

// DefaultIncludes implements Goal.
func (g *LintGoal) DefaultIncludes() []string {
	return []string{"**/*.js"}
}

// BeforeRun implements Goal.
func (g *LintGoal) BeforeRun(context.Context) error {
	g.checked.Store(0)
	return nil
}

// ProcessFile implements Goal.
func (g *LintGoal) ProcessFile(ctx context.Context, file source.File) error {
	in := file.SourcePath(func(p string) bool { return mfs.Readable(g.fs, p) })
	if !g.tracker.HasDelta(in) {
		return nil
	}

	data, err := g.fs.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}

	res, err := g.linter.Transform(ctx, transform.KindForExt(file.Ext), data, transform.DefaultOptions())
	if g.reporter != nil {
		for _, d := range res.Diagnostics {
			d.Path = in
			g.reporter.Report(d)
		}
	}
	g.checked.Add(1)
	if err != nil {
		return err
	}
	g.tracker.Observe(filepath.Join(file.SourceRoot, filepath.FromSlash(file.Name())))
	return nil
}

// AfterRun implements Goal.
func (g *LintGoal) AfterRun(context.Context) error {
	g.logger.Info("Lint finished", "files", g.checked.Load())
	return nil
}

// Checked returns the number of files linted in the last run.
func (g *LintGoal) Checked() int {
	return int(g.checked.Load())
}
