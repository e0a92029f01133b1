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

// Package pipeline drives a Goal over the files discovered under a list of
// source roots.
//
// A run calls BeforeRun, then ProcessFile for every file found below each
// root in scan order, then AfterRun. Per-file failures are logged and
// counted without stopping sibling files; configuration and directory
// failures abort the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bennypowers.dev/minnow/diag"
	mfs "bennypowers.dev/minnow/fs"
	"bennypowers.dev/minnow/incremental"
	"bennypowers.dev/minnow/scan"
	"bennypowers.dev/minnow/source"
	"bennypowers.dev/minnow/stats"
	"bennypowers.dev/minnow/transform"
)

// ErrMissingDestination means a root with a source directory has no
// destination directory.
var ErrMissingDestination = errors.New("destination directory not set")

// Goal is the work done on each discovered file.
type Goal interface {
	// DefaultIncludes are used when the pipeline has no include patterns.
	DefaultIncludes() []string
	BeforeRun(ctx context.Context) error
	ProcessFile(ctx context.Context, file source.File) error
	AfterRun(ctx context.Context) error
}

// Summarizer is implemented by goals that keep statistics.
type Summarizer interface {
	Summary() stats.Summary
	AggregateErrors() int
}

// Root pairs a source directory with its destination.
type Root struct {
	Source     string   `mapstructure:"source"`
	Dest       string   `mapstructure:"dest"`
	Excludes   []string `mapstructure:"excludes"`
	PreferDest bool     `mapstructure:"preferDest"`
}

// Pipeline holds what a run needs besides the goal.
type Pipeline struct {
	FS mfs.FileSystem
	// Scanner lists files below a root. Defaults to scan.New(FS).
	Scanner incremental.Lister
	// Tracker holds the run's incremental state. Nil means a full run.
	Tracker  *incremental.Tracker
	Reporter *diag.Reporter
	Includes []string
	Excludes []string
	// Jobs is the number of files processed at once. Zero or one is
	// sequential.
	Jobs   int
	Logger *slog.Logger

	FailOnWarning bool
	FailOnError   bool
}

// Outcome summarizes a run.
type Outcome struct {
	RunID           string        `json:"runId" yaml:"runId"`
	Warnings        int           `json:"warnings" yaml:"warnings"`
	Errors          int           `json:"errors" yaml:"errors"`
	FileErrors      int           `json:"fileErrors" yaml:"fileErrors"`
	AggregateErrors int           `json:"aggregateErrors" yaml:"aggregateErrors"`
	Stats           stats.Summary `json:"stats" yaml:"stats"`
	Failed          bool          `json:"failed" yaml:"failed"`
}

// Run drives goal over roots. The returned error is the fatal error, if
// any; the Outcome is filled in either way.
func (p *Pipeline) Run(ctx context.Context, goal Goal, roots []Root) (Outcome, error) {
	pc := *p
	r := &run{
		Pipeline: &pc,
		goal:     goal,
		logger:   p.Logger,
		outcome:  Outcome{RunID: uuid.NewString()},
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if pc.Reporter == nil {
		pc.Reporter = diag.NewReporter(r.logger, true)
	}
	if pc.Tracker == nil {
		pc.Tracker = incremental.NewTracker(nil)
	}

	err := r.execute(ctx, roots)
	return r.finish(err), err
}

type run struct {
	*Pipeline
	goal   Goal
	logger *slog.Logger

	mu       sync.Mutex
	outcome  Outcome
	ioErrors int
}

func (r *run) execute(ctx context.Context, roots []Root) error {
	if err := r.goal.BeforeRun(ctx); err != nil {
		return err
	}
	for _, root := range roots {
		if err := r.processRoot(ctx, root); err != nil {
			return err
		}
	}
	return r.goal.AfterRun(ctx)
}

func (r *run) processRoot(ctx context.Context, root Root) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if root.Source == "" {
		return nil
	}
	if !r.FS.Exists(root.Source) {
		r.Reporter.Notice(diag.Diagnostic{
			Severity: diag.Warning,
			Message:  "directory " + root.Source + " does not exist, skipping",
		})
		return nil
	}
	if root.Dest == "" {
		return fmt.Errorf("%w for %s", ErrMissingDestination, root.Source)
	}

	includes := r.Includes
	if len(includes) == 0 {
		includes = r.goal.DefaultIncludes()
	}
	excludes := slices.Concat(r.Excludes, root.Excludes)

	files, err := r.lister().Scan(root.Source, includes, excludes)
	if err != nil {
		return fmt.Errorf("scan %s: %w", root.Source, err)
	}
	if len(files) == 0 {
		if r.Tracker.IsIncrementalRun() {
			r.logger.Info("No files have changed, skipping", "path", root.Source)
		} else {
			r.logger.Info("No files found", "path", root.Source)
		}
		return nil
	}

	r.logger.Debug("Processing files", "path", root.Source, "count", len(files))
	if r.Jobs <= 1 {
		for _, name := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			r.processFile(ctx, root, name)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Jobs)
	for _, name := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.processFile(gctx, root, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *run) lister() incremental.Lister {
	lister := r.Scanner
	if lister == nil {
		lister = scan.New(r.FS)
	}
	return incremental.DeltaScanner{Lister: lister, Tracker: r.Tracker}
}

func (r *run) processFile(ctx context.Context, root Root, name string) {
	file, err := source.New(root.Source, root.Dest, name, root.PreferDest)
	if err == nil {
		err = r.goal.ProcessFile(ctx, file)
	}
	if err == nil {
		return
	}

	r.logger.Error("Failed to process file", "path", name, "error", err)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcome.FileErrors++
	var terr *transform.Error
	if !errors.As(err, &terr) {
		r.ioErrors++
	}
}

func (r *run) finish(fatal error) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.outcome
	out.Warnings = r.Reporter.Warnings()
	out.Errors = r.Reporter.Errors()
	if s, ok := r.goal.(Summarizer); ok {
		out.Stats = s.Summary()
		out.AggregateErrors = s.AggregateErrors()
	}
	out.Failed = fatal != nil ||
		r.ioErrors > 0 ||
		out.AggregateErrors > 0 ||
		r.Reporter.Failed(r.FailOnWarning, r.FailOnError)
	return out
}
