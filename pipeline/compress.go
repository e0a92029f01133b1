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

	"bennypowers.dev/minnow/aggregate"
	"bennypowers.dev/minnow/diag"
	"bennypowers.dev/minnow/finalize"
	mfs "bennypowers.dev/minnow/fs"
	"bennypowers.dev/minnow/incremental"
	"bennypowers.dev/minnow/scan"
	"bennypowers.dev/minnow/source"
	"bennypowers.dev/minnow/stats"
	"bennypowers.dev/minnow/transform"
)

// DefaultSuffix is inserted before the extension of compressed outputs.
const DefaultSuffix = "-min"

// CompressConfig configures CompressGoal.
type CompressConfig struct {
	// Suffix is inserted before each output's extension. Ignored when
	// NoSuffix is set.
	Suffix   string
	NoSuffix bool

	Options transform.Options

	// Force processes files even when the output is newer.
	Force bool
	// NoCompress copies files instead of transforming them.
	NoCompress bool

	Gzip        bool
	GzipLevel   int
	Brotli      bool
	BrotliLevel int

	// Statistics logs a line per file and the run totals.
	Statistics bool
	// UseSmallestFile keeps the original when the output would be larger.
	UseSmallestFile bool

	// PreProcessAggregates runs aggregations before files are processed.
	PreProcessAggregates bool
	Aggregations         []aggregate.Spec

	// SweepRoots are destination directories cleaned of stale temp files
	// before the run.
	SweepRoots []string
}

// CompressGoal minifies files and builds aggregates.
type CompressGoal struct {
	fs          mfs.FileSystem
	cfg         CompressConfig
	tracker     *incremental.Tracker
	reporter    diag.Sink
	transformer transform.Transformer
	finalizer   *finalize.Finalizer
	stats       *stats.Collector
	logger      *slog.Logger

	aggregated      bool
	aggregateErrors int
}

// NewCompressGoal creates a CompressGoal. The transformer is used for every
// file unless cfg.NoCompress is set.
func NewCompressGoal(fsys mfs.FileSystem, cfg CompressConfig, transformer transform.Transformer, tracker *incremental.Tracker, reporter diag.Sink) *CompressGoal {
	if tracker == nil {
		tracker = incremental.NewTracker(nil)
	}
	if cfg.NoCompress || transformer == nil {
		transformer = transform.Copy{}
	}
	g := &CompressGoal{
		fs:          fsys,
		cfg:         cfg,
		tracker:     tracker,
		reporter:    reporter,
		transformer: transformer,
		stats:       stats.NewCollector(),
		logger:      slog.Default(),
	}
	g.finalizer = finalize.New(fsys, g.finalizeConfig())
	return g
}

// WithLogger sets the logger.
func (g *CompressGoal) WithLogger(logger *slog.Logger) *CompressGoal {
	g.logger = logger
	g.finalizer.WithLogger(logger)
	return g
}

// Suffix is the suffix actually inserted into output names.
func (g *CompressGoal) Suffix() string {
	if g.cfg.NoSuffix {
		return ""
	}
	return g.cfg.Suffix
}

func (g *CompressGoal) finalizeConfig() finalize.Config {
	return finalize.Config{
		Suffix:      g.Suffix(),
		Force:       g.cfg.Force,
		UseSmallest: g.cfg.UseSmallestFile,
		Gzip:        g.cfg.Gzip,
		GzipLevel:   g.cfg.GzipLevel,
		Brotli:      g.cfg.Brotli,
		BrotliLevel: g.cfg.BrotliLevel,
	}
}

// DefaultIncludes implements Goal.
func (g *CompressGoal) DefaultIncludes() []string {
	return scan.DefaultIncludes
}

// BeforeRun implements Goal. It removes stale temp files and, when
// configured, runs the aggregations.
func (g *CompressGoal) BeforeRun(ctx context.Context) error {
	for _, root := range g.cfg.SweepRoots {
		n, err := g.finalizer.Sweep(root)
		if err != nil {
			return err
		}
		if n > 0 {
			g.logger.Info("Removed stale temp files", "path", root, "count", n)
		}
	}
	if g.cfg.PreProcessAggregates {
		g.aggregate(ctx)
	}
	return nil
}

// ProcessFile implements Goal.
func (g *CompressGoal) ProcessFile(ctx context.Context, file source.File) error {
	in := file.SourcePath(func(p string) bool { return mfs.Readable(g.fs, p) })
	out := file.DestPath(g.Suffix())

	if !g.tracker.HasDelta(in) {
		g.logger.Debug("Unchanged, skipping", "path", in)
		return nil
	}
	if _, skip := g.finalizer.Skip(file, in, out); skip {
		return nil
	}

	data, err := g.fs.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}

	g.logger.Debug("Compressing", "path", in, "output", out)
	res, terr := g.transformer.Transform(ctx, transform.KindForExt(file.Ext), data, g.cfg.Options)
	if g.reporter != nil {
		for _, d := range res.Diagnostics {
			d.Path = in
			g.reporter.Report(d)
		}
	}
	if terr != nil {
		if err := g.finalizer.Discard(g.finalizer.TempPath(out)); err != nil {
			g.logger.Warn("Could not remove temp file", "path", out, "error", err)
		}
		return terr
	}

	tmp, err := g.finalizer.WriteTemp(out, res.Output)
	if err != nil {
		return err
	}
	commit, err := g.finalizer.Commit(in, tmp, out)
	if err != nil {
		return err
	}
	g.tracker.RecordOutput(g.canonical(out))
	g.tracker.Observe(filepath.Join(file.SourceRoot, filepath.FromSlash(file.Name())))

	rec := stats.FileRecord{
		Source:       in,
		Dest:         out,
		InSize:       commit.InSize,
		OutSize:      commit.OutSize,
		UsedOriginal: commit.UsedOriginal,
	}
	if g.cfg.Gzip || g.cfg.Brotli {
		sidecars, err := g.finalizer.Sidecars(out)
		if err != nil {
			g.logger.Warn("Could not create compressed file", "path", out, "error", err)
		}
		for _, sc := range sidecars {
			rec.Sidecars = append(rec.Sidecars, stats.SidecarRecord{Path: sc.Path, Size: sc.Size})
		}
	}

	g.stats.AddFile(rec)
	if g.cfg.Statistics {
		g.logger.Info(rec.String())
	}
	return nil
}

// canonical resolves path the way aggregation inputs are resolved, so
// outputs and aggregate inputs under a symlinked root compare equal.
func (g *CompressGoal) canonical(path string) string {
	if c, err := g.fs.Canonical(path); err == nil {
		return c
	}
	return path
}

// AfterRun implements Goal. It logs the totals and runs the aggregations
// unless they already ran.
func (g *CompressGoal) AfterRun(ctx context.Context) error {
	if totals := g.stats.Totals(); g.cfg.Statistics && totals.InBytes > 0 {
		g.logger.Info(totals.String())
	}
	if !g.aggregated {
		g.aggregate(ctx)
	}
	return nil
}

func (g *CompressGoal) aggregate(ctx context.Context) {
	g.aggregated = true
	if len(g.cfg.Aggregations) == 0 {
		return
	}

	a := aggregate.New(g.fs, g.tracker).WithLogger(g.logger).WithStats(g.stats)
	if g.cfg.Gzip || g.cfg.Brotli {
		a.WithFinalizer(g.finalizer)
	}
	err := a.RunAll(ctx, g.cfg.Aggregations)
	if err == nil {
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		g.aggregateErrors += len(joined.Unwrap())
	} else {
		g.aggregateErrors++
	}
}

// Summary implements Summarizer.
func (g *CompressGoal) Summary() stats.Summary {
	return g.stats.Summary()
}

// AggregateErrors implements Summarizer.
func (g *CompressGoal) AggregateErrors() int {
	return g.aggregateErrors
}
