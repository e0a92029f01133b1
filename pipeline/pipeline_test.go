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
package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/minnow/aggregate"
	"bennypowers.dev/minnow/delta"
	"bennypowers.dev/minnow/diag"
	mfs "bennypowers.dev/minnow/fs"
	"bennypowers.dev/minnow/incremental"
	"bennypowers.dev/minnow/internal/mapfs"
	"bennypowers.dev/minnow/pipeline"
	"bennypowers.dev/minnow/transform"
	"bennypowers.dev/minnow/transform/lint"
)

var discard = slog.New(slog.DiscardHandler)

// squeeze drops spaces and rejects input containing SYNTAX.
type squeeze struct{}

func (squeeze) Transform(_ context.Context, kind transform.Kind, input []byte, _ transform.Options) (transform.Result, error) {
	if i := bytes.Index(input, []byte("SYNTAX")); i >= 0 {
		d := transform.Diagnostic{Severity: diag.Error, Line: 1, Column: i + 1, Message: "unexpected SYNTAX"}
		return transform.Result{Diagnostics: []transform.Diagnostic{d}}, &transform.Error{Kind: kind, Err: errors.New("unexpected SYNTAX")}
	}
	return transform.Result{Output: bytes.ReplaceAll(input, []byte(" "), nil)}, nil
}

// inflate makes every output larger than its input.
type inflate struct{}

func (inflate) Transform(_ context.Context, _ transform.Kind, input []byte, _ transform.Options) (transform.Result, error) {
	return transform.Result{Output: append(bytes.Clone(input), "/* padding */"...)}, nil
}

func newTree() *mapfs.MapFileSystem {
	m := mapfs.New()
	m.AddFile("/src/a.js", "var a = 1;", 0644)
	m.AddFile("/src/b.css", "a { color: red }", 0644)
	m.AddFile("/src/lib/c.js", "var c = 3;", 0644)
	return m
}

var roots = []pipeline.Root{{Source: "/src", Dest: "/out"}}

func compressConfig() pipeline.CompressConfig {
	return pipeline.CompressConfig{
		Suffix:          pipeline.DefaultSuffix,
		Options:         transform.DefaultOptions(),
		UseSmallestFile: true,
		Statistics:      true,
		GzipLevel:       9,
		BrotliLevel:     11,
	}
}

func runCompress(t *testing.T, m *mapfs.MapFileSystem, cfg pipeline.CompressConfig, tr transform.Transformer, tracker *incremental.Tracker, p pipeline.Pipeline) (pipeline.Outcome, error) {
	t.Helper()
	reporter := diag.NewReporter(discard, true)
	goal := pipeline.NewCompressGoal(m, cfg, tr, tracker, reporter).WithLogger(discard)
	p.FS = m
	p.Tracker = tracker
	p.Reporter = reporter
	p.Logger = discard
	return p.Run(context.Background(), goal, roots)
}

func read(t *testing.T, m *mapfs.MapFileSystem, path string) string {
	t.Helper()
	data, err := m.ReadFile(path)
	require.NoError(t, err, "reading %s", path)
	return string(data)
}

func TestCompressFullRun(t *testing.T) {
	m := newTree()
	out, err := runCompress(t, m, compressConfig(), squeeze{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)

	assert.False(t, out.Failed)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "vara=1;", read(t, m, "/out/a-min.js"))
	assert.Equal(t, "a{color:red}", read(t, m, "/out/b-min.css"))
	assert.Equal(t, "varc=3;", read(t, m, "/out/lib/c-min.js"))
	assert.False(t, m.Exists("/out/a-min.js.tmp"))

	assert.Equal(t, 3, out.Stats.Totals.Files)
	assert.Equal(t, int64(36), out.Stats.Totals.InBytes)
	assert.Equal(t, int64(26), out.Stats.Totals.OutBytes)
}

func TestCompressSecondFullRunSkipsNewerOutputs(t *testing.T) {
	m := newTree()
	_, err := runCompress(t, m, compressConfig(), squeeze{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)

	out, err := runCompress(t, m, compressConfig(), squeeze{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.Zero(t, out.Stats.Totals.Files)

	cfg := compressConfig()
	cfg.Force = true
	out, err = runCompress(t, m, cfg, squeeze{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Stats.Totals.Files)
}

func TestCompressIncremental(t *testing.T) {
	m := newTree()

	tracker := incremental.NewTracker(delta.NewSet(true))
	out, err := runCompress(t, m, compressConfig(), squeeze{}, tracker, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.Zero(t, out.Stats.Totals.Files)
	assert.False(t, m.Exists("/out/a-min.js"))

	tracker = incremental.NewTracker(delta.NewSet(true, "/src/lib/c.js"))
	out, err = runCompress(t, m, compressConfig(), squeeze{}, tracker, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Stats.Totals.Files)
	assert.True(t, m.Exists("/out/lib/c-min.js"))
	assert.False(t, m.Exists("/out/a-min.js"))
	assert.Equal(t, []string{"/out/lib/c-min.js"}, tracker.Outputs())
}

func TestCompressNeverInflates(t *testing.T) {
	m := newTree()
	out, err := runCompress(t, m, compressConfig(), inflate{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)

	assert.Equal(t, "var a = 1;", read(t, m, "/out/a-min.js"))
	for _, rec := range out.Stats.Files {
		assert.True(t, rec.UsedOriginal, rec.Source)
		assert.Equal(t, rec.InSize, rec.OutSize)
	}

	cfg := compressConfig()
	cfg.UseSmallestFile = false
	cfg.Force = true
	_, err = runCompress(t, m, cfg, inflate{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;/* padding */", read(t, m, "/out/a-min.js"))
}

func TestCompressTransformErrorIsIsolated(t *testing.T) {
	for _, failOnError := range []bool{false, true} {
		t.Run(fmt.Sprintf("failOnError=%v", failOnError), func(t *testing.T) {
			m := newTree()
			m.AddFile("/src/bad.js", "var SYNTAX", 0644)

			out, err := runCompress(t, m, compressConfig(), squeeze{}, nil, pipeline.Pipeline{FailOnError: failOnError})
			require.NoError(t, err)

			assert.Equal(t, 1, out.FileErrors)
			assert.Equal(t, 1, out.Errors)
			assert.Equal(t, failOnError, out.Failed)
			assert.False(t, m.Exists("/out/bad-min.js"))
			assert.False(t, m.Exists("/out/bad-min.js.tmp"))
			assert.Equal(t, 3, out.Stats.Totals.Files)
		})
	}
}

func TestCompressSkipsAlreadyMinified(t *testing.T) {
	m := newTree()
	m.AddFile("/src/vendor-min.js", "var   v", 0644)

	_, err := runCompress(t, m, compressConfig(), squeeze{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.False(t, m.Exists("/out/vendor-min-min.js"))
}

func TestCompressNoSuffixNoCompress(t *testing.T) {
	m := newTree()
	cfg := compressConfig()
	cfg.NoSuffix = true
	cfg.NoCompress = true

	_, err := runCompress(t, m, cfg, squeeze{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;", read(t, m, "/out/a.js"))
	assert.Equal(t, "a { color: red }", read(t, m, "/out/b.css"))
}

func TestCompressSidecarsAndSweep(t *testing.T) {
	m := newTree()
	m.AddFile("/out/stale.js.tmp", "junk", 0644)
	m.AddFile("/out/data/session.tmp", "user data", 0644)

	cfg := compressConfig()
	cfg.Gzip = true
	cfg.SweepRoots = []string{"/out"}

	out, err := runCompress(t, m, cfg, squeeze{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.False(t, m.Exists("/out/stale.js.tmp"))
	assert.Equal(t, "user data", read(t, m, "/out/data/session.tmp"))
	assert.True(t, m.Exists("/out/a-min.js.gz"))
	for _, rec := range out.Stats.Files {
		require.Len(t, rec.Sidecars, 1, rec.Source)
	}
}

func TestCompressAggregatesAfterProcessing(t *testing.T) {
	m := newTree()
	cfg := compressConfig()
	cfg.Aggregations = []aggregate.Spec{{
		Output:        "/out/all.js",
		Includes:      []string{"a-min.js", "lib/c-min.js"},
		InsertNewLine: true,
	}}

	out, err := runCompress(t, m, cfg, squeeze{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.Equal(t, "vara=1;\nvarc=3;\n", read(t, m, "/out/all.js"))
	assert.Equal(t, 1, out.Stats.Totals.Aggregates)
	assert.Zero(t, out.AggregateErrors)
}

func TestCompressAggregateFailureFailsRun(t *testing.T) {
	m := newTree()
	cfg := compressConfig()
	cfg.Aggregations = []aggregate.Spec{
		{InputDir: "/missing", Output: "/out/broken.js", Includes: []string{"*.js"}},
		{Output: "/out/all.js", Includes: []string{"a-min.js"}},
	}

	out, err := runCompress(t, m, cfg, squeeze{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.Equal(t, 1, out.AggregateErrors)
	assert.True(t, out.Failed)
	assert.Equal(t, "vara=1;", read(t, m, "/out/all.js"))
}

func TestCompressIncrementalAggregateUnderSymlink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	target := filepath.Join(dir, "real")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.js"), []byte("var a = 1;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.js"), []byte("var b = 2;"), 0o600))
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	osfs := mfs.NewOSFileSystem()
	cfg := compressConfig()
	cfg.Aggregations = []aggregate.Spec{{
		InputDir: link,
		Output:   filepath.Join(link, "all.js"),
		Includes: []string{"*-min.js"},
	}}
	tracker := incremental.NewTracker(delta.NewSet(true, filepath.Join(src, "a.js")))
	reporter := diag.NewReporter(discard, true)
	goal := pipeline.NewCompressGoal(osfs, cfg, squeeze{}, tracker, reporter).WithLogger(discard)
	p := pipeline.Pipeline{FS: osfs, Tracker: tracker, Reporter: reporter, Logger: discard}

	out, err := p.Run(context.Background(), goal, []pipeline.Root{{Source: src, Dest: link}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Stats.Totals.Files)
	assert.Equal(t, 1, out.Stats.Totals.Aggregates)

	data, err := os.ReadFile(filepath.Join(target, "all.js"))
	require.NoError(t, err)
	assert.Equal(t, "vara=1;", string(data))
}

func TestCompressPreProcessAggregates(t *testing.T) {
	m := newTree()
	cfg := compressConfig()
	cfg.PreProcessAggregates = true
	cfg.Aggregations = []aggregate.Spec{{
		InputDir: "/src",
		Output:   "/src/bundle.js",
		Includes: []string{"a.js", "lib/c.js"},
	}}

	_, err := runCompress(t, m, cfg, squeeze{}, nil, pipeline.Pipeline{})
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;var c = 3;", read(t, m, "/src/bundle.js"))
	assert.Equal(t, "vara=1;varc=3;", read(t, m, "/out/bundle-min.js"))
}

func TestCompressParallel(t *testing.T) {
	m := mapfs.New()
	for i := range 40 {
		m.AddFile(fmt.Sprintf("/src/f%02d.js", i), fmt.Sprintf("var x = %d;", i), 0644)
	}

	out, err := runCompress(t, m, compressConfig(), squeeze{}, nil, pipeline.Pipeline{Jobs: 8})
	require.NoError(t, err)
	assert.Equal(t, 40, out.Stats.Totals.Files)
	assert.Equal(t, "varx=17;", read(t, m, "/out/f17-min.js"))
}

func TestRunRoots(t *testing.T) {
	m := newTree()
	reporter := diag.NewReporter(discard, true)
	goal := pipeline.NewLintGoal(m, lint.New(), nil, reporter).WithLogger(discard)
	p := pipeline.Pipeline{FS: m, Reporter: reporter, Logger: discard, FailOnWarning: true}

	out, err := p.Run(context.Background(), goal, []pipeline.Root{{Source: ""}, {Source: "/nowhere", Dest: "/out"}})
	require.NoError(t, err)
	assert.Zero(t, goal.Checked())
	assert.Zero(t, out.Warnings)
	assert.False(t, out.Failed)
	diags := reporter.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.Warning, diags[0].Severity)
	assert.Equal(t, "directory /nowhere does not exist, skipping", diag.Format(diags[0]))

	p.Reporter = nil

	out, err = p.Run(context.Background(), goal, []pipeline.Root{{Source: "/src"}})
	require.ErrorIs(t, err, pipeline.ErrMissingDestination)
	assert.True(t, out.Failed)
}

func TestRunCancelled(t *testing.T) {
	m := newTree()
	goal := pipeline.NewLintGoal(m, lint.New(), nil, nil).WithLogger(discard)
	p := pipeline.Pipeline{FS: m, Logger: discard}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := p.Run(ctx, goal, roots)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, out.Failed)
}

func TestLintGoal(t *testing.T) {
	m := mapfs.New()
	m.AddFile("/src/ok.js", "export const a = 1;\n", 0644)
	m.AddFile("/src/dbg.js", "function f() {\n  debugger;\n}\n", 0644)
	m.AddFile("/src/bad.js", "function f( {\n", 0644)
	m.AddFile("/src/style.css", "a {", 0644)

	for _, failOnWarning := range []bool{false, true} {
		t.Run(fmt.Sprintf("failOnWarning=%v", failOnWarning), func(t *testing.T) {
			reporter := diag.NewReporter(discard, true)
			goal := pipeline.NewLintGoal(m, lint.New(), nil, reporter).WithLogger(discard)
			p := pipeline.Pipeline{FS: m, Reporter: reporter, Logger: discard, FailOnWarning: failOnWarning}

			out, err := p.Run(context.Background(), goal, []pipeline.Root{{Source: "/src", Dest: "/src"}})
			require.NoError(t, err)

			assert.Equal(t, 3, goal.Checked())
			assert.Equal(t, 1, out.Warnings)
			assert.Positive(t, out.Errors)
			assert.Equal(t, 1, out.FileErrors)
			assert.Equal(t, failOnWarning, out.Failed)
			assert.False(t, m.Exists("/src/ok-min.js"))
		})
	}
}
