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

// Package compress provides the compress command for minnow.
package compress

import (
	"context"
	"slices"

	"github.com/spf13/cobra"

	"bennypowers.dev/minnow/internal/runner"
	"bennypowers.dev/minnow/pipeline"
	"bennypowers.dev/minnow/transform/minify"
)

// Cmd is the compress command, which minifies JavaScript and CSS and builds
// aggregates.
var Cmd = &cobra.Command{
	Use:   "compress",
	Short: "Minify JavaScript and CSS files",
	Long: `Minify every JavaScript and CSS file below the source roots into the
destination roots, then build the configured aggregations.

Outputs are named with a suffix ("-min" by default) and are never larger than
their input unless --use-smallest-file=false.`,
	Example: `  # Minify src into dist
  minnow compress --source src --dest dist

  # Use minnow.yaml in the working directory, with gzip sidecars
  minnow compress --gzip

  # Only files changed since the last run
  minnow compress --manifest .minnow/state.db

  # Only files changed in the git worktree, four at a time
  minnow compress --git -j 4`,
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return runner.Bind(cmd, slices.Concat(runner.SourceFlags, Flags))
	},
	RunE: run,
}

// Flags are the compress settings, shared with the watch command.
var Flags = []runner.Flag{
	{Key: "suffix", Name: "suffix"},
	{Key: "nosuffix", Name: "nosuffix"},
	{Key: "linebreak", Name: "linebreak"},
	{Key: "nomunge", Name: "nomunge"},
	{Key: "preserveSemicolons", Name: "preserve-semicolons"},
	{Key: "disableOptimizations", Name: "disable-optimizations"},
	{Key: "nocompress", Name: "nocompress"},
	{Key: "force", Name: "force"},
	{Key: "gzip", Name: "gzip"},
	{Key: "level", Name: "level"},
	{Key: "brotli", Name: "brotli"},
	{Key: "brotliLevel", Name: "brotli-level"},
	{Key: "statistics", Name: "statistics"},
	{Key: "useSmallestFile", Name: "use-smallest-file"},
	{Key: "preProcessAggregates", Name: "pre-process-aggregates"},
}

// AddFlags defines Flags on cmd.
func AddFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("suffix", pipeline.DefaultSuffix, "Suffix inserted before the output extension")
	f.Bool("nosuffix", false, "Write outputs with the source name")
	f.Int("linebreak", -1, "Insert a line break after this column (-1 never)")
	f.Bool("nomunge", false, "Keep local variable names")
	f.Bool("preserve-semicolons", false, "Keep all semicolons")
	f.Bool("disable-optimizations", false, "Disable micro-optimizations")
	f.Bool("nocompress", false, "Copy files instead of minifying them")
	f.Bool("force", false, "Process files even when the output is newer")
	f.Bool("gzip", false, "Write a .gz file next to each output")
	f.Int("level", 9, "Gzip level (0-9)")
	f.Bool("brotli", false, "Write a .br file next to each output")
	f.Int("brotli-level", 11, "Brotli level (0-11)")
	f.Bool("statistics", true, "Log per-file statistics")
	f.Bool("use-smallest-file", true, "Keep the original when minifying makes a file larger")
	f.Bool("pre-process-aggregates", false, "Build aggregations before minifying")
}

func init() {
	runner.AddSourceFlags(Cmd)
	AddFlags(Cmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := runner.Setup(ctx, cmd)
	if err != nil {
		return err
	}
	outcome, runErr := Run(ctx, env)
	return env.Finish(ctx, cmd, "compress", outcome, runErr)
}

// Run performs one compress run in env.
func Run(ctx context.Context, env *runner.Env) (pipeline.Outcome, error) {
	goal := pipeline.NewCompressGoal(env.FS, env.Config.Compress(), minify.New(), env.Tracker, env.Reporter).
		WithLogger(env.Logger)
	return env.Pipeline().Run(ctx, goal, env.Config.Roots)
}
