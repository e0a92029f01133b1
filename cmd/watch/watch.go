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

// Package watch provides the watch command for minnow.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/minnow/cmd/compress"
	"bennypowers.dev/minnow/delta"
	"bennypowers.dev/minnow/diag"
	"bennypowers.dev/minnow/incremental"
	"bennypowers.dev/minnow/internal/runner"
	"bennypowers.dev/minnow/pipeline"
	watcher "bennypowers.dev/minnow/watch"
)

// Cmd is the watch command, which compresses once and then again whenever
// sources change.
var Cmd = &cobra.Command{
	Use:   "watch",
	Short: "Minify, then rebuild changed files until interrupted",
	Long: `Run compress once, then watch the source roots and re-run it for the
files that changed. Aggregations are rebuilt when one of their inputs was
rewritten.`,
	Example: `  minnow watch --source src --dest dist
  minnow watch --debounce 1s`,
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		flags := slices.Concat(runner.SourceFlags, compress.Flags, []runner.Flag{{Key: "watch.debounce", Name: "debounce"}})
		return runner.Bind(cmd, flags)
	},
	RunE: run,
}

func init() {
	runner.AddSourceFlags(Cmd)
	compress.AddFlags(Cmd)
	Cmd.Flags().Duration("debounce", watcher.DefaultDebounce, "Wait this long for changes to settle")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := runner.Setup(ctx, cmd)
	if err != nil {
		return err
	}

	outcome, runErr := compress.Run(ctx, env)
	if err := env.Finish(ctx, cmd, "watch", outcome, runErr); err != nil {
		if !errors.Is(err, runner.ErrFailed) {
			return err
		}
		env.Logger.Warn("Initial build failed, watching anyway")
	}

	var sources []string
	for _, r := range env.Config.Roots {
		if r.Source != "" {
			sources = append(sources, r.Source)
		}
	}
	w, err := watcher.New(sources...)
	if err != nil {
		return err
	}
	defer w.Close()

	env.Logger.Info("Watching for changes", "roots", w.Roots())
	return w.
		WithDebounce(viper.GetDuration("watch.debounce")).
		WithLogger(env.Logger).
		WithIgnore(Ignore(env.Config.Roots)).
		Run(ctx, func(ctx context.Context, changed *delta.Set) error {
			env.Tracker = incremental.NewTracker(changed)
			env.Reporter = diag.NewReporter(env.Logger, env.Config.AcceptWarnings())
			outcome, err := compress.Run(ctx, env)
			if err != nil {
				return err
			}
			env.Logger.Info("Rebuild finished",
				"files", outcome.Stats.Totals.Files,
				"warnings", outcome.Warnings,
				"errors", outcome.Errors,
				"failed", outcome.Failed)
			return nil
		})
}

// Ignore drops temp files and events inside destination roots. A
// destination that contains a source root is not ignored.
func Ignore(roots []pipeline.Root) func(path string) bool {
	var sources, dests []string
	for _, r := range roots {
		if abs, err := filepath.Abs(r.Source); err == nil && r.Source != "" {
			sources = append(sources, abs)
		}
	}
	for _, r := range roots {
		if r.Dest == "" {
			continue
		}
		abs, err := filepath.Abs(r.Dest)
		if err != nil || slices.ContainsFunc(sources, func(s string) bool { return within(s, abs) }) {
			continue
		}
		dests = append(dests, abs)
	}
	return func(path string) bool {
		if watcher.IsTemp(path) {
			return true
		}
		return slices.ContainsFunc(dests, func(d string) bool { return within(path, d) })
	}
}

func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
