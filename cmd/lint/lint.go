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

// Package lint provides the lint command for minnow.
package lint

import (
	"context"

	"github.com/spf13/cobra"

	"bennypowers.dev/minnow/internal/runner"
	"bennypowers.dev/minnow/pipeline"
	checker "bennypowers.dev/minnow/transform/lint"
)

// Cmd is the lint command, which reports JavaScript syntax errors and
// suspicious statements.
var Cmd = &cobra.Command{
	Use:   "lint [dir...]",
	Short: "Check JavaScript files for syntax errors",
	Long: `Parse every JavaScript file below the given directories (or the configured
roots) and report syntax errors and warnings. Nothing is written.

Exits non-zero with --fail-on-error when a file has errors, or with
--fail-on-warning when a file has warnings.`,
	Example: `  # Lint the configured roots
  minnow lint

  # Lint two directories, failing on any error
  minnow lint src/js vendor --fail-on-error`,
	SilenceUsage: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return runner.Bind(cmd, runner.SourceFlags)
	},
	RunE: run,
}

func init() {
	runner.AddSourceFlags(Cmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := runner.Setup(ctx, cmd)
	if err != nil {
		return err
	}
	outcome, runErr := Run(ctx, env, Roots(env.Config.Roots, args))
	return env.Finish(ctx, cmd, "lint", outcome, runErr)
}

// Roots lints dirs when given, otherwise the configured roots. Lint writes
// nothing, so each root's destination defaults to its source.
func Roots(configured []pipeline.Root, dirs []string) []pipeline.Root {
	var roots []pipeline.Root
	if len(dirs) > 0 {
		for _, dir := range dirs {
			roots = append(roots, pipeline.Root{Source: dir, Dest: dir})
		}
		return roots
	}
	for _, r := range configured {
		if r.Dest == "" {
			r.Dest = r.Source
		}
		roots = append(roots, r)
	}
	return roots
}

// Run performs one lint run in env.
func Run(ctx context.Context, env *runner.Env, roots []pipeline.Root) (pipeline.Outcome, error) {
	goal := pipeline.NewLintGoal(env.FS, checker.New(), env.Tracker, env.Reporter).WithLogger(env.Logger)
	return env.Pipeline().Run(ctx, goal, roots)
}
