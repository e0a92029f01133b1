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

// Package runner wires configuration, incremental state and reporting
// around a pipeline run for the CLI commands.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/minnow/config"
	"bennypowers.dev/minnow/delta"
	"bennypowers.dev/minnow/diag"
	"bennypowers.dev/minnow/fs"
	"bennypowers.dev/minnow/incremental"
	"bennypowers.dev/minnow/internal/output"
	"bennypowers.dev/minnow/pipeline"
	"bennypowers.dev/minnow/scan"
	"bennypowers.dev/minnow/stats"
)

// ErrFailed is returned when a run completes but fails the run policy.
var ErrFailed = errors.New("run failed")

// Flag maps a config key to the flag that sets it.
type Flag struct {
	Key  string
	Name string
}

// Bind binds the named flags of cmd to viper keys. Binding happens when the
// command runs so commands sharing a key do not override each other.
func Bind(cmd *cobra.Command, flags []Flag) error {
	for _, f := range flags {
		flag := cmd.Flags().Lookup(f.Name)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", f.Name)
		}
		if err := viper.BindPFlag(f.Key, flag); err != nil {
			return err
		}
	}
	return nil
}

// SourceFlags are shared by every command that scans source roots.
var SourceFlags = []Flag{
	{Key: "source", Name: "source"},
	{Key: "dest", Name: "dest"},
	{Key: "includes", Name: "include"},
	{Key: "excludes", Name: "exclude"},
	{Key: "preferDest", Name: "prefer-dest"},
	{Key: "gitignore", Name: "gitignore"},
	{Key: "jobs", Name: "jobs"},
	{Key: "incremental.manifest", Name: "manifest"},
	{Key: "incremental.git", Name: "git"},
	{Key: "warnings", Name: "warnings"},
	{Key: "failOnWarning", Name: "fail-on-warning"},
	{Key: "failOnError", Name: "fail-on-error"},
	{Key: "metricsFile", Name: "metrics-file"},
	{Key: "format", Name: "format"},
}

// AddSourceFlags defines SourceFlags on cmd.
func AddSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("source", "s", "", "Source directory")
	f.StringP("dest", "d", "", "Destination directory")
	f.StringSlice("include", nil, "Include glob (can be repeated)")
	f.StringSlice("exclude", nil, "Exclude glob (can be repeated)")
	f.Bool("prefer-dest", false, "Read from an existing destination file instead of the source")
	f.Bool("gitignore", false, "Skip files matched by the root's .gitignore")
	f.IntP("jobs", "j", 1, "Number of files processed in parallel")
	f.String("manifest", "", "Content-hash manifest for incremental runs (sqlite)")
	f.Bool("git", false, "Only process files changed in the git worktree")
	f.Bool("warnings", true, "Report warnings")
	f.Bool("fail-on-warning", false, "Fail the run when there are warnings")
	f.Bool("fail-on-error", false, "Fail the run when there are errors")
	f.String("metrics-file", "", "Write Prometheus metrics to this file")
	f.StringP("format", "f", "text", "Report format (text, json, yaml)")
}

// Env is a configured run environment.
type Env struct {
	FS       fs.FileSystem
	Config   *config.Config
	Logger   *slog.Logger
	Tracker  *incremental.Tracker
	Reporter *diag.Reporter

	manifest *delta.Manifest
}

// Setup loads configuration and opens incremental state.
func Setup(ctx context.Context, cmd *cobra.Command) (*Env, error) {
	if err := config.LoadDotEnv(viper.GetString("env-file")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(viper.GetViper(), viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())
	slog.SetDefault(logger)

	env := &Env{
		FS:       fs.NewOSFileSystem(),
		Config:   cfg,
		Logger:   logger,
		Reporter: diag.NewReporter(logger, cfg.AcceptWarnings()),
	}

	var provider incremental.DeltaProvider
	switch {
	case cfg.Incremental.Manifest != "":
		m, err := delta.Open(ctx, cfg.Incremental.Manifest)
		if err != nil {
			return nil, err
		}
		env.manifest = m
		provider = m
	case cfg.Incremental.Git:
		dir := "."
		if len(cfg.Roots) > 0 && cfg.Roots[0].Source != "" {
			dir = cfg.Roots[0].Source
		}
		g, err := delta.OpenGitStatus(dir)
		if err != nil {
			return nil, err
		}
		provider = g
	}
	env.Tracker = incremental.NewTracker(provider)
	if env.Tracker.IsIncrementalRun() {
		logger.Debug("Incremental run")
	}
	return env, nil
}

// Pipeline returns a pipeline over env.
func (e *Env) Pipeline() *pipeline.Pipeline {
	cfg := e.Config
	return &pipeline.Pipeline{
		FS:            e.FS,
		Scanner:       scan.New(e.FS).WithGitignore(cfg.Gitignore),
		Tracker:       e.Tracker,
		Reporter:      e.Reporter,
		Includes:      cfg.Includes,
		Excludes:      cfg.Excludes,
		Jobs:          cfg.Jobs,
		Logger:        e.Logger,
		FailOnWarning: cfg.FailOnWarning,
		FailOnError:   cfg.FailOnError,
	}
}

// Finish persists incremental state, writes metrics and the report, and
// closes env. It returns runErr, or ErrFailed when the run failed policy.
func (e *Env) Finish(ctx context.Context, cmd *cobra.Command, command string, outcome pipeline.Outcome, runErr error) error {
	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	} else if e.manifest != nil {
		if err := e.manifest.Commit(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if path := e.Config.MetricsFile; path != "" {
		d := stats.Diagnostics{Warnings: outcome.Warnings, Errors: outcome.Errors}
		if err := stats.Export(path, outcome.Stats, d); err != nil {
			errs = append(errs, err)
		}
	}

	report := output.Report{Command: command, Outcome: outcome, Diagnostics: e.Reporter.Diagnostics()}
	if err := output.Write(e.FS, cmd.OutOrStdout(), report, viper.GetString("format")); err != nil {
		errs = append(errs, err)
	}

	if err := e.Close(); err != nil {
		errs = append(errs, err)
	}
	if runErr == nil && outcome.Failed {
		errs = append(errs, ErrFailed)
	}
	return errors.Join(errs...)
}

// Close releases incremental state.
func (e *Env) Close() error {
	if e.manifest == nil {
		return nil
	}
	m := e.manifest
	e.manifest = nil
	return m.Close()
}
