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

// Package config loads minnow's configuration.
//
// Values come from a YAML file, MINNOW_* environment variables, an optional
// .env file and command-line flags bound into the same viper instance.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bennypowers.dev/minnow/aggregate"
	"bennypowers.dev/minnow/pipeline"
	"bennypowers.dev/minnow/transform"
)

// EnvPrefix prefixes environment variable overrides.
const EnvPrefix = "MINNOW"

// Incremental selects where change information comes from.
type Incremental struct {
	// Manifest is a sqlite database of content hashes.
	Manifest string `mapstructure:"manifest"`
	// Git uses the worktree status of the enclosing repository.
	Git bool `mapstructure:"git"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the complete configuration of a run.
type Config struct {
	// Source and Dest describe a single root given on the command line.
	// They are folded into Roots by Load.
	Source string `mapstructure:"source"`
	Dest   string `mapstructure:"dest"`

	Roots      []pipeline.Root `mapstructure:"roots"`
	Includes   []string        `mapstructure:"includes"`
	Excludes   []string        `mapstructure:"excludes"`
	PreferDest bool            `mapstructure:"preferDest"`
	Gitignore  bool            `mapstructure:"gitignore"`

	Suffix               string `mapstructure:"suffix"`
	NoSuffix             bool   `mapstructure:"nosuffix"`
	LineBreak            int    `mapstructure:"linebreak"`
	NoMunge              bool   `mapstructure:"nomunge"`
	PreserveSemicolons   bool   `mapstructure:"preserveSemicolons"`
	DisableOptimizations bool   `mapstructure:"disableOptimizations"`
	NoCompress           bool   `mapstructure:"nocompress"`
	Force                bool   `mapstructure:"force"`

	Gzip        bool `mapstructure:"gzip"`
	Level       int  `mapstructure:"level"`
	Brotli      bool `mapstructure:"brotli"`
	BrotliLevel int  `mapstructure:"brotliLevel"`

	Statistics           bool `mapstructure:"statistics"`
	UseSmallestFile      bool `mapstructure:"useSmallestFile"`
	PreProcessAggregates bool `mapstructure:"preProcessAggregates"`

	Warnings      bool `mapstructure:"warnings"`
	FailOnWarning bool `mapstructure:"failOnWarning"`
	FailOnError   bool `mapstructure:"failOnError"`

	Jobs         int              `mapstructure:"jobs"`
	Incremental  Incremental      `mapstructure:"incremental"`
	Aggregations []aggregate.Spec `mapstructure:"aggregations"`
	MetricsFile  string           `mapstructure:"metricsFile"`
	Log          Log              `mapstructure:"log"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("suffix", pipeline.DefaultSuffix)
	v.SetDefault("nosuffix", false)
	v.SetDefault("linebreak", -1)
	v.SetDefault("nomunge", false)
	v.SetDefault("preserveSemicolons", false)
	v.SetDefault("disableOptimizations", false)
	v.SetDefault("nocompress", false)
	v.SetDefault("force", false)
	v.SetDefault("gzip", false)
	v.SetDefault("level", 9)
	v.SetDefault("brotli", false)
	v.SetDefault("brotliLevel", 11)
	v.SetDefault("statistics", true)
	v.SetDefault("useSmallestFile", true)
	v.SetDefault("preProcessAggregates", false)
	v.SetDefault("preferDest", false)
	v.SetDefault("gitignore", false)
	v.SetDefault("warnings", true)
	v.SetDefault("failOnWarning", false)
	v.SetDefault("failOnError", false)
	v.SetDefault("jobs", 1)
	v.SetDefault("source", "")
	v.SetDefault("dest", "")
	v.SetDefault("incremental.manifest", "")
	v.SetDefault("incremental.git", false)
	v.SetDefault("metricsFile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadDotEnv loads variables from a .env file without overriding the
// environment. An explicit path must exist; the default ".env" may not.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration into a Config. When file is empty, minnow.yaml
// is looked up in the working directory and may be absent. Relative paths
// are made absolute against the configuration file's directory, or the
// working directory when there is no file.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("minnow")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if cfg.Source != "" {
		cfg.Roots = append([]pipeline.Root{{Source: cfg.Source, Dest: cfg.Dest, PreferDest: cfg.PreferDest}}, cfg.Roots...)
	}
	if cfg.PreferDest {
		for i := range cfg.Roots {
			cfg.Roots[i].PreferDest = true
		}
	}
	base := "."
	if cfg.File != "" {
		base = filepath.Dir(cfg.File)
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	cfg.resolvePaths(base)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range c.Roots {
		c.Roots[i].Source = abs(c.Roots[i].Source)
		c.Roots[i].Dest = abs(c.Roots[i].Dest)
	}
	for i := range c.Aggregations {
		c.Aggregations[i].Output = abs(c.Aggregations[i].Output)
		c.Aggregations[i].InputDir = abs(c.Aggregations[i].InputDir)
	}
	c.Incremental.Manifest = abs(c.Incremental.Manifest)
	c.MetricsFile = abs(c.MetricsFile)
}

// Validate reports every invalid setting. A root without a destination is
// not an error here; the pipeline rejects it when it reaches that root.
func (c *Config) Validate() error {
	var errs []error
	if c.Level < 0 || c.Level > 9 {
		errs = append(errs, fmt.Errorf("level %d out of range 0-9", c.Level))
	}
	if c.BrotliLevel < 0 || c.BrotliLevel > 11 {
		errs = append(errs, fmt.Errorf("brotliLevel %d out of range 0-11", c.BrotliLevel))
	}
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs must not be negative, got %d", c.Jobs))
	}
	for i, a := range c.Aggregations {
		if strings.TrimSpace(a.Output) == "" {
			errs = append(errs, fmt.Errorf("aggregations[%d]: output is required", i))
		}
	}
	if c.Incremental.Git && c.Incremental.Manifest != "" {
		errs = append(errs, errors.New("incremental: manifest and git are mutually exclusive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: must be 'text' or 'json'", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// AcceptWarnings reports whether warnings are counted. Failing on warnings
// forces them on.
func (c *Config) AcceptWarnings() bool {
	return c.Warnings || c.FailOnWarning
}

// TransformOptions returns the transform options.
func (c *Config) TransformOptions() transform.Options {
	return transform.Options{
		LineBreak:            c.LineBreak,
		NoMunge:              c.NoMunge,
		PreserveSemicolons:   c.PreserveSemicolons,
		DisableOptimizations: c.DisableOptimizations,
	}
}

// Compress returns the CompressGoal configuration.
func (c *Config) Compress() pipeline.CompressConfig {
	cc := pipeline.CompressConfig{
		Suffix:               c.Suffix,
		NoSuffix:             c.NoSuffix,
		Options:              c.TransformOptions(),
		Force:                c.Force,
		NoCompress:           c.NoCompress,
		Gzip:                 c.Gzip,
		GzipLevel:            c.Level,
		Brotli:               c.Brotli,
		BrotliLevel:          c.BrotliLevel,
		Statistics:           c.Statistics,
		UseSmallestFile:      c.UseSmallestFile,
		PreProcessAggregates: c.PreProcessAggregates,
		Aggregations:         c.Aggregations,
	}
	for _, r := range c.Roots {
		if r.Dest != "" {
			cc.SweepRoots = append(cc.SweepRoots, r.Dest)
		}
	}
	return cc
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", name, err)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (l Log) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
