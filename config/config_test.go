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
package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/minnow/aggregate"
	"bennypowers.dev/minnow/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "-min", cfg.Suffix)
	assert.Equal(t, -1, cfg.LineBreak)
	assert.Equal(t, 9, cfg.Level)
	assert.Equal(t, 11, cfg.BrotliLevel)
	assert.Equal(t, 1, cfg.Jobs)
	assert.True(t, cfg.Statistics)
	assert.True(t, cfg.UseSmallestFile)
	assert.True(t, cfg.Warnings)
	assert.Empty(t, cfg.Roots)
	assert.Empty(t, cfg.File)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "minnow.yaml", `
roots:
  - source: src/js
    dest: dist/js
    excludes: ["**/legacy/**"]
  - source: /abs/css
    dest: /abs/out
suffix: .min
gzip: true
level: 6
preferDest: true
jobs: 4
incremental:
  manifest: .minnow/state.db
aggregations:
  - output: dist/all.js
    includes: [a.js, "*.js"]
    insertNewLine: true
    autoExcludeWildcards: true
`)

	cfg, err := config.Load(viper.New(), file)
	require.NoError(t, err)

	assert.Equal(t, file, cfg.File)
	require.Len(t, cfg.Roots, 2)
	assert.Equal(t, filepath.Join(dir, "src/js"), cfg.Roots[0].Source)
	assert.Equal(t, filepath.Join(dir, "dist/js"), cfg.Roots[0].Dest)
	assert.Equal(t, []string{"**/legacy/**"}, cfg.Roots[0].Excludes)
	assert.True(t, cfg.Roots[0].PreferDest)
	assert.Equal(t, "/abs/css", cfg.Roots[1].Source)

	assert.Equal(t, ".min", cfg.Suffix)
	assert.True(t, cfg.Gzip)
	assert.Equal(t, 6, cfg.Level)
	assert.Equal(t, 4, cfg.Jobs)
	assert.Equal(t, filepath.Join(dir, ".minnow/state.db"), cfg.Incremental.Manifest)

	require.Len(t, cfg.Aggregations, 1)
	agg := cfg.Aggregations[0]
	assert.Equal(t, filepath.Join(dir, "dist/all.js"), agg.Output)
	assert.Equal(t, []string{"a.js", "*.js"}, agg.Includes)
	assert.True(t, agg.InsertNewLine)
	assert.True(t, agg.AutoExcludeWildcards)
	assert.False(t, agg.RemoveIncluded)

	cc := cfg.Compress()
	assert.Equal(t, 6, cc.GzipLevel)
	assert.Equal(t, []string{filepath.Join(dir, "dist/js"), "/abs/out"}, cc.SweepRoots)
}

func TestLoadSourceFlagsBecomeFirstRoot(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	v := viper.New()
	v.Set("source", "assets")
	v.Set("dest", "public")

	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	require.Len(t, cfg.Roots, 1)
	assert.Equal(t, filepath.Join(dir, "assets"), cfg.Roots[0].Source)
	assert.Equal(t, filepath.Join(dir, "public"), cfg.Roots[0].Dest)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MINNOW_SUFFIX", ".small")
	t.Setenv("MINNOW_LOG_LEVEL", "debug")

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, ".small", cfg.Suffix)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("MINNOW_JOBS") })

	require.NoError(t, config.LoadDotEnv(""))

	writeFile(t, dir, ".env", "MINNOW_JOBS=3\n")
	require.NoError(t, config.LoadDotEnv(""))

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Jobs)

	assert.Error(t, config.LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{Level: 9, BrotliLevel: 11, Jobs: 1, Log: config.Log{Level: "info", Format: "text"}}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		ok     bool
	}{
		{"valid", func(*config.Config) {}, true},
		{"gzip level", func(c *config.Config) { c.Level = 10 }, false},
		{"brotli level", func(c *config.Config) { c.BrotliLevel = 12 }, false},
		{"negative jobs", func(c *config.Config) { c.Jobs = -1 }, false},
		{"aggregation output", func(c *config.Config) { c.Aggregations = make([]aggregate.Spec, 1) }, false},
		{"manifest and git", func(c *config.Config) { c.Incremental = config.Incremental{Manifest: "a.db", Git: true} }, false},
		{"log level", func(c *config.Config) { c.Log.Level = "loud" }, false},
		{"log format", func(c *config.Config) { c.Log.Format = "xml" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAcceptWarnings(t *testing.T) {
	assert.True(t, (&config.Config{Warnings: true}).AcceptWarnings())
	assert.True(t, (&config.Config{FailOnWarning: true}).AcceptWarnings())
	assert.False(t, (&config.Config{}).AcceptWarnings())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := config.Log{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "path", "a.js")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"path":"a.js"`)
}
