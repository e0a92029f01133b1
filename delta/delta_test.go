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
package delta_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/minnow/delta"
	"bennypowers.dev/minnow/incremental"
	"bennypowers.dev/minnow/internal/mapfs"
)

var (
	_ incremental.DeltaProvider = (*delta.Manifest)(nil)
	_ incremental.Observer      = (*delta.Manifest)(nil)
	_ incremental.DeltaProvider = (*delta.GitStatus)(nil)
	_ incremental.DeltaProvider = (*delta.Set)(nil)
)

func TestManifestLifecycle(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "manifest.db")
	a := filepath.Join(dir, "a.js")
	b := filepath.Join(dir, "b.js")
	require.NoError(t, os.WriteFile(a, []byte("var a = 1;"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("var b = 1;"), 0o600))

	// First run: empty manifest, full build.
	m, err := delta.Open(ctx, dbPath)
	require.NoError(t, err)
	assert.False(t, m.IsIncremental())
	m.Observe(a)
	m.Observe(b)
	require.NoError(t, m.Commit(ctx))
	require.NoError(t, m.Close())

	// Second run: nothing changed.
	m, err = delta.Open(ctx, dbPath)
	require.NoError(t, err)
	assert.True(t, m.IsIncremental())
	assert.False(t, m.HasChanged(a))
	assert.False(t, m.HasChanged(b))
	assert.True(t, m.HasChanged(filepath.Join(dir, "unknown.js")))
	require.NoError(t, m.Close())

	// Third run: a edited, b removed by aggregation.
	require.NoError(t, os.WriteFile(a, []byte("var a = 2;"), 0o600))
	m, err = delta.Open(ctx, dbPath)
	require.NoError(t, err)
	assert.True(t, m.HasChanged(a))
	m.Observe(a)
	m.Removed(b)
	require.NoError(t, m.Commit(ctx))
	require.NoError(t, m.Close())

	m, err = delta.Open(ctx, dbPath)
	require.NoError(t, err)
	defer m.Close()
	assert.False(t, m.HasChanged(a))
	assert.True(t, m.HasChanged(b), "removed entries are forgotten")
}

func TestManifestUncommittedIsDiscarded(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "manifest.db")
	a := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o600))

	m, err := delta.Open(ctx, dbPath)
	require.NoError(t, err)
	m.Observe(a)
	require.NoError(t, m.Close())

	m, err = delta.Open(ctx, dbPath)
	require.NoError(t, err)
	defer m.Close()
	assert.False(t, m.IsIncremental())
}

func TestManifestWithFileSystem(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "manifest.db")

	mfs := mapfs.New()
	mfs.AddFile("/src/app.js", "console.log(1)", 0o644)

	m, err := delta.Open(ctx, dbPath, delta.WithFileSystem(mfs))
	require.NoError(t, err)
	m.Observe("/src/app.js")
	require.NoError(t, m.Commit(ctx))
	require.NoError(t, m.Close())

	mfs.AddFile("/src/app.js", "console.log(2)", 0o644)
	m, err = delta.Open(ctx, dbPath, delta.WithFileSystem(mfs))
	require.NoError(t, err)
	defer m.Close()
	assert.True(t, m.HasChanged("/src/app.js"))
	assert.True(t, m.HasChanged("/src/missing.js"), "unreadable files count as changed")
}

func TestGitStatus(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	w, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "js"), 0o755))
	for _, name := range []string{"js/clean.js", "js/edited.js"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte("1"), 0o600))
		_, err = w.Add(name)
		require.NoError(t, err)
	}
	_, err = w.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com"},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "js", "edited.js"), []byte("2"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "js", "new.js"), []byte("3"), 0o600))

	gs, err := delta.OpenGitStatus(filepath.Join(dir, "js"))
	require.NoError(t, err)

	assert.True(t, gs.IsIncremental())
	assert.True(t, gs.HasChanged(filepath.Join(dir, "js", "edited.js")))
	assert.True(t, gs.HasChanged(filepath.Join(dir, "js", "new.js")))
	assert.False(t, gs.HasChanged(filepath.Join(dir, "js", "clean.js")))
	assert.Len(t, gs.Paths(), 2)
}

func TestGitStatusOutsideRepository(t *testing.T) {
	_, err := delta.OpenGitStatus(t.TempDir())
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	s := delta.NewSet(true, "/src/a.js", "/src/./b.js")
	assert.True(t, s.IsIncremental())
	assert.True(t, s.HasChanged("/src/b.js"))
	assert.False(t, s.HasChanged("/src/c.js"))
	assert.Equal(t, 2, s.Len())

	s.Add("/src/c.js")
	s.Removed("/src/a.js")
	assert.Equal(t, []string{filepath.Clean("/src/b.js"), filepath.Clean("/src/c.js")}, s.Paths())

	assert.False(t, delta.NewSet(false).IsIncremental())
}
