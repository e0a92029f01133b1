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

// Package testutil provides fixture and golden-file helpers for minnow tests.
package testutil

import (
	"bytes"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"bennypowers.dev/minnow/internal/mapfs"
)

// updateGolden enables updating golden files with actual output when -update flag is set.
var updateGolden = flag.Bool("update", false, "update golden files with actual output")

// testdataPath finds name below the nearest testdata directory. Go runs
// tests from the package directory, so parents are tried too.
func testdataPath(name string) (string, bool) {
	for _, prefix := range []string{".", "..", filepath.Join("..", "..")} {
		p := filepath.Join(prefix, "testdata", name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return filepath.Join("testdata", name), false
}

// NewFixtureFS loads a testdata directory into a MapFileSystem below rootPath.
func NewFixtureFS(t *testing.T, fixtureDir string, rootPath string) *mapfs.MapFileSystem {
	t.Helper()

	fixturePath, ok := testdataPath(fixtureDir)
	if !ok {
		t.Fatalf("Could not find fixtures at %s (tried all paths)", fixtureDir)
	}

	m := mapfs.New()
	err := filepath.WalkDir(fixturePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(fixturePath, path)
		if err != nil {
			return err
		}
		m.AddFile(filepath.Join(rootPath, rel), string(content), 0644)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to load fixtures from %s: %v", fixtureDir, err)
	}
	return m
}

// WriteTree writes files, keyed by slash-separated relative path, below dir
// on the real filesystem.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
}

// Golden compares actual with testdata/golden/<name>. With -update the
// golden file is rewritten instead.
func Golden(t *testing.T, name string, actual []byte) {
	t.Helper()

	path, ok := testdataPath(filepath.Join("golden", name))
	if *updateGolden {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for golden file %s: %v", name, err)
		}
		if err := os.WriteFile(path, actual, 0644); err != nil {
			t.Fatalf("Failed to write golden file %s: %v", name, err)
		}
		t.Logf("Updated golden file: %s", path)
		return
	}
	if !ok {
		t.Fatalf("Golden file %s not found; run with -update", name)
	}

	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden file %s: %v", name, err)
	}
	if !bytes.Equal(want, actual) {
		t.Errorf("Output differs from %s\n--- want\n%s\n--- got\n%s", path, want, actual)
	}
}
