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
package source_test

import (
	"errors"
	"path/filepath"
	"testing"

	"bennypowers.dev/minnow/source"
)

func TestSplitExt(t *testing.T) {
	tests := []struct {
		name    string
		wantRel string
		wantExt string
	}{
		{"app.js", "app", ".js"},
		{"lib/app.min.js", "lib/app.min", ".js"},
		{"styles/site.css", "styles/site", ".css"},
		{".eslintrc", ".eslintrc", ""},
		{"Makefile", "Makefile", ""},
		{"dir.d/file", "dir", ".d/file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, ext := source.SplitExt(tt.name)
			if rel != tt.wantRel || ext != tt.wantExt {
				t.Errorf("SplitExt(%q) = (%q, %q), want (%q, %q)", tt.name, rel, ext, tt.wantRel, tt.wantExt)
			}
		})
	}
}

func TestNewRejectsEmptyName(t *testing.T) {
	for _, name := range []string{"", "   "} {
		if _, err := source.New("/src", "/dst", name, false); !errors.Is(err, source.ErrEmptyName) {
			t.Errorf("New(%q) error = %v, want ErrEmptyName", name, err)
		}
	}
}

func TestDestPath(t *testing.T) {
	f, err := source.New("/src", "/dst", "js/app.js", false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got, want := f.DestPath("-min"), filepath.FromSlash("/dst/js/app-min.js"); got != want {
		t.Errorf("DestPath(-min) = %q, want %q", got, want)
	}
	if got, want := f.DestPath(""), filepath.FromSlash("/dst/js/app.js"); got != want {
		t.Errorf("DestPath(\"\") = %q, want %q", got, want)
	}
}

func TestSourcePathShadowing(t *testing.T) {
	destCopy := filepath.FromSlash("/dst/app.js")
	srcCopy := filepath.FromSlash("/src/app.js")

	exists := func(p string) bool { return p == destCopy }
	none := func(string) bool { return false }

	tests := []struct {
		name       string
		preferDest bool
		exists     func(string) bool
		want       string
	}{
		{"prefer dest and present", true, exists, destCopy},
		{"prefer dest but absent", true, none, srcCopy},
		{"no preference", false, exists, srcCopy},
		{"nil predicate", true, nil, srcCopy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := source.New("/src", "/dst", "app.js", tt.preferDest)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if got := f.SourcePath(tt.exists); got != tt.want {
				t.Errorf("SourcePath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShortName(t *testing.T) {
	if got := source.ShortName("/a/b/c.js"); got != "...c.js" {
		t.Errorf("ShortName() = %q", got)
	}
	if got := source.ShortName(`C:\a\c.css`); got != "...c.css" {
		t.Errorf("ShortName() = %q", got)
	}
	if got := source.ShortName("plain.js"); got != "...plain.js" {
		t.Errorf("ShortName() = %q", got)
	}
}
