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
package watch

import (
	"path/filepath"
	"testing"

	"bennypowers.dev/minnow/pipeline"
)

func TestIgnore(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dist := filepath.Join(root, "dist")
	inPlace := filepath.Join(root, "inplace")

	ignore := Ignore([]pipeline.Root{
		{Source: src, Dest: dist},
		{Source: inPlace, Dest: inPlace},
		{Source: filepath.Join(root, "site", "js"), Dest: filepath.Join(root, "site")},
	})

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(src, "a.js"), false},
		{filepath.Join(src, "a-min.js.tmp"), true},
		{filepath.Join(dist, "a-min.js"), true},
		{dist, true},
		{filepath.Join(root, "distant", "a.js"), false},
		{filepath.Join(inPlace, "a-min.js"), false},
		{filepath.Join(root, "site", "js", "b.js"), false},
		{filepath.Join(root, "site", "other", "b.js"), false},
	}
	for _, tt := range tests {
		if got := ignore(tt.path); got != tt.want {
			t.Errorf("ignore(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
