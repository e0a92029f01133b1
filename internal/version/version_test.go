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
package version

import "testing"

func TestGetVersion(t *testing.T) {
	saved := []string{Version, GitCommit, GitTag, GitDirty}
	t.Cleanup(func() {
		Version, GitCommit, GitTag, GitDirty = saved[0], saved[1], saved[2], saved[3]
	})

	tests := []struct {
		name                        string
		version, commit, tag, dirty string
		want                        string
	}{
		{"ldflags", "v1.2.0", "unknown", "unknown", "", "v1.2.0"},
		{"tag and commit", "dev", "0123456789abcdef", "v1.1.0", "", "v1.1.0-0123456"},
		{"tag contains commit", "dev", "0123456789", "v1.1.0-0123456", "", "v1.1.0-0123456"},
		{"dirty", "dev", "abc", "v1.0.0", "dirty", "v1.0.0-abc-dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, GitCommit, GitTag, GitDirty = tt.version, tt.commit, tt.tag, tt.dirty
			if got := GetVersion(); got != tt.want {
				t.Errorf("GetVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.GoVersion == "" || info.Platform == "" {
		t.Errorf("incomplete build info: %+v", info)
	}
}
