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
package transform_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/minnow/transform"
)

func TestKindForExt(t *testing.T) {
	tests := map[string]transform.Kind{
		".js":   transform.JS,
		".JS":   transform.JS,
		".mjs":  transform.JS,
		".css":  transform.CSS,
		".Css":  transform.CSS,
		".html": transform.Unknown,
		"":      transform.Unknown,
	}
	for ext, want := range tests {
		assert.Equal(t, want, transform.KindForExt(ext), "ext %q", ext)
	}
}

func TestCopy(t *testing.T) {
	in := []byte("var a = 1;")
	res, err := transform.Copy{}.Transform(context.Background(), transform.JS, in, transform.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, in, res.Output)
	assert.Empty(t, res.Diagnostics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = transform.Copy{}.Transform(ctx, transform.JS, in, transform.DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestError(t *testing.T) {
	cause := errors.New("unexpected token")
	var err error = &transform.Error{Kind: transform.CSS, Err: cause}
	assert.Equal(t, "transform css: unexpected token", err.Error())
	assert.ErrorIs(t, err, cause)
}
