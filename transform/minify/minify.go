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

// Package minify compresses JavaScript and CSS.
package minify

import (
	"bytes"
	"context"
	"errors"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/parse/v2"

	"bennypowers.dev/minnow/diag"
	"bennypowers.dev/minnow/transform"
)

const (
	mediaJS  = "application/javascript"
	mediaCSS = "text/css"
)

// Minifier implements transform.Transformer. Files of unknown kind pass
// through unchanged.
//
// PreserveSemicolons and DisableOptimizations are accepted but have no
// effect. LineBreak applies to CSS only.
type Minifier struct{}

// New creates a Minifier.
func New() *Minifier {
	return &Minifier{}
}

// Transform implements transform.Transformer.
func (m *Minifier) Transform(ctx context.Context, kind transform.Kind, input []byte, opts transform.Options) (transform.Result, error) {
	if err := ctx.Err(); err != nil {
		return transform.Result{}, err
	}

	mm := minify.New()
	var mediatype string
	switch kind {
	case transform.JS:
		mediatype = mediaJS
		mm.Add(mediaJS, &js.Minifier{KeepVarNames: opts.NoMunge})
	case transform.CSS:
		mediatype = mediaCSS
		mm.Add(mediaCSS, &css.Minifier{})
	default:
		return transform.Result{Output: input}, nil
	}

	out, err := mm.Bytes(mediatype, input)
	if err != nil {
		d := diag.Diagnostic{Severity: diag.Error, Message: err.Error()}
		var perr *parse.Error
		if errors.As(err, &perr) {
			d.Line = perr.Line
			d.Column = perr.Column
			d.Message = perr.Message
			d.LineSource = perr.Context
		}
		return transform.Result{Diagnostics: []transform.Diagnostic{d}}, &transform.Error{Kind: kind, Err: err}
	}

	if kind == transform.CSS && opts.LineBreak >= 0 {
		out = breakCSS(out, opts.LineBreak)
	}
	return transform.Result{Output: out}, nil
}

// breakCSS inserts a newline after each closing brace that ends past column
// pos. Braces inside strings are left alone.
func breakCSS(src []byte, pos int) []byte {
	var b bytes.Buffer
	b.Grow(len(src) + len(src)/max(pos, 1))

	lineStart := 0
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		b.WriteByte(c)

		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '}' && b.Len()-lineStart > pos:
			b.WriteByte('\n')
			lineStart = b.Len()
		}
	}
	return b.Bytes()
}
