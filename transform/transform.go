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

// Package transform defines the boundary to per-file-type text transforms.
//
// Implementations live in subpackages: minify for compression and lint for
// syntax checking. Copy passes input through unchanged.
package transform

import (
	"context"
	"fmt"
	"strings"

	"bennypowers.dev/minnow/diag"
)

// Kind is the file type a transform operates on.
type Kind int

const (
	Unknown Kind = iota
	JS
	CSS
)

func (k Kind) String() string {
	switch k {
	case JS:
		return "js"
	case CSS:
		return "css"
	default:
		return "unknown"
	}
}

// KindForExt maps a file extension, with its leading dot, to a Kind.
func KindForExt(ext string) Kind {
	switch strings.ToLower(ext) {
	case ".js", ".mjs", ".cjs":
		return JS
	case ".css":
		return CSS
	default:
		return Unknown
	}
}

// Options are the formatting constraints passed to a transform.
type Options struct {
	// LineBreak is the column after which a line break is inserted at the
	// next safe point. Negative means never.
	LineBreak int
	// NoMunge keeps local variable names.
	NoMunge bool
	// PreserveSemicolons keeps all semicolons.
	PreserveSemicolons bool
	// DisableOptimizations turns off micro-optimizations.
	DisableOptimizations bool
}

// DefaultOptions never breaks lines and allows all optimizations.
func DefaultOptions() Options {
	return Options{LineBreak: -1}
}

// Diagnostic is a message produced by a transform. The caller fills in Path.
type Diagnostic = diag.Diagnostic

// Result is a transform's output.
type Result struct {
	Output      []byte
	Diagnostics []Diagnostic
}

// Transformer transforms the text of one file.
type Transformer interface {
	// Transform returns the transformed input. A non-nil error means the
	// input was rejected; the Result still carries its diagnostics.
	Transform(ctx context.Context, kind Kind, input []byte, opts Options) (Result, error)
}

// Error means a transform rejected its input.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Copy returns its input unchanged.
type Copy struct{}

// Transform implements Transformer.
func (Copy) Transform(ctx context.Context, _ Kind, input []byte, _ Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{Output: input}, nil
}
