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

// Package lint checks JavaScript syntax with tree-sitter.
//
// The TypeScript grammar is used since it accepts all of JavaScript. Parse
// errors are reported as error diagnostics; debugger and with statements as
// warnings. Lint never changes its input.
package lint

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"bennypowers.dev/minnow/diag"
	"bennypowers.dev/minnow/transform"
)

var typescript = ts.NewLanguage(tsTypescript.LanguageTypescript())

var parserPool = sync.Pool{
	New: func() any {
		parser := ts.NewParser()
		if err := parser.SetLanguage(typescript); err != nil {
			panic("failed to set TypeScript language: " + err.Error())
		}
		return parser
	},
}

func getParser() *ts.Parser {
	return parserPool.Get().(*ts.Parser)
}

func putParser(p *ts.Parser) {
	p.Reset()
	parserPool.Put(p)
}

// warnings maps node kinds to the warning they produce.
var warnings = map[string]string{
	"debugger_statement": "debugger statement",
	"with_statement":     "use of with statement",
}

// Linter implements transform.Transformer. Only JS is checked; other kinds
// pass through with no diagnostics.
type Linter struct{}

// New creates a Linter.
func New() *Linter {
	return &Linter{}
}

// Transform implements transform.Transformer.
func (l *Linter) Transform(ctx context.Context, kind transform.Kind, input []byte, _ transform.Options) (transform.Result, error) {
	if err := ctx.Err(); err != nil {
		return transform.Result{}, err
	}
	result := transform.Result{Output: input}
	if kind != transform.JS {
		return result, nil
	}

	result.Diagnostics = Check(input)
	for _, d := range result.Diagnostics {
		if d.Severity == diag.Error {
			return result, &transform.Error{Kind: kind, Err: fmt.Errorf("line %d: %s", d.Line, d.Message)}
		}
	}
	return result, nil
}

// Check parses src and returns its diagnostics in document order.
func Check(src []byte) []transform.Diagnostic {
	parser := getParser()
	defer putParser(parser)

	tree := parser.Parse(src, nil)
	if tree == nil {
		return []transform.Diagnostic{{Severity: diag.Error, Line: 1, Column: 1, Message: "could not parse"}}
	}
	defer tree.Close()

	lines := bytes.Split(src, []byte("\n"))
	var out []transform.Diagnostic
	report := func(node *ts.Node, sev diag.Severity, msg string) {
		pos := node.StartPosition()
		d := transform.Diagnostic{
			Severity: sev,
			Line:     int(pos.Row) + 1,
			Column:   int(pos.Column) + 1,
			Message:  msg,
		}
		if int(pos.Row) < len(lines) {
			d.LineSource = string(bytes.TrimRight(lines[pos.Row], "\r"))
		}
		out = append(out, d)
	}

	var walk func(node *ts.Node)
	walk = func(node *ts.Node) {
		switch {
		case node.IsMissing():
			report(node, diag.Error, "missing "+node.Kind())
			return
		case node.IsError():
			report(node, diag.Error, syntaxError(node, src))
			return
		}
		if msg, ok := warnings[node.Kind()]; ok {
			report(node, diag.Warning, msg)
		}
		for i := uint(0); i < node.ChildCount(); i++ {
			if child := node.Child(i); child != nil {
				walk(child)
			}
		}
	}
	walk(tree.RootNode())

	return out
}

func syntaxError(node *ts.Node, src []byte) string {
	text := node.Utf8Text(src)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	if text == "" {
		return "syntax error"
	}
	return fmt.Sprintf("syntax error near %q", text)
}
