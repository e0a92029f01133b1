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

// Package diag counts and logs diagnostics reported by transforms.
package diag

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"bennypowers.dev/minnow/source"
)

// Severity of a diagnostic.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diagnostic is one message about a source file.
type Diagnostic struct {
	Severity Severity `json:"severity" yaml:"severity"`
	// Path is the file the diagnostic is about.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// Name is the source name given by the transform, if any.
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	Line       int    `json:"line" yaml:"line"`
	Column     int    `json:"column" yaml:"column"`
	Message    string `json:"message" yaml:"message"`
	LineSource string `json:"lineSource,omitempty" yaml:"lineSource,omitempty"`
}

// Sink receives diagnostics.
type Sink interface {
	Report(d Diagnostic)
}

// Format renders d as "name:line L:column C:message", followed by the
// offending source line on its own indented line. Without a name there is
// no location prefix.
func Format(d Diagnostic) string {
	var b strings.Builder

	name := strings.TrimSpace(d.Name)
	if name == "" && d.Path != "" {
		name = source.ShortName(d.Path)
	}
	if name != "" {
		b.WriteString(name)
		b.WriteString(":line ")
		b.WriteString(strconv.Itoa(d.Line))
		b.WriteString(":column ")
		b.WriteString(strconv.Itoa(d.Column))
		b.WriteByte(':')
	}

	if strings.TrimSpace(d.Message) != "" {
		b.WriteString(d.Message)
	} else {
		b.WriteString("unknown error")
	}

	if strings.TrimSpace(d.LineSource) != "" {
		b.WriteString("\n\t")
		b.WriteString(d.LineSource)
	}
	return b.String()
}

// Reporter counts diagnostics and logs them. It is safe for concurrent use.
type Reporter struct {
	logger         *slog.Logger
	acceptWarnings bool

	mu          sync.Mutex
	warnings    int
	errors      int
	diagnostics []Diagnostic
}

// NewReporter creates a Reporter. Warnings are dropped unless acceptWarnings
// is set.
func NewReporter(logger *slog.Logger, acceptWarnings bool) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{logger: logger, acceptWarnings: acceptWarnings}
}

// Report implements Sink.
func (r *Reporter) Report(d Diagnostic) {
	if d.Severity == Warning && !r.acceptWarnings {
		return
	}

	r.mu.Lock()
	if d.Severity == Error {
		r.errors++
	} else {
		r.warnings++
	}
	r.diagnostics = append(r.diagnostics, d)
	r.mu.Unlock()

	msg := Format(d)
	if d.Severity == Error {
		r.logger.Error(msg, "path", d.Path, "line", d.Line, "column", d.Column)
	} else {
		r.logger.Warn(msg, "path", d.Path, "line", d.Line, "column", d.Column)
	}
}

// Notice records d for the report and logs it at info level. It is not
// counted as a warning or error, so it never fails a run.
func (r *Reporter) Notice(d Diagnostic) {
	r.mu.Lock()
	r.diagnostics = append(r.diagnostics, d)
	r.mu.Unlock()

	r.logger.Info(Format(d))
}

// Warnings returns the number of accepted warnings.
func (r *Reporter) Warnings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warnings
}

// Errors returns the number of errors.
func (r *Reporter) Errors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}

// Diagnostics returns everything reported, in report order.
func (r *Reporter) Diagnostics() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.diagnostics)
}

// Failed applies the run-level policy: warnings fail the run when
// failOnWarning is set, errors when failOnError is set.
func (r *Reporter) Failed(failOnWarning, failOnError bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (failOnWarning && r.warnings > 0) || (failOnError && r.errors > 0)
}
