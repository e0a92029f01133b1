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

// Package output renders run reports for minnow CLI commands.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"bennypowers.dev/minnow/diag"
	"bennypowers.dev/minnow/fs"
	"bennypowers.dev/minnow/pipeline"
)

// Formats lists the supported report formats.
var Formats = []string{"text", "json", "yaml"}

// Report is everything a command reports about one run.
type Report struct {
	Command     string            `json:"command" yaml:"command"`
	Outcome     pipeline.Outcome  `json:"outcome" yaml:"outcome"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Render formats r as text, json or yaml.
func Render(r Report, format string) (string, error) {
	switch format {
	case "", "text":
		return renderText(r), nil
	case "json":
		out, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return "", fmt.Errorf("error marshaling report: %w", err)
		}
		return string(out), nil
	case "yaml":
		out, err := yaml.Marshal(r)
		if err != nil {
			return "", fmt.Errorf("error marshaling report: %w", err)
		}
		return strings.TrimSuffix(string(out), "\n"), nil
	default:
		return "", fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(Formats, ", "))
	}
}

func renderText(r Report) string {
	var b strings.Builder
	o := r.Outcome
	fmt.Fprintf(&b, "minnow %s run %s\n", r.Command, o.RunID)
	for _, f := range o.Stats.Files {
		fmt.Fprintln(&b, f.String())
	}
	for _, a := range o.Stats.Aggregates {
		fmt.Fprintln(&b, a.String())
	}
	if o.Stats.Totals.InBytes > 0 {
		fmt.Fprintln(&b, o.Stats.Totals.String())
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(&b, "[%s] %s\n", d.Severity, diag.Format(d))
	}
	fmt.Fprintf(&b, "Warnings: %d, Errors: %d, File errors: %d, Aggregate errors: %d",
		o.Warnings, o.Errors, o.FileErrors, o.AggregateErrors)
	if o.Failed {
		b.WriteString("\nFAILED")
	}
	return b.String()
}

// Write renders r and writes it to the file named by viper's "output" key,
// or to stdout when that is empty.
func Write(osfs fs.FileSystem, stdout io.Writer, r Report, format string) error {
	out, err := Render(r, format)
	if err != nil {
		return err
	}
	if outputPath := viper.GetString("output"); outputPath != "" {
		return osfs.WriteFile(outputPath, []byte(out+"\n"), 0644)
	}
	_, err = fmt.Fprintln(stdout, out)
	return err
}
