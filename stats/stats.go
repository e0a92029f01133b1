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

// Package stats accumulates byte counts and size ratios for a run.
package stats

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Ratio returns after as a percentage of before, flooring, with both sides
// clamped to at least one byte.
func Ratio(before, after int64) int64 {
	return max(after, 1) * 100 / max(before, 1)
}

// SidecarRecord is a compressed companion of an output.
type SidecarRecord struct {
	Path string `json:"path" yaml:"path"`
	Size int64  `json:"size" yaml:"size"`
}

// FileRecord describes one processed file.
type FileRecord struct {
	Source       string          `json:"source" yaml:"source"`
	Dest         string          `json:"dest" yaml:"dest"`
	InSize       int64           `json:"inSize" yaml:"inSize"`
	OutSize      int64           `json:"outSize" yaml:"outSize"`
	UsedOriginal bool            `json:"usedOriginal,omitempty" yaml:"usedOriginal,omitempty"`
	Sidecars     []SidecarRecord `json:"sidecars,omitempty" yaml:"sidecars,omitempty"`
}

// Ratio is the output size as a percentage of the input size.
func (r FileRecord) Ratio() int64 {
	return Ratio(r.InSize, r.OutSize)
}

func (r FileRecord) String() string {
	var b strings.Builder
	if r.UsedOriginal {
		fmt.Fprintf(&b, "%s (%db) -> %s (%db) [original used - compressed was larger]",
			filepath.Base(r.Source), r.InSize, filepath.Base(r.Dest), r.OutSize)
	} else {
		fmt.Fprintf(&b, "%s (%db) -> %s (%db) [%d%%]",
			filepath.Base(r.Source), r.InSize, filepath.Base(r.Dest), r.OutSize, r.Ratio())
	}
	for _, sc := range r.Sidecars {
		fmt.Fprintf(&b, " -> %s (%db) [%d%%]", filepath.Base(sc.Path), sc.Size, Ratio(r.InSize, sc.Size))
	}
	return b.String()
}

// AggregateRecord describes one aggregation output.
type AggregateRecord struct {
	Output   string          `json:"output" yaml:"output"`
	Inputs   int             `json:"inputs" yaml:"inputs"`
	Created  bool            `json:"created" yaml:"created"`
	Size     int64           `json:"size" yaml:"size"`
	Sidecars []SidecarRecord `json:"sidecars,omitempty" yaml:"sidecars,omitempty"`
}

func (r AggregateRecord) String() string {
	name := filepath.Base(r.Output)
	if !r.Created {
		return name + " not created"
	}
	if len(r.Sidecars) == 0 {
		return fmt.Sprintf("%s (%db)", name, r.Size)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%db)", name, r.Size)
	for _, sc := range r.Sidecars {
		fmt.Fprintf(&b, " -> %s (%db) [%d%%]", filepath.Base(sc.Path), sc.Size, Ratio(r.Size, sc.Size))
	}
	return b.String()
}

// Totals are run-wide byte counts over processed files.
type Totals struct {
	InBytes    int64 `json:"inBytes" yaml:"inBytes"`
	OutBytes   int64 `json:"outBytes" yaml:"outBytes"`
	Files      int   `json:"files" yaml:"files"`
	Aggregates int   `json:"aggregates" yaml:"aggregates"`
}

// Ratio is total output as a percentage of total input, or zero when
// nothing was read.
func (t Totals) Ratio() int64 {
	if t.InBytes <= 0 {
		return 0
	}
	return t.OutBytes * 100 / t.InBytes
}

func (t Totals) String() string {
	return fmt.Sprintf("Total: input (%db) -> output (%db) [%d%%]", t.InBytes, t.OutBytes, t.Ratio())
}

// Summary is a snapshot of a Collector.
type Summary struct {
	Totals     Totals            `json:"totals" yaml:"totals"`
	Files      []FileRecord      `json:"files,omitempty" yaml:"files,omitempty"`
	Aggregates []AggregateRecord `json:"aggregates,omitempty" yaml:"aggregates,omitempty"`
}

// Collector accumulates records. It is safe for concurrent use.
type Collector struct {
	mu         sync.Mutex
	totals     Totals
	files      []FileRecord
	aggregates []AggregateRecord
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// AddFile records a processed file and adds it to the totals.
func (c *Collector) AddFile(r FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totals.InBytes += r.InSize
	c.totals.OutBytes += r.OutSize
	c.totals.Files++
	c.files = append(c.files, r)
}

// AddAggregate records an aggregation output.
func (c *Collector) AddAggregate(r AggregateRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.Created {
		c.totals.Aggregates++
	}
	c.aggregates = append(c.aggregates, r)
}

// Totals returns the current totals.
func (c *Collector) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals
}

// Files returns the file records sorted by source path.
func (c *Collector) Files() []FileRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	files := slices.Clone(c.files)
	slices.SortStableFunc(files, func(a, b FileRecord) int {
		return strings.Compare(a.Source, b.Source)
	})
	return files
}

// Aggregates returns the aggregate records in the order they were added.
func (c *Collector) Aggregates() []AggregateRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.aggregates)
}

// Summary returns a snapshot of everything collected.
func (c *Collector) Summary() Summary {
	return Summary{
		Totals:     c.Totals(),
		Files:      c.Files(),
		Aggregates: c.Aggregates(),
	}
}
