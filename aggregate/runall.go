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
package aggregate

import (
	"context"
	"errors"

	"bennypowers.dev/minnow/finalize"
	"bennypowers.dev/minnow/stats"
)

// WithFinalizer makes RunAll write compressed sidecars of each output.
func (a *Aggregator) WithFinalizer(f *finalize.Finalizer) *Aggregator {
	a.finalizer = f
	return a
}

// WithStats makes RunAll record and log each output's statistics.
func (a *Aggregator) WithStats(c *stats.Collector) *Aggregator {
	a.stats = c
	return a
}

// RunAll runs specs strictly in declared order, threading the set of files
// each one consumed into the next. A failing spec does not stop the others;
// all failures are returned joined.
func (a *Aggregator) RunAll(ctx context.Context, specs []Spec) error {
	included := make(Included)
	var errs []error

	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		a.logger.Info("Generating aggregation", "output", spec.Output)
		files, err := a.Run(spec, included)
		if err != nil {
			a.logger.Error("Aggregation failed", "output", spec.Output, "error", err)
			errs = append(errs, err)
			continue
		}
		included.Add(files...)
		a.record(spec, files)
	}

	return errors.Join(errs...)
}

func (a *Aggregator) record(spec Spec, files FileSet) {
	rec := stats.AggregateRecord{Output: spec.Output, Inputs: len(files)}
	if info, err := a.fs.Stat(spec.Output); err == nil {
		rec.Created = true
		rec.Size = info.Size()
	}

	if rec.Created && len(files) > 0 && a.finalizer != nil {
		sidecars, err := a.finalizer.Sidecars(spec.Output)
		if err != nil {
			a.logger.Warn("Could not create compressed aggregate", "output", spec.Output, "error", err)
		}
		for _, sc := range sidecars {
			rec.Sidecars = append(rec.Sidecars, stats.SidecarRecord{Path: sc.Path, Size: sc.Size})
		}
	}

	if a.stats == nil {
		return
	}
	a.stats.AddAggregate(rec)
	if rec.Created {
		a.logger.Info(rec.String())
	} else {
		a.logger.Warn(rec.String())
	}
}
