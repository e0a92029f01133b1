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
package stats

import (
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Diagnostics are the run's warning and error counts.
type Diagnostics struct {
	Warnings int
	Errors   int
}

// Registry builds a Prometheus registry holding gauges for s and d.
func Registry(s Summary, d Diagnostics) *prom.Registry {
	reg := prom.NewRegistry()

	inBytes := prom.NewGauge(prom.GaugeOpts{
		Namespace: "minnow",
		Name:      "input_bytes",
		Help:      "Total bytes read from processed source files",
	})
	outBytes := prom.NewGauge(prom.GaugeOpts{
		Namespace: "minnow",
		Name:      "output_bytes",
		Help:      "Total bytes written to processed outputs",
	})
	files := prom.NewGauge(prom.GaugeOpts{
		Namespace: "minnow",
		Name:      "files_processed",
		Help:      "Number of files transformed and committed",
	})
	aggregates := prom.NewGauge(prom.GaugeOpts{
		Namespace: "minnow",
		Name:      "aggregates",
		Help:      "Number of aggregation outputs written",
	})
	diagnostics := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "minnow",
		Name:      "diagnostics",
		Help:      "Diagnostics reported by transforms, by severity",
	}, []string{"severity"})

	reg.MustRegister(inBytes, outBytes, files, aggregates, diagnostics)

	inBytes.Set(float64(s.Totals.InBytes))
	outBytes.Set(float64(s.Totals.OutBytes))
	files.Set(float64(s.Totals.Files))
	aggregates.Set(float64(s.Totals.Aggregates))
	diagnostics.WithLabelValues("warning").Set(float64(d.Warnings))
	diagnostics.WithLabelValues("error").Set(float64(d.Errors))

	return reg
}

// Export writes s and d to path in the Prometheus textfile format.
func Export(path string, s Summary, d Diagnostics) error {
	if err := prom.WriteToTextfile(path, Registry(s, d)); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
