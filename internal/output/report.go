// Package output renders run reports: a text summary, the JSON result
// mapping, a standalone HTML page, a live progress line, a Prometheus
// textfile, and an append-only archive of past runs.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/torosent/pagebench/internal/metrics"
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, report *metrics.Report) {
	fmt.Fprintln(w, "\n--- Benchmark Results ---")
	if report.RunID != "" {
		fmt.Fprintf(w, "Run:               %s\n", report.RunID)
	}
	fmt.Fprintf(w, "Iterations:        %d\n", report.Iterations)
	fmt.Fprintf(w, "Suites:            %d\n", len(report.Suites))
	fmt.Fprintf(w, "Failed iterations: %d\n", report.FailureCount())

	fmt.Fprintln(w, "\nSuites (ms):")
	width := nameWidth(report.Suites)
	for _, m := range report.SortedSuites() {
		writeMetricLine(w, m, width)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Geomean:           %.3f ms\n", report.Geomean.Mean)
	fmt.Fprintf(w, "Score:             %.2f runs/min\n", report.Score.Mean)

	if degraded := report.Degraded(); len(degraded) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, m := range degraded {
			fmt.Fprintf(w, "  %s:\n", m.Name)
			for _, f := range m.Failures {
				step := ""
				if f.Step != "" {
					step = " step " + f.Step
				}
				fmt.Fprintf(w, "    iteration %d: %s%s: %s\n", f.Iteration, f.Kind, step, f.Message)
			}
		}
	}

	if len(report.Excluded) > 0 {
		fmt.Fprintf(w, "\nNot selected: %s\n", strings.Join(report.Excluded, ", "))
	}
}

func writeMetricLine(w io.Writer, m metrics.Metric, width int) {
	if len(m.Values) == 0 {
		fmt.Fprintf(w, "  %-*s  no successful iterations (%d failed)\n", width, m.Name, len(m.Failures))
		return
	}
	line := fmt.Sprintf("  %-*s  mean=%.3f", width, m.Name, m.Mean)
	if s := m.Summary; s != nil {
		line += fmt.Sprintf(" min=%.3f p50=%.3f p90=%.3f max=%.3f sd=%.3f", s.Min, s.P50, s.P90, s.Max, s.StdDev)
	}
	if len(m.Failures) > 0 {
		line += fmt.Sprintf(" failed=%d", len(m.Failures))
	}
	fmt.Fprintln(w, line)
}

func nameWidth(ms []metrics.Metric) int {
	width := 0
	for _, m := range ms {
		width = max(width, len(m.Name))
	}
	return width
}

// PrintJSONReport outputs the result mapping: one entry per executed suite
// plus Geomean and Score.
func PrintJSONReport(w io.Writer, report *metrics.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report.Metrics())
}
