package metrics

import (
	"encoding/json"
	"sort"
)

// Report is the outcome of a whole run.
type Report struct {
	RunID      string   `json:"run_id,omitempty"`
	Iterations int      `json:"iterations"`
	Suites     []Metric `json:"suites"`
	Geomean    Metric   `json:"geomean"`
	Score      Metric   `json:"score"`
	// Excluded lists catalog suites left out by selection. They have no
	// metric at all.
	Excluded []string `json:"excluded,omitempty"`
}

// Metrics returns the result mapping: one entry per executed suite plus
// Geomean and Score.
func (r *Report) Metrics() map[string]Metric {
	out := make(map[string]Metric, len(r.Suites)+2)
	for _, m := range r.Suites {
		out[m.Name] = m
	}
	out[GeomeanName] = r.Geomean
	out[ScoreName] = r.Score
	return out
}

// MarshalMetrics encodes the result mapping.
func (r *Report) MarshalMetrics() ([]byte, error) {
	return json.MarshalIndent(r.Metrics(), "", "  ")
}

// Lookup finds a metric by name, including Geomean and Score.
func (r *Report) Lookup(name string) (Metric, bool) {
	m, ok := r.Metrics()[name]
	return m, ok
}

// SortedSuites returns suite metrics ordered by name.
func (r *Report) SortedSuites() []Metric {
	out := append([]Metric(nil), r.Suites...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Degraded returns suites with at least one failed iteration.
func (r *Report) Degraded() []Metric {
	var out []Metric
	for _, m := range r.Suites {
		if m.Degraded() {
			out = append(out, m)
		}
	}
	return out
}

// FailureCount totals failed iterations across suites.
func (r *Report) FailureCount() int {
	n := 0
	for _, m := range r.Suites {
		n += len(m.Failures)
	}
	return n
}
