package output

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/torosent/pagebench/internal/metrics"
)

// runMetrics holds the gauges exported for one run.
type runMetrics struct {
	SuiteMean     *prometheus.GaugeVec
	SuiteFailures *prometheus.GaugeVec
	Geomean       prometheus.Gauge
	Score         prometheus.Gauge
	Iterations    prometheus.Gauge
}

func newRunMetrics(reg prometheus.Registerer) *runMetrics {
	f := promauto.With(reg)
	return &runMetrics{
		SuiteMean: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pagebench_suite_mean_milliseconds",
				Help: "Mean suite duration over successful iterations",
			},
			[]string{"suite"},
		),
		SuiteFailures: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pagebench_suite_failed_iterations",
				Help: "Failed suite iterations by failure kind",
			},
			[]string{"suite", "kind"},
		),
		Geomean: f.NewGauge(prometheus.GaugeOpts{
			Name: "pagebench_geomean_milliseconds",
			Help: "Mean of the per-iteration geometric mean of suite durations",
		}),
		Score: f.NewGauge(prometheus.GaugeOpts{
			Name: "pagebench_score",
			Help: "Benchmark score in runs per minute",
		}),
		Iterations: f.NewGauge(prometheus.GaugeOpts{
			Name: "pagebench_iterations",
			Help: "Iterations executed",
		}),
	}
}

func (m *runMetrics) observe(report *metrics.Report) {
	m.Geomean.Set(report.Geomean.Mean)
	m.Score.Set(report.Score.Mean)
	m.Iterations.Set(float64(report.Iterations))
	for _, s := range report.Suites {
		if len(s.Values) > 0 {
			m.SuiteMean.WithLabelValues(s.Name).Set(s.Mean)
		}
		for _, f := range s.Failures {
			m.SuiteFailures.WithLabelValues(s.Name, string(f.Kind)).Inc()
		}
	}
}

// WriteMetricsFile writes the report in the Prometheus text exposition format
// for the node exporter textfile collector. The file is replaced atomically.
func WriteMetricsFile(path string, report *metrics.Report) error {
	reg := prometheus.NewRegistry()
	newRunMetrics(reg).observe(report)
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
