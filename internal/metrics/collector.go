package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/torosent/pagebench/internal/failure"
)

// minSampleMs floors samples entering the geomean at one microsecond, so a
// suite too fast to measure cannot zero the product.
const minSampleMs = 0.001

// Collector records per-suite, per-iteration outcomes in a thread-safe manner.
type Collector struct {
	mu         sync.Mutex
	iterations int
	order      []string
	series     map[string]*series
}

type series struct {
	values      []float64
	byIteration map[int]float64
	failures    []Failure
}

// NewCollector prepares a collector for suites, in report order, over the
// given number of iterations.
func NewCollector(suites []string, iterations int) *Collector {
	c := &Collector{
		iterations: iterations,
		order:      append([]string(nil), suites...),
		series:     make(map[string]*series, len(suites)),
	}
	for _, name := range suites {
		c.series[name] = &series{byIteration: make(map[int]float64)}
	}
	return c
}

func (c *Collector) lookup(suite string) (*series, error) {
	s, ok := c.series[suite]
	if !ok {
		return nil, fmt.Errorf("suite %q is not being collected", suite)
	}
	return s, nil
}

// RecordSuccess appends a timed iteration.
func (c *Collector) RecordSuccess(suite string, iteration int, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.lookup(suite)
	if err != nil {
		return err
	}
	ms := float64(d) / float64(time.Millisecond)
	s.values = append(s.values, ms)
	s.byIteration[iteration] = ms
	return nil
}

// RecordFailure records a failed iteration. It contributes no value.
func (c *Collector) RecordFailure(suite string, iteration int, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, lookupErr := c.lookup(suite)
	if lookupErr != nil {
		return lookupErr
	}
	s.failures = append(s.failures, FailureFrom(iteration, err))
	return nil
}

// Suite returns the current metric for one suite.
func (c *Collector) Suite(name string) (Metric, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.series[name]
	if !ok {
		return Metric{}, false
	}
	return suiteMetric(name, s), true
}

// IterationGeomean computes the geomean over suites that succeeded in
// iteration i. It fails when none did.
func (c *Collector) IterationGeomean(i int) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.iterationGeomean(i)
}

func (c *Collector) iterationGeomean(i int) (float64, error) {
	vals := make([]float64, 0, len(c.order))
	for _, name := range c.order {
		if v, ok := c.series[name].byIteration[i]; ok {
			vals = append(vals, math.Max(v, minSampleMs))
		}
	}
	if len(vals) == 0 {
		return 0, &failure.AggregationError{Iteration: i, Reason: "no suite completed this iteration"}
	}
	return stat.GeometricMean(vals, nil), nil
}

// Aggregate reduces the collected samples into a Report.
func (c *Collector) Aggregate() (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.order) == 0 {
		return nil, &failure.AggregationError{Iteration: -1, Reason: "no eligible suites"}
	}

	report := &Report{Iterations: c.iterations}
	for _, name := range c.order {
		report.Suites = append(report.Suites, suiteMetric(name, c.series[name]))
	}

	geo := make([]float64, 0, c.iterations)
	score := make([]float64, 0, c.iterations)
	var empty []int
	for i := 0; i < c.iterations; i++ {
		g, err := c.iterationGeomean(i)
		if err != nil {
			empty = append(empty, i)
			continue
		}
		geo = append(geo, g)
		score = append(score, ScoreOf(g))
	}
	if len(empty) > 0 {
		labels := make([]string, len(empty))
		for i, it := range empty {
			labels[i] = strconv.Itoa(it)
		}
		return nil, &failure.AggregationError{
			Iteration: empty[0],
			Reason:    "no suite completed iteration(s) " + strings.Join(labels, ", "),
		}
	}
	report.Geomean = derivedMetric(GeomeanName, geo)
	report.Score = derivedMetric(ScoreName, score)

	if !(report.Geomean.Mean > 0) || !(report.Score.Mean > 0) || math.IsInf(report.Score.Mean, 0) {
		return nil, &failure.AggregationError{Iteration: -1, Reason: "geomean and score must be positive"}
	}
	return report, nil
}

func suiteMetric(name string, s *series) Metric {
	m := Metric{
		Name:     name,
		Values:   append([]float64{}, s.values...),
		Failures: append([]Failure(nil), s.failures...),
	}
	if len(m.Values) > 0 {
		m.Mean = stat.Mean(m.Values, nil)
		m.Summary = summarize(m.Values)
	}
	return m
}

func derivedMetric(name string, values []float64) Metric {
	return Metric{
		Name:    name,
		Mean:    stat.Mean(values, nil),
		Values:  values,
		Summary: summarize(values),
	}
}

// summarize computes min, max and empirical quantiles from a sorted copy of
// values. Suite and Geomean values are milliseconds while Score is runs per
// minute, so no fixed-range histogram fits every series.
func summarize(values []float64) *Summary {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := &Summary{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:   stat.Quantile(0.9, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		sum.StdDev = stat.StdDev(values, nil)
	}
	return sum
}
