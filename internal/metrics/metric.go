package metrics

import (
	"errors"

	"github.com/torosent/pagebench/internal/failure"
)

// Names of the synthesized metrics.
const (
	GeomeanName = "Geomean"
	ScoreName   = "Score"
)

// ScoreScale converts a geomean in milliseconds into runs per minute.
const ScoreScale = 60000.0

// ScoreOf maps a geomean in milliseconds to a score. It is positive for any
// positive geomean and strictly decreasing in it.
func ScoreOf(geomeanMs float64) float64 {
	return ScoreScale / geomeanMs
}

// Metric is one entry of the result mapping. Values hold milliseconds for
// suites and Geomean, and runs per minute for Score.
type Metric struct {
	Name     string    `json:"name"`
	Mean     float64   `json:"mean"`
	Values   []float64 `json:"values"`
	Failures []Failure `json:"failures,omitempty"`
	Summary  *Summary  `json:"summary,omitempty"`
}

// Degraded reports whether any iteration of the metric failed.
func (m Metric) Degraded() bool { return len(m.Failures) > 0 }

// Failure records one failed suite iteration.
type Failure struct {
	Iteration int          `json:"iteration"`
	Kind      failure.Kind `json:"kind"`
	Step      string       `json:"step,omitempty"`
	Message   string       `json:"message"`
}

// FailureFrom classifies err for the report.
func FailureFrom(iteration int, err error) Failure {
	f := Failure{Iteration: iteration, Kind: failure.KindOf(err), Message: err.Error()}
	var stepErr *failure.StepExecutionError
	if errors.As(err, &stepErr) {
		f.Step = stepErr.Step
		if stepErr.Message != "" {
			f.Message = stepErr.Message
		} else if stepErr.Cause != nil {
			f.Message = stepErr.Cause.Error()
		}
	}
	if f.Kind == failure.KindNone {
		f.Kind = failure.KindStepExecution
	}
	return f
}

// Summary describes the spread of a metric's values.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	StdDev float64 `json:"stddev"`
}
