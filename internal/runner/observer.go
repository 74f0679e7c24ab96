package runner

import (
	"time"

	"github.com/torosent/pagebench/internal/metrics"
)

// SuiteEvent describes one finished suite iteration. Mean is the suite's
// running mean in milliseconds over its successful iterations so far.
type SuiteEvent struct {
	RunID     string
	Suite     string
	Iteration int
	Duration  time.Duration
	Mean      float64
	Err       error
}

// Observer receives run lifecycle events. OnReady fires per page as it
// connects, OnStart once every page is ready, and OnDone once after
// aggregation. Events are delivered from the goroutine executing Run, in
// order.
type Observer interface {
	OnReady(page string, suites []string)
	OnStart(runID string, suites []string)
	OnSuiteComplete(ev SuiteEvent)
	OnIterationComplete(iteration int, geomean float64, err error)
	OnDone(report *metrics.Report, err error)
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) OnReady(string, []string) {}
func (NopObserver) OnStart(string, []string) {}
func (NopObserver) OnSuiteComplete(SuiteEvent) {}
func (NopObserver) OnIterationComplete(int, float64, error) {}
func (NopObserver) OnDone(*metrics.Report, error) {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) OnReady(page string, suites []string) {
	for _, obs := range o {
		obs.OnReady(page, suites)
	}
}

func (o Observers) OnStart(runID string, suites []string) {
	for _, obs := range o {
		obs.OnStart(runID, suites)
	}
}

func (o Observers) OnSuiteComplete(ev SuiteEvent) {
	for _, obs := range o {
		obs.OnSuiteComplete(ev)
	}
}

func (o Observers) OnIterationComplete(iteration int, geomean float64, err error) {
	for _, obs := range o {
		obs.OnIterationComplete(iteration, geomean, err)
	}
}

func (o Observers) OnDone(report *metrics.Report, err error) {
	for _, obs := range o {
		obs.OnDone(report, err)
	}
}
