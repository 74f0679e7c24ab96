package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/torosent/pagebench/internal/metrics"
	"github.com/torosent/pagebench/internal/runner"
)

// ProgressReporter displays a live progress line while a run executes. It is
// a runner.Observer.
type ProgressReporter struct {
	runner.NopObserver

	mu         sync.Mutex
	writer     io.Writer
	iterations int
	suites     int
	done       int
	failures   int
	last       string
	start      time.Time
}

var _ runner.Observer = (*ProgressReporter)(nil)

// NewProgressReporter creates a progress reporter for a run of iterations
// passes. The suite count arrives with the run's start event.
func NewProgressReporter(writer io.Writer, iterations int) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		writer:     writer,
		iterations: iterations,
		start:      time.Now(),
	}
}

// OnStart records the selection and restarts the clock.
func (p *ProgressReporter) OnStart(_ string, suites []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suites = len(suites)
	p.start = time.Now()
}

// OnSuiteComplete redraws the progress line.
func (p *ProgressReporter) OnSuiteComplete(ev runner.SuiteEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	if ev.Err != nil {
		p.failures++
		p.last = fmt.Sprintf("%s failed", ev.Suite)
	} else {
		p.last = fmt.Sprintf("%s %.1fms (mean %.1fms)", ev.Suite, float64(ev.Duration.Microseconds())/1000, ev.Mean)
	}
	p.draw(ev.Iteration)
}

// OnDone terminates the progress line.
func (p *ProgressReporter) OnDone(*metrics.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done > 0 {
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) draw(iteration int) {
	total := p.suites * p.iterations
	line := fmt.Sprintf("\rIteration %d/%d | Suites: %d/%d | Failures: %d | Elapsed: %s",
		iteration+1, p.iterations, p.done, total, p.failures, time.Since(p.start).Round(time.Millisecond))
	if p.last != "" {
		line += " | Last: " + p.last
	}
	fmt.Fprint(p.writer, line)
}
