// Package suite models the timed units of work a page exposes: steps grouped
// into named suites, kept in a registry keyed by suite name.
package suite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/torosent/pagebench/internal/failure"
)

// Kind tells whether a step body completes synchronously or awaits work.
type Kind string

const (
	KindSync  Kind = "sync"
	KindAsync Kind = "async"
)

// Step is the smallest timed unit of work.
type Step struct {
	Name   string
	Kind   Kind
	Body   func(ctx context.Context) error
	Warmup bool
}

// NewStep wraps a synchronous body.
func NewStep(name string, body func()) Step {
	return Step{
		Name: name,
		Kind: KindSync,
		Body: func(context.Context) error {
			body()
			return nil
		},
	}
}

// NewAsyncStep wraps a body that blocks until its asynchronous work resolves.
func NewAsyncStep(name string, body func(ctx context.Context) error) Step {
	return Step{Name: name, Kind: KindAsync, Body: body}
}

// AsWarmup returns a copy of s that runs but is excluded from timing.
func (s Step) AsWarmup() Step {
	s.Warmup = true
	return s
}

// StepTiming is the measured cost of one step.
type StepTiming struct {
	Name     string
	Duration time.Duration
	Warmup   bool
}

// Timing is the outcome of one timed suite execution.
type Timing struct {
	Total time.Duration
	Steps []StepTiming
}

// Suite is an ordered, named collection of steps. Tags are announced to the
// host when the page becomes ready.
type Suite struct {
	Name  string
	Steps []Step
	Tags  []string
	Async bool

	// Barrier forces pending page work (layout, queued callbacks) to settle.
	// It runs once before the timing window opens and once inside it, after
	// the last step.
	Barrier func()
}

// New creates a synchronous suite.
func New(name string, steps ...Step) *Suite {
	return &Suite{Name: name, Steps: steps}
}

// NewAsync creates a suite whose steps are awaited one after another.
func NewAsync(name string, steps ...Step) *Suite {
	return &Suite{Name: name, Steps: steps, Async: true}
}

// WithTags returns s after setting its tags.
func (s *Suite) WithTags(tags ...string) *Suite {
	s.Tags = append([]string(nil), tags...)
	return s
}

// WithBarrier returns s after installing a layout barrier.
func (s *Suite) WithBarrier(barrier func()) *Suite {
	s.Barrier = barrier
	return s
}

// Validate checks the suite is runnable.
func (s *Suite) Validate() error {
	var issues []string
	if strings.TrimSpace(s.Name) == "" {
		issues = append(issues, "suite name is required")
	}
	if len(s.Steps) == 0 {
		issues = append(issues, fmt.Sprintf("suite %q has no steps", s.Name))
	}
	timed := 0
	for i, st := range s.Steps {
		if !st.Warmup {
			timed++
		}
		if st.Body == nil {
			issues = append(issues, fmt.Sprintf("suite %q step[%d] %q has no body", s.Name, i, st.Name))
		}
		if !s.Async && st.Kind == KindAsync {
			issues = append(issues, fmt.Sprintf("suite %q is synchronous but step %q is async", s.Name, st.Name))
		}
	}
	if len(s.Steps) > 0 && timed == 0 {
		issues = append(issues, fmt.Sprintf("suite %q has only warmup steps", s.Name))
	}
	if len(issues) > 0 {
		return failure.NewConfigurationError(issues...)
	}
	return nil
}

// Run executes every step in declaration order, each completing before the
// next begins. Warmup steps execute but are left out of Total. Total spans
// from the first timed step's start to the last step's completion, including
// the trailing barrier.
func (s *Suite) Run(ctx context.Context) (Timing, error) {
	if s.Barrier != nil {
		s.Barrier()
	}

	timing := Timing{Steps: make([]StepTiming, 0, len(s.Steps))}
	var windowStart time.Time
	for _, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return timing, err
		}
		start := time.Now()
		if !st.Warmup && windowStart.IsZero() {
			windowStart = start
		}
		err := runStep(ctx, st)
		elapsed := time.Since(start)
		timing.Steps = append(timing.Steps, StepTiming{Name: st.Name, Duration: elapsed, Warmup: st.Warmup})
		if err != nil {
			return timing, &failure.StepExecutionError{Suite: s.Name, Step: st.Name, Cause: err}
		}
	}

	if s.Barrier != nil {
		s.Barrier()
	}
	if !windowStart.IsZero() {
		timing.Total = time.Since(windowStart) - warmupInside(timing.Steps)
	}
	return timing, nil
}

// warmupInside sums warmup steps that ran after the window opened.
func warmupInside(steps []StepTiming) time.Duration {
	var total time.Duration
	opened := false
	for _, st := range steps {
		if !st.Warmup {
			opened = true
			continue
		}
		if opened {
			total += st.Duration
		}
	}
	return total
}

// ErrPanic marks a step body that panicked.
var ErrPanic = errors.New("step panicked")

func runStep(ctx context.Context, st Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return st.Body(ctx)
}
