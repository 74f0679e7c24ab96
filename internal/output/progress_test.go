package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/torosent/pagebench/internal/runner"
)

func TestProgressReporter(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf, 3)
	p.OnStart("run", []string{"Sort-Floats-wasm", "Async-Fetch-gpu"})

	p.OnSuiteComplete(runner.SuiteEvent{Suite: "Sort-Floats-wasm", Iteration: 0, Duration: 12500 * time.Microsecond, Mean: 11.24})
	if got := buf.String(); !strings.Contains(got, "Iteration 1/3 | Suites: 1/6 | Failures: 0") || !strings.Contains(got, "Last: Sort-Floats-wasm 12.5ms (mean 11.2ms)") {
		t.Errorf("first line = %q", got)
	}

	buf.Reset()
	p.OnSuiteComplete(runner.SuiteEvent{Suite: "Async-Fetch-gpu", Iteration: 1, Err: errors.New("boom")})
	got := buf.String()
	if !strings.HasPrefix(got, "\r") {
		t.Errorf("progress line should redraw in place: %q", got)
	}
	if !strings.Contains(got, "Iteration 2/3 | Suites: 2/6 | Failures: 1") || !strings.Contains(got, "Async-Fetch-gpu failed") {
		t.Errorf("second line = %q", got)
	}

	buf.Reset()
	p.OnDone(nil, nil)
	if buf.String() != "\n" {
		t.Errorf("OnDone wrote %q", buf.String())
	}
}

func TestProgressReporterQuietUntilFirstSuite(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressReporter(&buf, 1)
	p.OnReady("inprocess:empty", []string{"default"})
	p.OnDone(nil, errors.New("failed early"))
	if buf.Len() != 0 {
		t.Errorf("wrote %q", buf.String())
	}
}

func TestProgressReporterNilWriter(t *testing.T) {
	p := NewProgressReporter(nil, 1)
	p.OnSuiteComplete(runner.SuiteEvent{Suite: "Empty-Connector"})
	p.OnDone(nil, nil)
}
