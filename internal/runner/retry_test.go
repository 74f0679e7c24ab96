package runner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/torosent/pagebench/internal/catalog"
	"github.com/torosent/pagebench/internal/failure"
	"github.com/torosent/pagebench/internal/protocol"
	"github.com/torosent/pagebench/internal/runner"
)

var remoteSuite = catalog.Suite{Name: "Remote", Type: catalog.TypeRemote, URL: "ws://page.test/bench"}

// flakyLauncher fails the first failures opens with err.
func flakyLauncher(failures int, err error, calls *int) runner.Launcher {
	return runner.LauncherFunc(func(context.Context, catalog.Suite) (protocol.Transport, error) {
		*calls++
		if *calls <= failures {
			return nil, err
		}
		host, _ := protocol.Pipe()
		return host, nil
	})
}

func TestWithRetry(t *testing.T) {
	fast := func(retries int) runner.RetryPolicy {
		p := runner.NewRetryPolicy(retries)
		p.DelayFunc = func(int, error) time.Duration { return time.Millisecond }
		return p
	}
	refused := errors.New("connection refused")

	tests := []struct {
		name      string
		failures  int
		err       error
		policy    runner.RetryPolicy
		wantCalls int
		wantErr   bool
	}{
		{"succeeds first time", 0, nil, fast(2), 1, false},
		{"recovers after retries", 2, refused, fast(2), 3, false},
		{"gives up", 5, refused, fast(2), 3, true},
		{"configuration errors are final", 5, failure.NewConfigurationError("bad url"), fast(3), 1, true},
		{"no retries configured", 1, refused, runner.NewRetryPolicy(0), 1, true},
		{"fixed delay", 1, refused, runner.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			l := runner.WithRetry(flakyLauncher(tt.failures, tt.err, &calls), tt.policy)
			tr, err := l.Open(context.Background(), remoteSuite)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tr != nil {
				_ = tr.Close()
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := runner.RetryPolicy{MaxAttempts: 5, Delay: time.Hour}
	l := runner.WithRetry(runner.LauncherFunc(func(context.Context, catalog.Suite) (protocol.Transport, error) {
		calls++
		cancel()
		return nil, errors.New("refused")
	}), policy)

	_, err := l.Open(ctx, remoteSuite)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}

func TestRetryBackoffIsBounded(t *testing.T) {
	p := runner.NewRetryPolicy(10)
	for attempt, floor := range map[int]time.Duration{1: 100 * time.Millisecond, 3: 400 * time.Millisecond, 10: 5 * time.Second} {
		d := p.DelayFunc(attempt, nil)
		if d < floor || d > floor+floor/2 {
			t.Errorf("attempt %d: delay %s outside [%s, %s]", attempt, d, floor, floor+floor/2)
		}
	}
	if p.ShouldRetry(context.DeadlineExceeded) {
		t.Error("deadline errors must not be retried")
	}
}

func TestWithLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	calls := 0
	l := runner.WithLogging(flakyLauncher(1, errors.New("refused"), &calls), logger)
	if _, err := l.Open(context.Background(), remoteSuite); err == nil {
		t.Fatal("expected first open to fail")
	}
	tr, err := l.Open(context.Background(), remoteSuite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = tr.Close()

	entries := logs.AllUntimed()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel || entries[0].Message != "page launch failed" {
		t.Errorf("first entry = %+v", entries[0].Entry)
	}
	if entries[1].Level != zapcore.DebugLevel || entries[1].ContextMap()["page"] != remoteSuite.URL {
		t.Errorf("second entry = %+v %v", entries[1].Entry, entries[1].ContextMap())
	}
}

func TestRouter(t *testing.T) {
	var got []string
	mark := func(name string) runner.Launcher {
		return runner.LauncherFunc(func(context.Context, catalog.Suite) (protocol.Transport, error) {
			got = append(got, name)
			host, _ := protocol.Pipe()
			return host, nil
		})
	}
	r := runner.Router{InProcess: mark("inprocess"), Remote: mark("remote")}

	for _, s := range []catalog.Suite{
		{Name: "A", Type: catalog.TypeInProcess, Workload: "empty"},
		remoteSuite,
	} {
		if _, err := r.Open(context.Background(), s); err != nil {
			t.Fatalf("Open(%s): %v", s.Name, err)
		}
	}
	if len(got) != 2 || got[0] != "inprocess" || got[1] != "remote" {
		t.Errorf("routed = %v", got)
	}

	_, err := r.Open(context.Background(), catalog.Suite{Name: "B", Type: "carrier-pigeon"})
	if failure.KindOf(err) != failure.KindConfiguration {
		t.Errorf("unknown type err = %v", err)
	}
	_, err = runner.InProcess{}.Open(context.Background(), catalog.Suite{Name: "C", Type: catalog.TypeInProcess, Workload: "nope"})
	if failure.KindOf(err) != failure.KindConfiguration {
		t.Errorf("unknown workload err = %v", err)
	}
}
