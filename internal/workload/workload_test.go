package workload

import (
	"context"
	"errors"
	"testing"

	"github.com/torosent/pagebench/internal/connector"
	"github.com/torosent/pagebench/internal/failure"
	"github.com/torosent/pagebench/internal/protocol"
)

func TestEntriesRegisterDefaultSuite(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			entry, ok := Lookup(name)
			if !ok {
				t.Fatalf("Lookup(%q) failed", name)
			}
			c := connector.New(name, "test", connector.Options{})
			if err := entry(c); err != nil {
				t.Fatalf("entry: %v", err)
			}
			suites := c.Suites()
			if len(suites) == 0 || suites[0] != protocol.DefaultSuiteName {
				t.Fatalf("suites = %v, want %q first", suites, protocol.DefaultSuiteName)
			}
		})
	}
}

func TestHealthyWorkloadsRun(t *testing.T) {
	for _, name := range []string{"empty", "sort", "async-fetch"} {
		t.Run(name, func(t *testing.T) {
			entry, _ := Lookup(name)
			c := connector.New(name, "test", connector.Options{})
			if err := entry(c); err != nil {
				t.Fatal(err)
			}
			for _, suiteName := range c.Suites() {
				req := protocol.NewRequest(c.ID(), suiteName, "r", protocol.RunParams{WarmupBeforeSync: 1})
				resp := c.Handle(context.Background(), req)
				if err := resp.Err(); err != nil {
					t.Fatalf("suite %s failed: %v", suiteName, err)
				}
				if resp.Result.Duration < 0 {
					t.Fatalf("suite %s duration = %v", suiteName, resp.Result.Duration)
				}
			}
		})
	}
}

func TestThrowsWorkloadFails(t *testing.T) {
	c := connector.New("throws", "test", connector.Options{})
	if err := Throws(c); err != nil {
		t.Fatal(err)
	}
	resp := c.Handle(context.Background(), protocol.NewRequest(c.ID(), protocol.DefaultSuiteName, "r", protocol.RunParams{}))
	var stepErr *failure.StepExecutionError
	if !errors.As(resp.Err(), &stepErr) || stepErr.Step != "Throw" {
		t.Fatalf("Err() = %v, want failure in step Throw", resp.Err())
	}

	resp = c.Handle(context.Background(), protocol.NewRequest(c.ID(), "ok", "r", protocol.RunParams{}))
	if resp.Err() != nil {
		t.Fatalf("companion suite failed: %v", resp.Err())
	}
}

func TestDocumentLayoutSettlesPendingWork(t *testing.T) {
	doc := NewDocument()
	doc.Layout()
	if doc.LayoutPasses() != 0 {
		t.Fatal("layout without pending work should be free")
	}
	doc.Append("a")
	doc.Append("b")
	doc.Layout()
	doc.Layout()
	if doc.LayoutPasses() != 1 || doc.Len() != 2 {
		t.Fatalf("passes = %d, len = %d", doc.LayoutPasses(), doc.Len())
	}
	doc.Clear()
	if doc.Len() != 0 {
		t.Fatal("Clear left nodes behind")
	}
}
