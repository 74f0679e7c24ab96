// Package workload holds the demo pages shipped with pagebench. Each page is
// an Entry that declares its suites on the connector it is handed.
package workload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/torosent/pagebench/internal/connector"
	"github.com/torosent/pagebench/internal/protocol"
	"github.com/torosent/pagebench/internal/shuffle"
	"github.com/torosent/pagebench/internal/suite"
)

// Entry is a page's entry point.
type Entry func(c *connector.Connector) error

var entries = map[string]Entry{
	"empty":       Empty,
	"sort":        Sort,
	"async-fetch": AsyncFetch,
	"throws":      Throws,
}

// Lookup returns the entry registered under name.
func Lookup(name string) (Entry, bool) {
	e, ok := entries[name]
	return e, ok
}

// Names lists the built-in workloads, sorted.
func Names() []string {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Empty measures harness overhead: a no-op step and a single DOM append.
func Empty(c *connector.Connector) error {
	doc := NewDocument()
	return c.Register(suite.New(protocol.DefaultSuiteName,
		suite.NewStep("Nop", func() {}),
		suite.NewStep("AppendParagraph", func() { doc.Append("Hello world") }),
	).WithBarrier(doc.Layout).WithTags("empty"))
}

const sortSize = 20000

// Sort times CPU-bound sorting of a fixed pseudo-random input.
func Sort(c *connector.Connector) error {
	gen := shuffle.NewGenerator(7)
	input := make([]float64, sortSize)
	for i := range input {
		input[i] = gen.Next()
	}
	words := make([]string, sortSize/4)
	for i := range words {
		words[i] = strconv.FormatFloat(input[i], 'f', 8, 64)
	}

	doc := NewDocument()
	var work []float64
	var wordWork []string
	return c.Register(
		suite.New(protocol.DefaultSuiteName,
			suite.NewStep("Prepare", func() { work = append(work[:0], input...) }).AsWarmup(),
			suite.NewStep("SortFloats", func() { sort.Float64s(work) }),
			suite.NewStep("Render", func() {
				doc.Clear()
				doc.Append(fmt.Sprintf("min=%g max=%g", work[0], work[len(work)-1]))
			}),
		).WithBarrier(doc.Layout).WithTags("wasm", "cpu"),
		suite.New("strings",
			suite.NewStep("Prepare", func() { wordWork = append(wordWork[:0], words...) }).AsWarmup(),
			suite.NewStep("SortStrings", func() { sort.Strings(wordWork) }),
		).WithTags("wasm", "cpu"),
	)
}

// AsyncFetch awaits simulated network responses then parses them.
func AsyncFetch(c *connector.Connector) error {
	doc := NewDocument()
	var payloads []string
	return c.Register(suite.NewAsync(protocol.DefaultSuiteName,
		suite.NewAsyncStep("Fetch", func(ctx context.Context) error {
			payloads = payloads[:0]
			for i := 0; i < 4; i++ {
				timer := time.NewTimer(time.Millisecond)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				}
				payloads = append(payloads, strconv.Itoa(i*31))
			}
			return nil
		}),
		suite.NewStep("Parse", func() {
			total := 0
			for _, p := range payloads {
				n, _ := strconv.Atoi(p)
				total += n
			}
			doc.Append(strconv.Itoa(total))
		}),
	).WithBarrier(doc.Layout).WithTags("gpu-test-suite"))
}

// ErrThrown is raised by the throws workload.
var ErrThrown = errors.New("workload threw")

// Throws exposes a suite whose only step fails synchronously, plus a healthy
// companion suite.
func Throws(c *connector.Connector) error {
	return c.Register(
		suite.New(protocol.DefaultSuiteName,
			suite.NewStep("Throw", func() { panic(ErrThrown) }),
		),
		suite.New("ok", suite.NewStep("Nop", func() {})),
	)
}
