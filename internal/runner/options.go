package runner

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/pagebench/internal/catalog"
	"github.com/torosent/pagebench/internal/config"
)

// Options configure the Runner.
type Options struct {
	Run            config.RunConfig     // benchmark parameters (required)
	Catalog        *catalog.Catalog     // suites to choose from (required)
	Launcher       Launcher             // opens pages (defaults to in-process workloads)
	Timeout        time.Duration        // bound on one suite round trip (0 means unbounded)
	ReadyTimeout   time.Duration        // bound on a page announcing readiness
	Cooldown       time.Duration        // minimum spacing between suite dispatches
	FailurePolicy  config.FailurePolicy // cost of a failed suite iteration
	Observer       Observer
	Logger         *zap.Logger
	Tracer         trace.Tracer
	Propagate      bool                                    // send trace context to pages
	LimiterFactory func(every time.Duration) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Run.IterationCount <= 0 {
		o.Run.IterationCount = 1
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = 30 * time.Second
	}
	if o.Timeout < 0 {
		o.Timeout = 0
	}
	if o.FailurePolicy == "" {
		o.FailurePolicy = config.PolicyIteration
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("runner")
	}
	if o.Launcher == nil {
		o.Launcher = InProcess{Logger: o.Logger, Tracer: o.Tracer}
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(every time.Duration) *rate.Limiter {
			if every <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one: the first dispatch goes immediately, later ones
			// are spaced by at least every.
			return rate.NewLimiter(rate.Every(every), 1)
		}
	}
}
