package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/pagebench/internal/catalog"
	"github.com/torosent/pagebench/internal/config"
	"github.com/torosent/pagebench/internal/failure"
	"github.com/torosent/pagebench/internal/metrics"
	"github.com/torosent/pagebench/internal/pool"
	"github.com/torosent/pagebench/internal/protocol"
	"github.com/torosent/pagebench/internal/shuffle"
	"github.com/torosent/pagebench/internal/tracing"
)

// Runner drives benchmark runs.
type Runner struct {
	opt Options
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt}
}

// Run selects suites, executes the configured number of passes over them, and
// aggregates the timings. A non-nil error means the run produced no report.
func (r *Runner) Run(ctx context.Context) (*metrics.Report, error) {
	report, err := r.run(ctx)
	r.opt.Observer.OnDone(report, err)
	return report, err
}

// execution is the state of one Run call.
type execution struct {
	opt       *Options
	id        string
	log       *zap.Logger
	sessions  *pool.ConnectionPool[*session]
	collector *metrics.Collector
	limiter   *rate.Limiter
	params    protocol.RunParams
	disabled  map[string]error
}

// fatalError marks an error that ends the run regardless of failure policy.
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func (r *Runner) run(ctx context.Context) (*metrics.Report, error) {
	if r.opt.Catalog == nil {
		return nil, failure.NewConfigurationError("no suite catalog")
	}
	rc := r.opt.Run
	selected, err := r.opt.Catalog.Select(catalog.Selection{
		Tags:          rc.Tags,
		Names:         rc.Suites,
		DeveloperMode: rc.DeveloperMode,
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, len(selected.Enabled))
	for i, s := range selected.Enabled {
		names[i] = s.Name
	}

	ex := &execution{
		opt:       &r.opt,
		id:        ulid.Make().String(),
		sessions:  pool.NewConnectionPool[*session](1),
		collector: metrics.NewCollector(names, rc.IterationCount),
		limiter:   r.opt.LimiterFactory(r.opt.Cooldown),
		params:    protocol.RunParams{WarmupBeforeSync: rc.WarmupBeforeSync, WaitBeforeSync: rc.WaitBeforeSync},
		disabled:  make(map[string]error),
	}
	ex.log = r.opt.Logger.With(zap.String("run_id", ex.id))
	defer func() {
		if err := ex.sessions.Close(); err != nil {
			ex.log.Warn("closing pages", zap.Error(err))
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(selected.Enabled) == 0 {
		_, err := ex.collector.Aggregate()
		return nil, err
	}
	ex.log.Info("run starting",
		zap.Strings("suites", names),
		zap.Int("iterations", rc.IterationCount),
		zap.Bool("shuffled", rc.ShuffleSeed != nil),
	)

	if err := ex.openPages(ctx, selected.Enabled); err != nil {
		ex.log.Error("run aborted", zap.Error(err))
		return nil, err
	}
	r.opt.Observer.OnStart(ex.id, names)

	var gen *shuffle.Generator
	if rc.ShuffleSeed != nil {
		gen = shuffle.NewGenerator(*rc.ShuffleSeed)
	}

	for i := 0; i < rc.IterationCount; i++ {
		order := selected.Enabled
		if gen != nil {
			order = shuffle.Apply(selected.Enabled, gen.Permutation(len(order)))
		}
		for _, s := range order {
			if err := ex.step(ctx, s, i); err != nil {
				var fatal *fatalError
				if errors.As(err, &fatal) {
					err = fatal.err
				}
				ex.log.Error("run aborted", zap.String("suite", s.Name), zap.Int("iteration", i), zap.Error(err))
				return nil, err
			}
		}
		g, err := ex.collector.IterationGeomean(i)
		r.opt.Observer.OnIterationComplete(i, g, err)
		if err != nil {
			// Keep going so every failure is recorded; Aggregate rejects the run.
			ex.log.Warn("iteration has no completed suite", zap.Int("iteration", i), zap.Error(err))
			continue
		}
		ex.log.Debug("iteration complete", zap.Int("iteration", i), zap.Float64("geomean_ms", g))
	}

	report, err := ex.collector.Aggregate()
	if err != nil {
		ex.log.Error("run aborted", zap.Error(err))
		return nil, err
	}
	report.RunID = ex.id
	report.Excluded = selected.Excluded
	ex.log.Info("run complete", zap.Float64("score", report.Score.Mean), zap.Int("failures", report.FailureCount()))
	return report, nil
}

// openPages launches every page the selection needs, so the run starts only
// once all connectors have announced readiness. Pages are shared, so each is
// launched once and reused for the other suites it hosts.
func (ex *execution) openPages(ctx context.Context, suites []catalog.Suite) error {
	for _, s := range suites {
		sess, err := ex.acquire(ctx, s)
		if err != nil {
			return err
		}
		ex.checkTags(s, sess)
		ex.release(s, sess)
	}
	return nil
}

// checkTags warns when the page announces tags for s that the catalog entry
// lacks. Selection always follows the catalog.
func (ex *execution) checkTags(s catalog.Suite, sess *session) {
	for _, tag := range sess.ready.Tags[s.Target()] {
		if !s.HasTag(tag) {
			ex.log.Warn("page tags differ from catalog",
				zap.String("suite", s.Name),
				zap.Strings("page_tags", sess.ready.Tags[s.Target()]),
				zap.Strings("catalog_tags", s.Tags),
			)
			return
		}
	}
}

// step runs suite s once for iteration i and records the outcome. It returns
// an error only when the run must stop.
func (ex *execution) step(ctx context.Context, s catalog.Suite, i int) error {
	log := ex.log.With(zap.String("suite", s.Name), zap.Int("iteration", i))

	if cause, ok := ex.disabled[s.Name]; ok {
		ex.record(s, i, 0, fmt.Errorf("suite disabled after earlier failure: %w", cause))
		return nil
	}
	if err := ex.limiter.Wait(ctx); err != nil {
		return err
	}

	d, err := ex.execute(ctx, s, i)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var fatal *fatalError
	if errors.As(err, &fatal) || failure.IsFatal(err) {
		return err
	}

	ex.record(s, i, d, err)
	if err == nil {
		log.Debug("suite complete", zap.Duration("duration", d))
		return nil
	}

	log.Warn("suite iteration failed", zap.String("kind", string(failure.KindOf(err))), zap.Error(err))
	switch ex.opt.FailurePolicy {
	case config.PolicyAbort:
		return &fatalError{err: fmt.Errorf("failure policy abort: %w", err)}
	case config.PolicySuite:
		ex.disabled[s.Name] = err
	}
	return nil
}

func (ex *execution) record(s catalog.Suite, i int, d time.Duration, err error) {
	if err != nil {
		_ = ex.collector.RecordFailure(s.Name, i, err)
	} else {
		_ = ex.collector.RecordSuccess(s.Name, i, d)
	}
	current, _ := ex.collector.Suite(s.Name)
	ex.opt.Observer.OnSuiteComplete(SuiteEvent{RunID: ex.id, Suite: s.Name, Iteration: i, Duration: d, Mean: current.Mean, Err: err})
}

// execute performs one round trip inside an iteration span.
func (ex *execution) execute(ctx context.Context, s catalog.Suite, i int) (time.Duration, error) {
	sess, err := ex.acquire(ctx, s)
	if err != nil {
		return 0, &fatalError{err: err}
	}
	if !sess.Hosts(s.Target()) {
		ex.release(s, sess)
		return 0, failure.NewConfigurationError(fmt.Sprintf("suite %q: page %s does not register %q", s.Name, sess.ready.ID, s.Target()))
	}

	spanCtx, span := tracing.StartIterationSpan(ctx, ex.opt.Tracer, ex.id, s.Name, i)
	var carrier map[string]string
	if ex.opt.Propagate {
		carrier = tracing.Inject(spanCtx)
	}

	rtCtx, cancel := spanCtx, context.CancelFunc(func() {})
	if ex.opt.Timeout > 0 {
		rtCtx, cancel = context.WithTimeout(spanCtx, ex.opt.Timeout)
	}
	resp, err := sess.client.RunSuite(rtCtx, s.Target(), ex.params, carrier)
	cancel()

	var d time.Duration
	switch {
	case err == nil:
		if err = resp.Err(); err == nil {
			d = resp.Duration()
		}
		ex.release(s, sess)
	case ctx.Err() != nil:
		_ = sess.Close()
	case errors.Is(err, context.DeadlineExceeded):
		err = &failure.ConnectorTimeoutError{Suite: s.Name, Iteration: i, Phase: failure.PhaseRun, Timeout: ex.opt.Timeout}
		// The page is still busy with the abandoned run; start the next
		// iteration on a fresh one.
		ex.recycle(s, sess)
	case failure.KindOf(err) == failure.KindChannel:
		fresh, rerr := ex.sessions.RetryStaleConnection(ctx, sess, ex.factory(s))
		if rerr != nil {
			err = &fatalError{err: fmt.Errorf("suite %q: %w", s.Name, rerr)}
			break
		}
		ex.opt.Observer.OnReady(s.PageKey(), fresh.ready.Suites)
		ex.release(s, fresh)
	default:
		ex.release(s, sess)
	}

	if err != nil {
		tracing.EndSpan(span, err)
	} else {
		tracing.EndSpan(span, nil, tracing.AttrDuration.Float64(protocol.Milliseconds(d)))
	}
	return d, err
}

func (ex *execution) factory(s catalog.Suite) func() *session {
	return func() *session {
		return newSession(ex.opt.Launcher, s, ex.opt.ReadyTimeout)
	}
}

// acquire returns the session for the page hosting s, launching it on first
// use.
func (ex *execution) acquire(ctx context.Context, s catalog.Suite) (*session, error) {
	sess, reused := ex.sessions.Get(s.PageKey(), ex.factory(s))
	if reused {
		return sess, nil
	}
	if err := sess.Connect(ctx); err != nil {
		return nil, err
	}
	ex.log.Info("page ready",
		zap.String("page", s.PageKey()),
		zap.String("app_id", sess.ready.ID),
		zap.Strings("suites", sess.ready.Suites),
	)
	ex.opt.Observer.OnReady(s.PageKey(), sess.ready.Suites)
	return sess, nil
}

func (ex *execution) release(s catalog.Suite, sess *session) {
	if err := ex.sessions.Put(s.PageKey(), sess); err != nil {
		ex.log.Warn("returning page session", zap.String("page", s.PageKey()), zap.Error(err))
	}
}

func (ex *execution) recycle(s catalog.Suite, sess *session) {
	traffic := sess.client.Traffic()
	ex.log.Debug("discarding page session",
		zap.String("page", s.PageKey()),
		zap.Int64("frames_sent", traffic.FramesSent),
		zap.Int64("frames_received", traffic.FramesReceived),
		zap.Int64("round_trips", traffic.RoundTrips),
		zap.Duration("round_trip_p50", traffic.RoundTripP50),
	)
	_ = sess.Close()
}
