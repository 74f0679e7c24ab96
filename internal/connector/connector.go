// Package connector is the page-side agent. A page registers its suites on a
// Connector, then Serve announces readiness over a transport and executes one
// run request at a time, replying with the measured duration or the failure.
package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/torosent/pagebench/internal/failure"
	"github.com/torosent/pagebench/internal/protocol"
	"github.com/torosent/pagebench/internal/suite"
	"github.com/torosent/pagebench/internal/tracing"
)

// Options tune a Connector.
type Options struct {
	Logger *zap.Logger
	Tracer trace.Tracer
}

// Connector bridges a page's suite registry to the host.
type Connector struct {
	appID    string
	registry *suite.Registry
	logger   *zap.Logger
	tracer   trace.Tracer

	mu         sync.Mutex
	running    bool
	faults     chan error
	idleFaults int
	background sync.WaitGroup
}

// New creates a connector identified by appName-appVersion.
func New(appName, appVersion string, opts Options) *Connector {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("connector")
	}
	appID := protocol.AppID(appName, appVersion)
	return &Connector{
		appID:    appID,
		registry: suite.NewRegistry(),
		logger:   opts.Logger.With(zap.String("app_id", appID)),
		tracer:   opts.Tracer,
		faults:   make(chan error, 16),
	}
}

// ID returns the application id carried by every frame.
func (c *Connector) ID() string { return c.appID }

// Register adds suites in order. Duplicate names are configuration errors.
func (c *Connector) Register(suites ...*suite.Suite) error {
	return c.registry.RegisterAll(suites...)
}

// Suites lists registered suite names in declaration order.
func (c *Connector) Suites() []string { return c.registry.Names() }

// Fault reports an error raised outside any step's return path, such as a
// failure in background work. While a suite runs, the fault fails that run.
// Faults raised while idle are logged and counted.
func (c *Connector) Fault(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		select {
		case c.faults <- err:
		default:
		}
		return
	}
	c.idleFaults++
	c.logger.Warn("fault while idle", zap.Error(err))
}

// IdleFaults returns the number of faults raised while no suite was running.
func (c *Connector) IdleFaults() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idleFaults
}

// Go runs fn in the background. An error or panic from fn is reported
// through Fault.
func (c *Connector) Go(fn func() error) {
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer func() {
			if r := recover(); r != nil {
				c.Fault(fmt.Errorf("background panic: %v", r))
			}
		}()
		if err := fn(); err != nil {
			c.Fault(err)
		}
	}()
}

// Wait blocks until all work started with Go has returned.
func (c *Connector) Wait() { c.background.Wait() }

// Serve announces readiness on t and answers run requests until t closes or
// ctx ends. Requests are handled strictly one at a time.
func (c *Connector) Serve(ctx context.Context, t protocol.Transport) error {
	ready := protocol.NewReady(c.appID, c.registry.Names())
	ready.Tags = c.registry.Tags()
	if err := c.send(ctx, t, ready); err != nil {
		return err
	}
	c.logger.Debug("ready", zap.Strings("suites", c.registry.Names()))

	for {
		frame, err := t.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, protocol.ErrClosed) {
				return nil
			}
			return &failure.ChannelError{Op: "read", Err: err}
		}
		msg, err := protocol.Decode(frame)
		if err != nil {
			if !errors.Is(err, protocol.ErrForeignFrame) {
				c.logger.Warn("undecodable frame", zap.Error(err))
			}
			continue
		}
		req, ok := msg.(protocol.Request)
		if !ok || req.ID != c.appID {
			continue
		}
		if err := c.send(ctx, t, c.Handle(ctx, req)); err != nil {
			return err
		}
	}
}

func (c *Connector) send(ctx context.Context, t protocol.Transport, msg any) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := t.WriteFrame(ctx, frame); err != nil {
		return &failure.ChannelError{Op: "write", Err: err}
	}
	return nil
}

// Handle executes req and builds its response. It never panics on behalf of a
// step; every failure becomes an error payload.
func (c *Connector) Handle(ctx context.Context, req protocol.Request) protocol.Response {
	resp := req.Reply()
	log := c.logger.With(zap.String("suite", req.Name), zap.String("request_id", req.RequestID))

	s, ok := c.registry.Lookup(req.Name)
	if !ok {
		err := suite.UnknownSuiteError(req.Name)
		log.Warn("rejecting run", zap.Error(err))
		resp.Error = protocol.ErrorFrom(err)
		return resp
	}

	ctx, span := tracing.StartPageSpan(ctx, c.tracer, req.Trace, c.appID, req.Name)
	timing, err := c.execute(ctx, s, req.Params)
	if err != nil {
		tracing.EndSpan(span, err)
		log.Info("run failed", zap.Bool("panicked", suite.IsPanic(err)), zap.Error(err))
		resp.Error = protocol.ErrorFrom(err)
		return resp
	}
	ms := protocol.Milliseconds(timing.Total)
	tracing.EndSpan(span, nil, tracing.AttrDuration.Float64(ms))
	log.Debug("run complete", zap.Duration("duration", timing.Total))

	resp.Result = &protocol.Result{Duration: ms, Steps: make([]protocol.StepResult, 0, len(timing.Steps))}
	for _, st := range timing.Steps {
		resp.Result.Steps = append(resp.Result.Steps, protocol.StepResult{
			Name:     st.Name,
			Duration: protocol.Milliseconds(st.Duration),
			Warmup:   st.Warmup,
		})
	}
	return resp
}

type outcome struct {
	timing suite.Timing
	err    error
}

// execute runs warmups, settles, then times one iteration. A fault raised
// meanwhile cancels the run and is reported in place of its outcome; the
// suite is still allowed to unwind before execute returns.
func (c *Connector) execute(ctx context.Context, s *suite.Suite, params protocol.RunParams) (suite.Timing, error) {
	c.beginRun()
	defer c.endRun()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	done := make(chan outcome, 1)
	go func() {
		timing, err := iterate(runCtx, s, params)
		done <- outcome{timing: timing, err: err}
	}()

	select {
	case out := <-done:
		select {
		case fault := <-c.faults:
			return out.timing, faultError(s.Name, fault)
		default:
		}
		return out.timing, out.err
	case fault := <-c.faults:
		cancel(fault)
		out := <-done
		return out.timing, faultError(s.Name, fault)
	}
}

func (c *Connector) beginRun() {
	c.mu.Lock()
	defer c.mu.Unlock()
drain:
	for {
		select {
		case <-c.faults:
		default:
			break drain
		}
	}
	c.running = true
}

func (c *Connector) endRun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

func faultError(suiteName string, fault error) error {
	return &failure.StepExecutionError{Suite: suiteName, Message: "page fault: " + fault.Error(), Cause: fault}
}

func iterate(ctx context.Context, s *suite.Suite, params protocol.RunParams) (suite.Timing, error) {
	for i := 0; i < params.WarmupBeforeSync; i++ {
		if _, err := s.Run(ctx); err != nil {
			return suite.Timing{}, err
		}
	}
	if params.WaitBeforeSync > 0 {
		timer := time.NewTimer(time.Duration(params.WaitBeforeSync) * time.Millisecond)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return suite.Timing{}, context.Cause(ctx)
		}
	}
	return s.Run(ctx)
}
