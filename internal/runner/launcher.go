package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/pagebench/internal/catalog"
	"github.com/torosent/pagebench/internal/connector"
	"github.com/torosent/pagebench/internal/failure"
	"github.com/torosent/pagebench/internal/protocol"
	"github.com/torosent/pagebench/internal/websocket"
	"github.com/torosent/pagebench/internal/workload"
)

// Launcher opens the page hosting a suite and returns the host end of its
// channel.
type Launcher interface {
	Open(ctx context.Context, s catalog.Suite) (protocol.Transport, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, s catalog.Suite) (protocol.Transport, error)

// Open calls f.
func (f LauncherFunc) Open(ctx context.Context, s catalog.Suite) (protocol.Transport, error) {
	return f(ctx, s)
}

// PageVersion is the app version reported by in-process pages.
const PageVersion = "1"

// InProcess launches built-in workloads behind an in-memory pipe. Each Open
// starts a fresh page whose connector serves until the host closes the pipe.
type InProcess struct {
	Logger *zap.Logger
	Tracer trace.Tracer
}

// Open implements Launcher.
func (l InProcess) Open(ctx context.Context, s catalog.Suite) (protocol.Transport, error) {
	entry, ok := workload.Lookup(s.Workload)
	if !ok {
		return nil, failure.NewConfigurationError(fmt.Sprintf("suite %q: unknown workload %q", s.Name, s.Workload))
	}
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	page := connector.New(s.Workload, PageVersion, connector.Options{Logger: logger.Named("page"), Tracer: l.Tracer})
	if err := entry(page); err != nil {
		return nil, fmt.Errorf("load workload %q: %w", s.Workload, err)
	}

	host, pageEnd := protocol.Pipe()
	go func() {
		// The page lives until the host closes its end, not until ctx ends.
		if err := page.Serve(context.Background(), pageEnd); err != nil {
			logger.Warn("in-process page stopped", zap.String("workload", s.Workload), zap.Error(err))
		}
		page.Wait()
	}()
	return host, nil
}

// Remote dials pages over WebSocket.
type Remote struct {
	Headers          http.Header
	HandshakeTimeout time.Duration
}

// Open implements Launcher.
func (l Remote) Open(ctx context.Context, s catalog.Suite) (protocol.Transport, error) {
	client := websocket.NewClient(websocket.Config{
		URL:              s.URL,
		Headers:          l.Headers,
		HandshakeTimeout: l.HandshakeTimeout,
	})
	if err := client.Connect(ctx); err != nil {
		return nil, &failure.ChannelError{Op: "dial " + s.URL, Err: err}
	}
	return client, nil
}

// Router sends each suite to the launcher for its catalog type.
type Router struct {
	InProcess Launcher
	Remote    Launcher
}

// NewRouter routes in-process suites to built-in workloads and remote suites
// to a WebSocket dialer.
func NewRouter(logger *zap.Logger, tracer trace.Tracer, headers http.Header) Router {
	return Router{
		InProcess: InProcess{Logger: logger, Tracer: tracer},
		Remote:    Remote{Headers: headers},
	}
}

// Open implements Launcher.
func (r Router) Open(ctx context.Context, s catalog.Suite) (protocol.Transport, error) {
	switch s.Type {
	case catalog.TypeInProcess:
		if r.InProcess == nil {
			return nil, failure.NewConfigurationError("in-process pages are not available")
		}
		return r.InProcess.Open(ctx, s)
	case catalog.TypeRemote:
		if r.Remote == nil {
			return nil, failure.NewConfigurationError("remote pages are not available")
		}
		return r.Remote.Open(ctx, s)
	default:
		return nil, failure.NewConfigurationError(fmt.Sprintf("suite %q: unknown type %q", s.Name, s.Type))
	}
}
