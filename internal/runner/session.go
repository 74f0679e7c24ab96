package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/torosent/pagebench/internal/catalog"
	"github.com/torosent/pagebench/internal/failure"
	"github.com/torosent/pagebench/internal/pool"
	"github.com/torosent/pagebench/internal/protocol"
)

// session is a connected page. It satisfies pool.Poolable so pages can be
// shared by every suite they host.
type session struct {
	launcher     Launcher
	page         catalog.Suite
	readyTimeout time.Duration

	client *protocol.Client
	ready  protocol.Ready
}

var _ pool.Poolable = (*session)(nil)

func newSession(l Launcher, page catalog.Suite, readyTimeout time.Duration) *session {
	return &session{launcher: l, page: page, readyTimeout: readyTimeout}
}

// Connect launches the page and waits for its ready frame. A page that
// stays silent past readyTimeout is unreachable, which is fatal.
func (s *session) Connect(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, s.readyTimeout)
	defer cancel()

	t, err := s.launcher.Open(readyCtx, s.page)
	if err != nil {
		if readyCtx.Err() != nil && ctx.Err() == nil {
			return s.readyTimeoutError()
		}
		return fmt.Errorf("open page for %s: %w", s.page.Name, err)
	}

	client := protocol.NewClient(t)
	ready, err := client.AwaitReady(readyCtx)
	if err != nil {
		_ = client.Close()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return s.readyTimeoutError()
		}
		return fmt.Errorf("await ready for %s: %w", s.page.Name, err)
	}
	s.client = client
	s.ready = ready
	return nil
}

func (s *session) readyTimeoutError() error {
	return &failure.ConnectorTimeoutError{
		Suite:     s.page.Name,
		Iteration: -1,
		Phase:     failure.PhaseReady,
		Timeout:   s.readyTimeout,
	}
}

// Hosts reports whether the page registered a suite named name.
func (s *session) Hosts(name string) bool {
	return slices.Contains(s.ready.Suites, name)
}

func (s *session) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
