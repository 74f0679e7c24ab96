package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/pagebench/internal/clientmetrics"
	"github.com/torosent/pagebench/internal/failure"
)

// Client is the host-side handle on one page. It is the explicit object used
// to command a page; nothing is reached through ambient globals.
type Client struct {
	transport Transport
	traffic   *clientmetrics.Traffic

	cancel context.CancelFunc
	frames chan any
	done   chan struct{}

	mu      sync.Mutex
	ready   *Ready
	readErr error
	runMu   sync.Mutex
}

// NewClient starts reading frames from t.
func NewClient(t Transport) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		transport: t,
		traffic:   clientmetrics.New(),
		cancel:    cancel,
		frames:    make(chan any, 16),
		done:      make(chan struct{}),
	}
	c.traffic.MarkConnected()
	go c.pump(ctx)
	return c
}

func (c *Client) pump(ctx context.Context) {
	defer close(c.done)
	for {
		frame, err := c.transport.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.traffic.RecordError()
			}
			c.mu.Lock()
			c.readErr = &failure.ChannelError{Op: "read", Err: err}
			c.mu.Unlock()
			return
		}
		c.traffic.RecordReceived(len(frame))
		msg, err := Decode(frame)
		if err != nil {
			c.traffic.RecordDropped()
			continue
		}
		select {
		case c.frames <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// AwaitReady blocks until the page announces readiness.
func (c *Client) AwaitReady(ctx context.Context) (Ready, error) {
	c.mu.Lock()
	if c.ready != nil {
		r := *c.ready
		c.mu.Unlock()
		return r, nil
	}
	c.mu.Unlock()

	for {
		msg, err := c.next(ctx)
		if err != nil {
			return Ready{}, err
		}
		if ready, ok := msg.(Ready); ok {
			c.mu.Lock()
			c.ready = &ready
			c.mu.Unlock()
			return ready, nil
		}
		c.traffic.RecordDropped()
	}
}

// AppID returns the id announced by the page, or "" before readiness.
func (c *Client) AppID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready == nil {
		return ""
	}
	return c.ready.ID
}

// RunSuite asks the page to run suite name once and waits for the matching
// response. When ctx ends first the request is abandoned; a late answer to it
// is dropped by a later call.
func (c *Client) RunSuite(ctx context.Context, name string, params RunParams, trace map[string]string) (Response, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	appID := c.AppID()
	if appID == "" {
		return Response{}, &failure.ChannelError{Op: "run", Err: errors.New("page has not announced readiness")}
	}

	req := NewRequest(appID, name, ulid.Make().String(), params)
	req.Trace = trace
	frame, err := Encode(req)
	if err != nil {
		return Response{}, err
	}
	sent := time.Now()
	if err := c.transport.WriteFrame(ctx, frame); err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		c.traffic.RecordError()
		return Response{}, &failure.ChannelError{Op: "write", Err: err}
	}
	c.traffic.RecordSent(len(frame))

	for {
		msg, err := c.next(ctx)
		if err != nil {
			return Response{}, err
		}
		resp, ok := msg.(Response)
		if !ok || resp.RequestID != req.RequestID || resp.ID != appID {
			c.traffic.RecordDropped()
			continue
		}
		c.traffic.RecordRoundTrip(time.Since(sent))
		return resp, nil
	}
}

func (c *Client) next(ctx context.Context) (any, error) {
	select {
	case msg := <-c.frames:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		// Drain anything the pump delivered before stopping.
		select {
		case msg := <-c.frames:
			return msg, nil
		default:
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.readErr != nil {
			return nil, c.readErr
		}
		return nil, &failure.ChannelError{Op: "read", Err: ErrClosed}
	}
}

// Traffic exposes channel counters.
func (c *Client) Traffic() clientmetrics.Snapshot {
	return c.traffic.Snapshot()
}

// Connect satisfies pooled-connection contracts; the transport is already open.
func (c *Client) Connect(context.Context) error { return nil }

// Close stops the reader and closes the transport.
func (c *Client) Close() error {
	c.cancel()
	err := c.transport.Close()
	<-c.done
	if err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}
