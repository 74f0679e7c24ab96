package protocol

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a transport after Close.
var ErrClosed = errors.New("transport closed")

// Transport moves opaque frames between host and page.
type Transport interface {
	WriteFrame(ctx context.Context, frame []byte) error
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// Pipe returns two connected in-memory transports, one per side. Closing
// either end closes both.
func Pipe() (host Transport, page Transport) {
	toPage := make(chan []byte, 16)
	toHost := make(chan []byte, 16)
	shared := &pipeState{closed: make(chan struct{})}
	host = &pipeEnd{in: toHost, out: toPage, state: shared}
	page = &pipeEnd{in: toPage, out: toHost, state: shared}
	return host, page
}

type pipeState struct {
	once   sync.Once
	closed chan struct{}
}

type pipeEnd struct {
	in    <-chan []byte
	out   chan<- []byte
	state *pipeState
}

func (p *pipeEnd) WriteFrame(ctx context.Context, frame []byte) error {
	buf := append([]byte(nil), frame...)
	select {
	case <-p.state.closed:
		return ErrClosed
	default:
	}
	select {
	case p.out <- buf:
		return nil
	case <-p.state.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.state.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.state.once.Do(func() { close(p.state.closed) })
	return nil
}
