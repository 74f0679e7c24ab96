// Package pool keeps page sessions open across suite iterations. Suites served
// by the same page share one session, so a page loads once per run rather
// than once per suite.
package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Poolable is a session that can be (re)connected and closed.
type Poolable interface {
	Connect(ctx context.Context) error
	Close() error
}

// ErrPoolClosed is returned by Put after Close.
var ErrPoolClosed = errors.New("pool closed")

// ConnectionPool holds idle sessions keyed by page.
type ConnectionPool[T Poolable] struct {
	mu     sync.Mutex
	pools  map[string]chan T
	size   int // max idle sessions per key
	closed bool
}

// NewConnectionPool creates a pool holding at most size idle sessions per key.
func NewConnectionPool[T Poolable](size int) *ConnectionPool[T] {
	if size <= 0 {
		size = 1
	}
	return &ConnectionPool[T]{pools: make(map[string]chan T), size: size}
}

func (p *ConnectionPool[T]) bucket(key string) chan T {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.pools[key]
	if !ok {
		b = make(chan T, p.size)
		p.pools[key] = b
	}
	return b
}

// Get returns an idle session for key, or a fresh one from factory. When
// reused is false the caller must Connect the session.
func (p *ConnectionPool[T]) Get(key string, factory func() T) (client T, reused bool) {
	select {
	case client = <-p.bucket(key):
		return client, true
	default:
		return factory(), false
	}
}

// Put returns a session for reuse. If the key is full, or the pool closed,
// the session is closed instead.
func (p *ConnectionPool[T]) Put(key string, client T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		if err := client.Close(); err != nil {
			return err
		}
		return ErrPoolClosed
	}
	b, ok := p.pools[key]
	if !ok {
		b = make(chan T, p.size)
		p.pools[key] = b
	}
	select {
	case b <- client:
		return nil
	default:
		return client.Close()
	}
}

// RetryStaleConnection closes a broken session and connects a replacement.
func (p *ConnectionPool[T]) RetryStaleConnection(ctx context.Context, client T, factory func() T) (T, error) {
	_ = client.Close()

	fresh := factory()
	if err := fresh.Connect(ctx); err != nil {
		var zero T
		return zero, fmt.Errorf("reconnect: %w", err)
	}
	return fresh, nil
}

// Close closes every idle session.
func (p *ConnectionPool[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []string
	for _, b := range p.pools {
		close(b)
		for client := range b {
			if err := client.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pool close errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
