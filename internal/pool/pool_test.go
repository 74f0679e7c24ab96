package pool

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type mockSession struct {
	connected   bool
	closed      bool
	failConnect bool
}

func (m *mockSession) Connect(ctx context.Context) error {
	if m.failConnect {
		return fmt.Errorf("page never became ready")
	}
	m.connected = true
	return nil
}

func (m *mockSession) Close() error {
	m.closed = true
	m.connected = false
	return nil
}

func TestConnectionPool_GetPut(t *testing.T) {
	pool := NewConnectionPool[*mockSession](1)
	factory := func() *mockSession { return &mockSession{} }

	s1, reused := pool.Get("inprocess:sort", factory)
	if reused {
		t.Error("first Get should create a session")
	}
	if err := pool.Put("inprocess:sort", s1); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s2, reused := pool.Get("inprocess:sort", factory)
	if !reused || s2 != s1 {
		t.Error("expected the idle session to be reused")
	}

	other, reused := pool.Get("inprocess:empty", factory)
	if reused || other == s1 {
		t.Error("pages with different keys must not share sessions")
	}
}

func TestConnectionPool_PutOverflowCloses(t *testing.T) {
	pool := NewConnectionPool[*mockSession](1)
	a, b := &mockSession{}, &mockSession{}
	pool.Put("k", a)
	pool.Put("k", b)
	if a.closed || !b.closed {
		t.Fatalf("a.closed=%v b.closed=%v, want only the overflow closed", a.closed, b.closed)
	}
}

func TestConnectionPool_Close(t *testing.T) {
	pool := NewConnectionPool[*mockSession](2)
	s := &mockSession{}
	pool.Put("k", s)

	if err := pool.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if !s.closed {
		t.Error("idle session should be closed")
	}

	late := &mockSession{}
	if err := pool.Put("k", late); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Put after Close = %v, want ErrPoolClosed", err)
	}
	if !late.closed {
		t.Error("session returned after Close should be closed")
	}
	if err := pool.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestConnectionPool_RetryStaleConnection(t *testing.T) {
	pool := NewConnectionPool[*mockSession](1)
	stale := &mockSession{connected: true}

	fresh, err := pool.RetryStaleConnection(context.Background(), stale, func() *mockSession { return &mockSession{} })
	if err != nil {
		t.Fatalf("RetryStaleConnection: %v", err)
	}
	if !stale.closed {
		t.Error("Expected stale session to be closed")
	}
	if !fresh.connected {
		t.Error("Expected replacement to be connected")
	}
}

func TestConnectionPool_RetryStaleConnection_Failure(t *testing.T) {
	pool := NewConnectionPool[*mockSession](1)
	stale := &mockSession{connected: true}

	fresh, err := pool.RetryStaleConnection(context.Background(), stale, func() *mockSession {
		return &mockSession{failConnect: true}
	})
	if err == nil {
		t.Error("Expected failed retry")
	}
	if fresh != nil {
		t.Error("Expected nil session on failure")
	}
}
