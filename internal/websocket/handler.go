package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torosent/pagebench/internal/protocol"
)

// ServeFunc runs a page session over an accepted connection. It returns when
// the session ends; the connection is closed afterwards.
type ServeFunc func(ctx context.Context, t protocol.Transport) error

// HandlerOptions tune the page-side upgrader.
type HandlerOptions struct {
	MaxMessageSize int64
	WriteTimeout   time.Duration
	// OnError receives errors returned by ServeFunc and upgrade failures.
	OnError func(error)
}

// Handler upgrades each request and hands the connection to serve. Every
// accepted connection is an independent page session.
func Handler(serve ServeFunc, opts HandlerOptions) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	if opts.MaxMessageSize == 0 {
		opts.MaxMessageSize = 1024 * 1024
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			if opts.OnError != nil {
				opts.OnError(err)
			}
			return
		}
		conn := wrap(ws, opts.MaxMessageSize, opts.WriteTimeout)
		defer conn.Close()

		if err := serve(r.Context(), conn); err != nil && opts.OnError != nil {
			opts.OnError(err)
		}
	})
}
