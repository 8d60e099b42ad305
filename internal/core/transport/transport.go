// Package transport provides the underlying connection implementations the
// realtime core drives: a server-push stream (SSE), a bidirectional socket
// (WebSocket) and a QUIC stream variant of the socket.
package transport

import (
	"context"
	"errors"

	"github.com/pulselink/pulselink/internal/core/protocol"
)

var (
	ErrClosed          = errors.New("transport: closed")
	ErrSendUnsupported = errors.New("transport: send not supported on server-push stream")
)

// Handlers receives transport events. Each callback is invoked from the
// transport's single read goroutine, so invocations are serialized per
// transport instance. OnClose fires exactly once, and only for closures the
// local side did not request via Close.
type Handlers struct {
	// OnMessage delivers one raw inbound frame.
	OnMessage func(raw []byte)
	// OnLiveness reports traffic that carries no frame (e.g. an SSE
	// comment line) but still proves the remote end is alive.
	OnLiveness func()
	// OnClose reports a transport-level closure or error.
	OnClose func(err error)
}

// Transport is one open underlying connection. A fresh instance is dialed
// for every connect cycle; instances are never reused after Close.
type Transport interface {
	Kind() protocol.TransportKind
	// Send transmits one frame. Server-push transports return
	// ErrSendUnsupported.
	Send(data []byte) error
	// Close shuts the transport down deterministically. Idempotent. The
	// handlers see no OnClose for a locally requested close.
	Close() error
}

// Dialer opens transports of one kind. The returned transport is open and
// already reading when Dial returns.
type Dialer interface {
	Kind() protocol.TransportKind
	Dial(ctx context.Context, endpoint string, h Handlers) (Transport, error)
}
