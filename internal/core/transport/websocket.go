package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

// WebSocketDialer opens bidirectional socket transports.
type WebSocketDialer struct {
	dialer       *websocket.Dialer
	writeTimeout time.Duration
	logger       log.Log
}

func NewWebSocketDialer(writeTimeout time.Duration, logger log.Log) *WebSocketDialer {
	return &WebSocketDialer{
		dialer:       websocket.DefaultDialer,
		writeTimeout: writeTimeout,
		logger:       logger.With(log.String("transport", "websocket")),
	}
}

func (d *WebSocketDialer) Kind() protocol.TransportKind {
	return protocol.TransportWebSocket
}

func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string, h Handlers) (Transport, error) {
	conn, _, err := d.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, &protocol.TransportError{Op: "websocket dial", Err: err}
	}

	t := &wsTransport{
		conn:         conn,
		writeTimeout: d.writeTimeout,
		logger:       d.logger,
	}
	go t.readLoop(h)

	return t, nil
}

type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	closed       int32

	// Serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	logger log.Log
}

func (t *wsTransport) Kind() protocol.TransportKind {
	return protocol.TransportWebSocket
}

func (t *wsTransport) Send(data []byte) error {
	if atomic.LoadInt32(&t.closed) == 1 {
		return ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &protocol.TransportError{Op: "websocket write", Err: err}
	}
	return nil
}

func (t *wsTransport) Close() error {
	if !atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		return nil
	}

	t.writeMu.Lock()
	closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	_ = t.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(time.Second))
	t.writeMu.Unlock()

	return t.conn.Close()
}

func (t *wsTransport) readLoop(h Handlers) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			if atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
				_ = t.conn.Close()
				if h.OnClose != nil {
					h.OnClose(&protocol.TransportError{Op: "websocket read", Err: errors.Wrap(err, "read message")})
				}
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			if h.OnLiveness != nil {
				h.OnLiveness()
			}
			continue
		}
		if h.OnMessage != nil {
			h.OnMessage(data)
		}
	}
}
