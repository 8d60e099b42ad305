package transport

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

const (
	quicALPN = "pulselink-rt"

	// maxQUICFrame caps a single length-prefixed frame.
	maxQUICFrame = 1 << 20
)

// QUICDialer opens socket-style transports over a single bidirectional QUIC
// stream. Frames are length-prefixed JSON envelopes.
type QUICDialer struct {
	tlsConfig *tls.Config
	logger    log.Log
}

func NewQUICDialer(tlsConfig *tls.Config, logger log.Log) *QUICDialer {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	}
	tlsConfig = tlsConfig.Clone()
	tlsConfig.NextProtos = []string{quicALPN}
	return &QUICDialer{
		tlsConfig: tlsConfig,
		logger:    logger.With(log.String("transport", "quic")),
	}
}

func (d *QUICDialer) Kind() protocol.TransportKind {
	return protocol.TransportQUIC
}

// Dial connects to a host:port endpoint and opens the envelope stream.
func (d *QUICDialer) Dial(ctx context.Context, endpoint string, h Handlers) (Transport, error) {
	quicConfig := &quic.Config{
		MaxIdleTimeout:  60 * time.Second,
		KeepAlivePeriod: 15 * time.Second,
	}

	session, err := quic.DialAddr(ctx, endpoint, d.tlsConfig, quicConfig)
	if err != nil {
		return nil, &protocol.TransportError{Op: "quic dial", Err: err}
	}

	stream, err := session.OpenStreamSync(ctx)
	if err != nil {
		_ = session.CloseWithError(0, "failed to open stream")
		return nil, &protocol.TransportError{Op: "quic open stream", Err: err}
	}

	t := &quicTransport{
		session: session,
		stream:  stream,
		logger:  d.logger,
	}
	go t.readLoop(h)

	return t, nil
}

type quicTransport struct {
	session *quic.Conn
	stream  *quic.Stream
	closed  int32

	writeMu sync.Mutex

	logger log.Log
}

func (t *quicTransport) Kind() protocol.TransportKind {
	return protocol.TransportQUIC
}

func (t *quicTransport) Send(data []byte) error {
	if atomic.LoadInt32(&t.closed) == 1 {
		return ErrClosed
	}
	if len(data) > maxQUICFrame {
		return &protocol.TransportError{Op: "quic write", Err: errors.Errorf("frame size %d exceeds limit %d", len(data), maxQUICFrame)}
	}

	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.stream.Write(frame); err != nil {
		return &protocol.TransportError{Op: "quic write", Err: err}
	}
	return nil
}

func (t *quicTransport) Close() error {
	if !atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		return nil
	}
	_ = t.stream.Close()
	return t.session.CloseWithError(0, "client disconnect")
}

func (t *quicTransport) readLoop(h Handlers) {
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(t.stream, header); err != nil {
			t.finish(h, errors.Wrap(err, "read frame header"))
			return
		}
		frameLen := binary.BigEndian.Uint32(header)
		if frameLen == 0 || frameLen > maxQUICFrame {
			t.finish(h, errors.Errorf("invalid frame length %d", frameLen))
			return
		}
		data := make([]byte, frameLen)
		if _, err := io.ReadFull(t.stream, data); err != nil {
			t.finish(h, errors.Wrap(err, "read frame body"))
			return
		}
		if h.OnMessage != nil {
			h.OnMessage(data)
		}
	}
}

func (t *quicTransport) finish(h Handlers, err error) {
	if !atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		return
	}
	_ = t.session.CloseWithError(0, "read failure")
	t.logger.Debug("Stream closed", log.Error(err))
	if h.OnClose != nil {
		h.OnClose(&protocol.TransportError{Op: "quic read", Err: err})
	}
}
