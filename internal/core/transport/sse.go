package transport

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

// SSEDialer opens server-push stream transports over HTTP.
type SSEDialer struct {
	client *http.Client
	logger log.Log
}

func NewSSEDialer(client *http.Client, logger log.Log) *SSEDialer {
	if client == nil {
		client = http.DefaultClient
	}
	return &SSEDialer{
		client: client,
		logger: logger.With(log.String("transport", "sse")),
	}
}

func (d *SSEDialer) Kind() protocol.TransportKind {
	return protocol.TransportSSE
}

// Dial issues the streaming GET and returns once the server has accepted the
// stream. A non-200 status fails the handshake.
func (d *SSEDialer) Dial(ctx context.Context, endpoint string, h Handlers) (Transport, error) {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &protocol.TransportError{Op: "sse request", Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	streamCtx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(streamCtx)

	resp, err := d.client.Do(req)
	if err != nil {
		cancel()
		select {
		case <-ctx.Done():
			return nil, &protocol.TransportError{Op: "sse connect", Err: ctx.Err()}
		default:
		}
		return nil, &protocol.TransportError{Op: "sse connect", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, &protocol.TransportError{Op: "sse connect", Err: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}

	t := &sseTransport{
		body:   resp.Body,
		cancel: cancel,
		logger: d.logger,
	}
	go t.readLoop(h)

	return t, nil
}

type sseTransport struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	closed int32
	logger log.Log
}

func (t *sseTransport) Kind() protocol.TransportKind {
	return protocol.TransportSSE
}

// Send is unavailable; the push stream is one-way.
func (t *sseTransport) Send([]byte) error {
	return ErrSendUnsupported
}

func (t *sseTransport) Close() error {
	if !atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		return nil
	}
	t.cancel()
	return t.body.Close()
}

// readLoop consumes the event stream line by line. "data:" lines carry
// envelopes; comment lines (leading ':') are liveness-only heartbeats.
func (t *sseTransport) readLoop(h Handlers) {
	scanner := bufio.NewScanner(t.body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if h.OnLiveness != nil {
				h.OnLiveness()
			}
			continue
		}
		if data, ok := strings.CutPrefix(line, "data:"); ok {
			if h.OnMessage != nil {
				h.OnMessage([]byte(strings.TrimPrefix(data, " ")))
			}
			continue
		}
		// event:/id:/retry: fields still prove the stream is alive.
		if h.OnLiveness != nil {
			h.OnLiveness()
		}
	}

	if atomic.LoadInt32(&t.closed) == 1 {
		return
	}
	atomic.StoreInt32(&t.closed, 1)
	t.cancel()

	err := scanner.Err()
	if err != nil {
		err = errors.Wrap(err, "sse stream read")
	} else {
		err = errors.New("sse stream ended")
	}
	t.logger.Debug("Stream closed", log.Error(err))
	if h.OnClose != nil {
		h.OnClose(&protocol.TransportError{Op: "sse read", Err: err})
	}
}
