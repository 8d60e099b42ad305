package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

type capturedHandlers struct {
	mu       sync.Mutex
	messages [][]byte
	liveness int
	closeErr error
	closed   chan struct{}
}

func newCapturedHandlers() *capturedHandlers {
	return &capturedHandlers{closed: make(chan struct{})}
}

func (c *capturedHandlers) handlers() Handlers {
	return Handlers{
		OnMessage: func(data []byte) {
			c.mu.Lock()
			c.messages = append(c.messages, append([]byte(nil), data...))
			c.mu.Unlock()
		},
		OnLiveness: func() {
			c.mu.Lock()
			c.liveness++
			c.mu.Unlock()
		},
		OnClose: func(err error) {
			c.mu.Lock()
			c.closeErr = err
			c.mu.Unlock()
			close(c.closed)
		},
	}
}

func (c *capturedHandlers) messageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *capturedHandlers) livenessCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveness
}

func (c *capturedHandlers) message(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages[i]
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func sseServer(t *testing.T, lines []string, hold chan struct{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		flusher.Flush()
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSSEDeliversDataLines(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := sseServer(t, []string{
		`data: {"type":"connected"}`,
		": keep-alive",
		`data:{"type":"heartbeat"}`,
	}, hold)

	captured := newCapturedHandlers()
	d := NewSSEDialer(srv.Client(), log.New(log.LevelError))
	tr, err := d.Dial(context.Background(), srv.URL, captured.handlers())
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, protocol.TransportSSE, tr.Kind())
	waitFor(t, func() bool { return captured.messageCount() == 2 }, "data lines not delivered")
	assert.JSONEq(t, `{"type":"connected"}`, string(captured.message(0)))
	assert.JSONEq(t, `{"type":"heartbeat"}`, string(captured.message(1)))
	waitFor(t, func() bool { return captured.livenessCount() >= 1 }, "comment line not counted as liveness")
}

func TestSSESendIsUnsupported(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := sseServer(t, nil, hold)

	captured := newCapturedHandlers()
	d := NewSSEDialer(srv.Client(), log.New(log.LevelError))
	tr, err := d.Dial(context.Background(), srv.URL, captured.handlers())
	require.NoError(t, err)
	defer tr.Close()

	assert.ErrorIs(t, tr.Send([]byte("{}")), ErrSendUnsupported)
}

func TestSSEServerEndSignalsClose(t *testing.T) {
	srv := sseServer(t, []string{`data: {"type":"connected"}`}, nil)

	captured := newCapturedHandlers()
	d := NewSSEDialer(srv.Client(), log.New(log.LevelError))
	tr, err := d.Dial(context.Background(), srv.URL, captured.handlers())
	require.NoError(t, err)
	defer tr.Close()

	select {
	case <-captured.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream end did not trigger OnClose")
	}

	var transportErr *protocol.TransportError
	assert.ErrorAs(t, captured.closeErr, &transportErr)
}

func TestSSELocalCloseSuppressesOnClose(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := sseServer(t, []string{`data: {"type":"connected"}`}, hold)

	captured := newCapturedHandlers()
	d := NewSSEDialer(srv.Client(), log.New(log.LevelError))
	tr, err := d.Dial(context.Background(), srv.URL, captured.handlers())
	require.NoError(t, err)

	waitFor(t, func() bool { return captured.messageCount() == 1 }, "handshake message not delivered")
	require.NoError(t, tr.Close())

	select {
	case <-captured.closed:
		t.Fatal("locally requested close must not invoke OnClose")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSSERejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	d := NewSSEDialer(srv.Client(), log.New(log.LevelError))
	_, err := d.Dial(context.Background(), srv.URL, newCapturedHandlers().handlers())

	var transportErr *protocol.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "503")
}

func TestSSEDialFailsOnUnreachableHost(t *testing.T) {
	d := NewSSEDialer(&http.Client{Timeout: 200 * time.Millisecond}, log.New(log.LevelError))
	_, err := d.Dial(context.Background(), "http://127.0.0.1:1", newCapturedHandlers().handlers())
	require.Error(t, err)
}
