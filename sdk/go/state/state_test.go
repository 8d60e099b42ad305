package state

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
	"github.com/pulselink/pulselink/internal/core/realtime"
	"github.com/pulselink/pulselink/sdk/go/client"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func echoClient(t *testing.T) *client.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(messageType, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	cfg := client.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Path = ""
	cfg.PingInterval = 0
	cfg.LogLevel = log.LevelError
	c, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStatesObserveLifecycle(t *testing.T) {
	c := echoClient(t)
	s := NewStream(c, log.New(log.LevelError))
	defer s.Close()
	states := s.States()

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Disconnect())

	expectChange := func(want realtime.EventType) {
		t.Helper()
		select {
		case change := <-states:
			assert.Equal(t, want, change.Event)
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s transition observed", want)
		}
	}
	expectChange(realtime.EventConnected)
	expectChange(realtime.EventDisconnected)
}

func TestEnvelopesStreamInbound(t *testing.T) {
	c := echoClient(t)
	s := NewStream(c, log.New(log.LevelError))
	defer s.Close()
	notes := s.Envelopes(protocol.EnvelopeType("note"))

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.SendJSON(protocol.EnvelopeType("note"), map[string]any{"n": "1"}))

	select {
	case env := <-notes:
		n, _ := env.DataString("n")
		assert.Equal(t, "1", n)
	case <-time.After(2 * time.Second):
		t.Fatal("envelope not streamed")
	}
}

func TestSlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	c := echoClient(t)
	s := NewStream(c, log.New(log.LevelError), WithBuffer(1))
	defer s.Close()
	notes := s.Envelopes(protocol.EnvelopeType("note"))

	require.NoError(t, c.Connect(context.Background()))
	for i := 0; i < 5; i++ {
		require.NoError(t, c.SendJSON(protocol.EnvelopeType("note"), map[string]any{"n": "x"}))
	}

	// Only the buffered envelope survives; the rest are dropped without
	// stalling the read loop.
	select {
	case <-notes:
	case <-time.After(2 * time.Second):
		t.Fatal("first envelope not streamed")
	}
	require.NoError(t, c.Disconnect())
}

func TestCloseEndsStreams(t *testing.T) {
	c := echoClient(t)
	s := NewStream(c, log.New(log.LevelError))
	states := s.States()
	notes := s.Envelopes(protocol.EnvelopeType("note"))

	s.Close()
	s.Close()

	_, ok := <-states
	assert.False(t, ok)
	_, ok = <-notes
	assert.False(t, ok)
}
