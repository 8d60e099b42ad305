package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// echoServer reflects every text frame back to the sender.
func echoServer(t *testing.T) string {
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
	return srv.URL
}

func testClientConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.Path = ""
	cfg.MaxReconnectAttempts = 1
	cfg.ReconnectInterval = 10 * time.Millisecond
	cfg.PingInterval = 0
	cfg.LogLevel = log.LevelError
	return cfg
}

func TestClientConnectSendReceive(t *testing.T) {
	c, err := New(testClientConfig(echoServer(t)))
	require.NoError(t, err)
	defer c.Close()

	received := make(chan *protocol.Envelope, 1)
	c.On(protocol.EnvelopeType("note"), func(env *protocol.Envelope) {
		select {
		case received <- env:
		default:
		}
	})

	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.IsConnected())
	require.NoError(t, c.SendJSON(protocol.EnvelopeType("note"), map[string]any{"text": "hello"}))

	select {
	case env := <-received:
		text, _ := env.DataString("text")
		assert.Equal(t, "hello", text)
	case <-time.After(2 * time.Second):
		t.Fatal("echoed envelope not dispatched")
	}

	require.NoError(t, c.Disconnect())
	assert.False(t, c.IsConnected())
}

func TestClientRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = ""
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestClientCloseIsTerminal(t *testing.T) {
	c, err := New(testClientConfig(echoServer(t)))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)
}

func TestClientEndpointRewrite(t *testing.T) {
	url := echoServer(t)
	cfg := testClientConfig(url)
	// The config layer rewrites the scheme; callers hand over plain HTTP URLs.
	require.True(t, strings.HasPrefix(url, "http://"))

	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))
}
