package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
	sdk "github.com/pulselink/pulselink/sdk/go/client"
)

func testServer(t *testing.T, mutate func(*Config)) *httptest.Server {
	t.Helper()
	_, srv := testServerWithHandle(t, mutate)
	return srv
}

func testServerWithHandle(t *testing.T, mutate func(*Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 50 * time.Millisecond
	cfg.LogLevel = log.LevelError
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func socketClient(t *testing.T, url string) *sdk.Client {
	t.Helper()
	cfg := sdk.DefaultConfig()
	cfg.BaseURL = url
	cfg.Path = "/ws"
	cfg.PingInterval = 0
	cfg.LogLevel = log.LevelError
	c, err := sdk.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSocketHandshakeAssignsConnectionID(t *testing.T) {
	srv := testServer(t, nil)
	c := socketClient(t, srv.URL)

	require.NoError(t, c.Connect(context.Background()))
	deadline := time.Now().Add(2 * time.Second)
	for c.ConnectionID() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.NotEmpty(t, c.ConnectionID())
}

func TestSubscribePublishRoundTrip(t *testing.T) {
	s, srv := testServerWithHandle(t, nil)
	c := socketClient(t, srv.URL)

	received := make(chan *protocol.Envelope, 1)
	c.On(protocol.EnvelopeType("message"), func(env *protocol.Envelope) {
		select {
		case received <- env:
		default:
		}
	})

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx, "news"))

	n := s.Publish("news", s.NewEnvelope(protocol.EnvelopeType("message"), map[string]any{"text": "hello"}))
	assert.Equal(t, 1, n)

	select {
	case env := <-received:
		text, _ := env.DataString("text")
		assert.Equal(t, "hello", text)
	case <-time.After(2 * time.Second):
		t.Fatal("published envelope not received")
	}

	require.NoError(t, c.Unsubscribe(ctx, "news"))
	assert.Zero(t, s.Publish("news", s.NewEnvelope(protocol.EnvelopeType("message"), nil)))
}

func TestAuthenticationAgainstConfiguredToken(t *testing.T) {
	srv := testServer(t, func(cfg *Config) { cfg.AuthToken = "hunter2" })
	c := socketClient(t, srv.URL)

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))

	err := c.Authenticate(ctx, "wrong")
	var authErr *protocol.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.False(t, c.IsAuthenticated())

	require.NoError(t, c.Authenticate(ctx, "hunter2"))
	assert.True(t, c.IsAuthenticated())
}

func TestCommandIsAcknowledged(t *testing.T) {
	srv := testServer(t, nil)
	c := socketClient(t, srv.URL)

	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))

	reply, err := c.SendCommand(ctx, "restart", map[string]any{"delay": 1})
	require.NoError(t, err)
	command, _ := reply.DataString("command")
	assert.Equal(t, "restart", command)
}

func TestPingRoundTrip(t *testing.T) {
	srv := testServer(t, nil)
	c := socketClient(t, srv.URL)

	require.NoError(t, c.Connect(context.Background()))
	latency, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Greater(t, latency, time.Duration(0))
}

func TestEventStreamDeliversPublishes(t *testing.T) {
	s, srv := testServerWithHandle(t, nil)

	cfg := sdk.DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Path = "/events"
	cfg.Params = map[string]string{"channels": "news"}
	cfg.Transport = protocol.TransportSSE
	cfg.LogLevel = log.LevelError
	c, err := sdk.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	received := make(chan *protocol.Envelope, 1)
	c.On(protocol.EnvelopeType("message"), func(env *protocol.Envelope) {
		select {
		case received <- env:
		default:
		}
	})

	require.NoError(t, c.Connect(context.Background()))

	// The subscription is established during the handshake; publish after
	// the connected envelope has arrived.
	deadline := time.Now().Add(2 * time.Second)
	for c.ConnectionID() == "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s.Publish("news", s.NewEnvelope(protocol.EnvelopeType("message"), map[string]any{"text": "flash"}))

	select {
	case env := <-received:
		text, _ := env.DataString("text")
		assert.Equal(t, "flash", text)
	case <-time.After(2 * time.Second):
		t.Fatal("published envelope not streamed")
	}
}

func TestHealthAndStatsEndpoints(t *testing.T) {
	srv := testServer(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	assert.Equal(t, "application/json", resp2.Header.Get("Content-Type"))
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	_, err := NewServer(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
