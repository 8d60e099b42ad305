// Package client provides the high-level Go SDK over the realtime
// connection core. It wires a transport, logger and metrics together behind
// one facade; all lifecycle semantics live in the core.
package client

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
	"github.com/pulselink/pulselink/internal/core/realtime"
	"github.com/pulselink/pulselink/internal/core/transport"
)

// Config holds configuration for the SDK client.
type Config struct {
	// Connection settings
	BaseURL   string
	Path      string
	Params    map[string]string
	Transport protocol.TransportKind

	// Lifecycle
	ConnectTimeout       time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	BackoffMode          protocol.BackoffMode
	MaxReconnectDelay    time.Duration

	// Health monitoring
	HeartbeatTimeout time.Duration
	PingInterval     time.Duration

	// Requests
	AuthTimeout    time.Duration
	RequestTimeout time.Duration
	WriteTimeout   time.Duration

	// Outbound queue capacity; 0 means unbounded.
	QueueCapacity int

	// Transport internals. Both optional.
	HTTPClient *http.Client
	TLSConfig  *tls.Config

	// Logging
	LogLevel log.Level
}

// DefaultConfig returns default SDK client configuration.
func DefaultConfig() Config {
	core := realtime.DefaultConfig()
	return Config{
		Path:                 core.Path,
		Transport:            core.Transport,
		ConnectTimeout:       core.ConnectTimeout,
		ReconnectInterval:    core.ReconnectInterval,
		MaxReconnectAttempts: core.MaxReconnectAttempts,
		BackoffMode:          core.BackoffMode,
		MaxReconnectDelay:    core.MaxReconnectDelay,
		HeartbeatTimeout:     core.HeartbeatTimeout,
		PingInterval:         core.PingInterval,
		AuthTimeout:          core.AuthTimeout,
		RequestTimeout:       core.RequestTimeout,
		WriteTimeout:         core.WriteTimeout,
		QueueCapacity:        core.QueueCapacity,
		LogLevel:             log.LevelInfo,
	}
}

func (c Config) coreConfig() realtime.Config {
	return realtime.Config{
		BaseURL:              c.BaseURL,
		Path:                 c.Path,
		Params:               c.Params,
		Transport:            c.Transport,
		ConnectTimeout:       c.ConnectTimeout,
		ReconnectInterval:    c.ReconnectInterval,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		BackoffMode:          c.BackoffMode,
		MaxReconnectDelay:    c.MaxReconnectDelay,
		HeartbeatTimeout:     c.HeartbeatTimeout,
		PingInterval:         c.PingInterval,
		AuthTimeout:          c.AuthTimeout,
		RequestTimeout:       c.RequestTimeout,
		WriteTimeout:         c.WriteTimeout,
		QueueCapacity:        c.QueueCapacity,
	}
}

// Client is the high-level connection handle.
type Client struct {
	core   *realtime.Client
	logger log.Log
}

// New creates an SDK client for the configured transport.
func New(config Config) (*Client, error) {
	logger := log.New(config.LogLevel).With(log.String("component", "sdk"))

	var dialer transport.Dialer
	switch config.Transport {
	case protocol.TransportSSE:
		dialer = transport.NewSSEDialer(config.HTTPClient, logger)
	case protocol.TransportQUIC:
		dialer = transport.NewQUICDialer(config.TLSConfig, logger)
	default:
		dialer = transport.NewWebSocketDialer(config.WriteTimeout, logger)
	}

	core, err := realtime.New(config.coreConfig(), dialer, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Client created",
		log.String("client_id", core.ID()),
		log.String("transport", string(dialer.Kind())))

	return &Client{core: core, logger: logger}, nil
}

// Connect establishes the connection.
func (c *Client) Connect(ctx context.Context) error {
	return c.core.Connect(ctx)
}

// Disconnect tears the connection down and clears any buffered outbound
// traffic. The client can connect again afterwards.
func (c *Client) Disconnect() error {
	return c.core.Disconnect()
}

// Close disconnects and releases the client permanently.
func (c *Client) Close() error {
	return c.core.Close()
}

// ID returns the process-local client ID.
func (c *Client) ID() string { return c.core.ID() }

// State returns the current connection state.
func (c *Client) State() protocol.ConnectionState { return c.core.State() }

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool { return c.core.State() == protocol.StateConnected }

// IsAuthenticated reports whether the current connection has been
// authenticated.
func (c *Client) IsAuthenticated() bool { return c.core.IsAuthenticated() }

// ConnectionID returns the server-assigned connection ID, if any.
func (c *Client) ConnectionID() string { return c.core.ConnectionID() }

// On registers a listener for an envelope type.
func (c *Client) On(t protocol.EnvelopeType, fn realtime.Listener) realtime.ListenerID {
	return c.core.On(t, fn)
}

// Once registers a listener removed after its first invocation.
func (c *Client) Once(t protocol.EnvelopeType, fn realtime.Listener) realtime.ListenerID {
	return c.core.Once(t, fn)
}

// Off removes a previously registered listener.
func (c *Client) Off(t protocol.EnvelopeType, id realtime.ListenerID) {
	c.core.Off(t, id)
}

// OnEvent registers a lifecycle event handler.
func (c *Client) OnEvent(t realtime.EventType, h realtime.EventHandler) {
	c.core.OnEvent(t, h)
}

// NewEnvelope builds an application envelope with a fresh message ID.
func (c *Client) NewEnvelope(t protocol.EnvelopeType, data map[string]any) *protocol.Envelope {
	return c.core.NewEnvelope(t, data)
}

// Send transmits an envelope, buffering it when the connection is down.
func (c *Client) Send(env *protocol.Envelope) error {
	return c.core.Send(env)
}

// SendJSON builds and transmits an envelope of the given type.
func (c *Client) SendJSON(t protocol.EnvelopeType, data map[string]any) error {
	return c.core.Send(c.core.NewEnvelope(t, data))
}

// SendAndWait transmits an envelope and waits for its correlated reply.
func (c *Client) SendAndWait(ctx context.Context, env *protocol.Envelope, timeout time.Duration) (*protocol.Envelope, error) {
	return c.core.SendAndWait(ctx, env, timeout)
}

// Subscribe subscribes to the given channels and waits for the server
// acknowledgement.
func (c *Client) Subscribe(ctx context.Context, channels ...string) error {
	return c.core.Subscribe(ctx, channels...)
}

// Unsubscribe unsubscribes from the given channels.
func (c *Client) Unsubscribe(ctx context.Context, channels ...string) error {
	return c.core.Unsubscribe(ctx, channels...)
}

// SendCommand issues a command and returns the server's reply.
func (c *Client) SendCommand(ctx context.Context, command string, params map[string]any) (*protocol.Envelope, error) {
	return c.core.SendCommand(ctx, command, params)
}

// Authenticate sends the auth token and waits for acknowledgement.
func (c *Client) Authenticate(ctx context.Context, token string) error {
	return c.core.Authenticate(ctx, token)
}

// Ping measures round-trip latency to the server.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	return c.core.Ping(ctx)
}
