package realtime

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulselink/pulselink/internal/core/protocol"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://example.com"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty base url":      func(c *Config) { c.BaseURL = "" },
		"unknown transport":   func(c *Config) { c.Transport = "carrier-pigeon" },
		"unknown backoff":     func(c *Config) { c.BackoffMode = "quadratic" },
		"negative attempts":   func(c *Config) { c.MaxReconnectAttempts = -1 },
		"negative queue":      func(c *Config) { c.QueueCapacity = -1 },
		"zero interval":       func(c *Config) { c.ReconnectInterval = 0 },
		"zero heartbeat":      func(c *Config) { c.HeartbeatTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestEndpointRewritesWebSocketScheme(t *testing.T) {
	cfg := validConfig()
	cfg.Path = "/ws"
	assert.Equal(t, "wss://example.com/ws", cfg.Endpoint())

	cfg.BaseURL = "http://localhost:8080/"
	assert.Equal(t, "ws://localhost:8080/ws", cfg.Endpoint())
}

func TestEndpointKeepsSchemeForPushStream(t *testing.T) {
	cfg := validConfig()
	cfg.Transport = protocol.TransportSSE
	cfg.Path = "/events"
	cfg.Params = map[string]string{"client_id": "abc", "channel": "news"}
	assert.Equal(t, "https://example.com/events?channel=news&client_id=abc", cfg.Endpoint())
}

func TestEndpointPassesThroughForQUIC(t *testing.T) {
	cfg := validConfig()
	cfg.Transport = protocol.TransportQUIC
	cfg.BaseURL = "example.com:4433"
	assert.Equal(t, "example.com:4433", cfg.Endpoint())
}

func TestLoadConfigLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
baseUrl: https://rt.example.com
transport: sse
path: /stream
heartbeatTimeout: 45s
maxReconnectAttempts: 3
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://rt.example.com", cfg.BaseURL)
	assert.Equal(t, protocol.TransportSSE, cfg.Transport)
	assert.Equal(t, "/stream", cfg.Path)
	assert.Equal(t, 45*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 3, cfg.MaxReconnectAttempts)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 256, cfg.QueueCapacity)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
