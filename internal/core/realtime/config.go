package realtime

import (
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulselink/pulselink/internal/core/protocol"
)

// Config holds configuration for one client instance.
type Config struct {
	// Connection settings
	BaseURL   string                 `yaml:"baseUrl"`
	Path      string                 `yaml:"path"`
	Params    map[string]string      `yaml:"params"`
	Transport protocol.TransportKind `yaml:"transport"`

	// Lifecycle
	AutoConnect    bool          `yaml:"autoConnect"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`

	// Reconnection
	ReconnectInterval    time.Duration        `yaml:"reconnectInterval"`
	MaxReconnectAttempts int                  `yaml:"maxReconnectAttempts"`
	BackoffMode          protocol.BackoffMode `yaml:"backoffMode"`
	MaxReconnectDelay    time.Duration        `yaml:"maxReconnectDelay"`

	// Liveness
	HeartbeatTimeout time.Duration `yaml:"heartbeatTimeout"`
	PingInterval     time.Duration `yaml:"pingInterval"`

	// Requests
	AuthTimeout    time.Duration `yaml:"authTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`

	// Outbound queue. 0 means unbounded; when full the oldest entry is
	// dropped.
	QueueCapacity int `yaml:"queueCapacity"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Path:                 "/ws",
		Transport:            protocol.TransportWebSocket,
		ConnectTimeout:       30 * time.Second,
		ReconnectInterval:    time.Second,
		MaxReconnectAttempts: 10,
		BackoffMode:          protocol.BackoffExponential,
		MaxReconnectDelay:    30 * time.Second,
		HeartbeatTimeout:     60 * time.Second,
		PingInterval:         30 * time.Second,
		AuthTimeout:          10 * time.Second,
		RequestTimeout:       10 * time.Second,
		WriteTimeout:         10 * time.Second,
		QueueCapacity:        256,
	}
}

// yamlDuration accepts both Go duration strings ("45s") and raw nanosecond
// integers in config files.
type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return perr
		}
		*d = yamlDuration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = yamlDuration(n)
	return nil
}

// UnmarshalYAML layers the decoded document over whatever values the Config
// already holds, so absent keys keep their defaults.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	aux := struct {
		BaseURL   string                 `yaml:"baseUrl"`
		Path      string                 `yaml:"path"`
		Params    map[string]string      `yaml:"params"`
		Transport protocol.TransportKind `yaml:"transport"`

		AutoConnect    bool         `yaml:"autoConnect"`
		ConnectTimeout yamlDuration `yaml:"connectTimeout"`

		ReconnectInterval    yamlDuration         `yaml:"reconnectInterval"`
		MaxReconnectAttempts int                  `yaml:"maxReconnectAttempts"`
		BackoffMode          protocol.BackoffMode `yaml:"backoffMode"`
		MaxReconnectDelay    yamlDuration         `yaml:"maxReconnectDelay"`

		HeartbeatTimeout yamlDuration `yaml:"heartbeatTimeout"`
		PingInterval     yamlDuration `yaml:"pingInterval"`

		AuthTimeout    yamlDuration `yaml:"authTimeout"`
		RequestTimeout yamlDuration `yaml:"requestTimeout"`
		WriteTimeout   yamlDuration `yaml:"writeTimeout"`

		QueueCapacity int `yaml:"queueCapacity"`
	}{
		BaseURL:              c.BaseURL,
		Path:                 c.Path,
		Params:               c.Params,
		Transport:            c.Transport,
		AutoConnect:          c.AutoConnect,
		ConnectTimeout:       yamlDuration(c.ConnectTimeout),
		ReconnectInterval:    yamlDuration(c.ReconnectInterval),
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		BackoffMode:          c.BackoffMode,
		MaxReconnectDelay:    yamlDuration(c.MaxReconnectDelay),
		HeartbeatTimeout:     yamlDuration(c.HeartbeatTimeout),
		PingInterval:         yamlDuration(c.PingInterval),
		AuthTimeout:          yamlDuration(c.AuthTimeout),
		RequestTimeout:       yamlDuration(c.RequestTimeout),
		WriteTimeout:         yamlDuration(c.WriteTimeout),
		QueueCapacity:        c.QueueCapacity,
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	c.BaseURL = aux.BaseURL
	c.Path = aux.Path
	c.Params = aux.Params
	c.Transport = aux.Transport
	c.AutoConnect = aux.AutoConnect
	c.ConnectTimeout = time.Duration(aux.ConnectTimeout)
	c.ReconnectInterval = time.Duration(aux.ReconnectInterval)
	c.MaxReconnectAttempts = aux.MaxReconnectAttempts
	c.BackoffMode = aux.BackoffMode
	c.MaxReconnectDelay = time.Duration(aux.MaxReconnectDelay)
	c.HeartbeatTimeout = time.Duration(aux.HeartbeatTimeout)
	c.PingInterval = time.Duration(aux.PingInterval)
	c.AuthTimeout = time.Duration(aux.AuthTimeout)
	c.RequestTimeout = time.Duration(aux.RequestTimeout)
	c.WriteTimeout = time.Duration(aux.WriteTimeout)
	c.QueueCapacity = aux.QueueCapacity
	return nil
}

// LoadConfig reads a YAML config file, layering it over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the client cannot run with.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return ErrInvalidConfig
	}
	switch c.Transport {
	case protocol.TransportSSE, protocol.TransportWebSocket, protocol.TransportQUIC:
	default:
		return ErrInvalidConfig
	}
	switch c.BackoffMode {
	case protocol.BackoffFixed, protocol.BackoffExponential:
	default:
		return ErrInvalidConfig
	}
	if c.MaxReconnectAttempts < 0 || c.QueueCapacity < 0 {
		return ErrInvalidConfig
	}
	if c.ReconnectInterval <= 0 || c.HeartbeatTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Endpoint builds the dial target: path plus query parameters appended to
// the base URL. WebSocket endpoints get their scheme rewritten; QUIC
// endpoints are plain host:port and pass through untouched.
func (c Config) Endpoint() string {
	if c.Transport == protocol.TransportQUIC {
		return c.BaseURL
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + c.Path
	if c.Transport == protocol.TransportWebSocket {
		endpoint = strings.Replace(endpoint, "https://", "wss://", 1)
		endpoint = strings.Replace(endpoint, "http://", "ws://", 1)
	}
	if len(c.Params) > 0 {
		values := url.Values{}
		for k, v := range c.Params {
			values.Set(k, v)
		}
		endpoint += "?" + values.Encode()
	}
	return endpoint
}
