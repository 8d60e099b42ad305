package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
	"github.com/pulselink/pulselink/internal/core/realtime"
	"github.com/pulselink/pulselink/sdk/go/client"
)

var (
	configPath string
	baseURL    string
	path       string
	transport  string
	authToken  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "pulsectl",
	Short: "Pulselink command-line client",
	Long: `pulsectl connects to a pulselink server over a push stream, socket or
QUIC transport and lets you tail channels, issue commands and measure
latency from the terminal.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML client config")
	rootCmd.PersistentFlags().StringVarP(&baseURL, "url", "u", "", "server base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&path, "path", "p", "", "endpoint path (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&transport, "transport", "t", "", "transport: sse, websocket or quic")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "authenticate with this token after connecting")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(pingCmd)
}

// buildConfig layers CLI flags over the config file (or the defaults).
func buildConfig() (client.Config, error) {
	cfg := client.DefaultConfig()

	if configPath != "" {
		core, err := realtime.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg.BaseURL = core.BaseURL
		cfg.Path = core.Path
		cfg.Params = core.Params
		cfg.Transport = core.Transport
		cfg.ConnectTimeout = core.ConnectTimeout
		cfg.ReconnectInterval = core.ReconnectInterval
		cfg.MaxReconnectAttempts = core.MaxReconnectAttempts
		cfg.BackoffMode = core.BackoffMode
		cfg.MaxReconnectDelay = core.MaxReconnectDelay
		cfg.HeartbeatTimeout = core.HeartbeatTimeout
		cfg.PingInterval = core.PingInterval
		cfg.AuthTimeout = core.AuthTimeout
		cfg.RequestTimeout = core.RequestTimeout
		cfg.WriteTimeout = core.WriteTimeout
		cfg.QueueCapacity = core.QueueCapacity
	}

	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if path != "" {
		cfg.Path = path
	}
	if transport != "" {
		cfg.Transport = protocol.TransportKind(transport)
	}
	cfg.LogLevel = log.LevelWarn
	if verbose {
		cfg.LogLevel = log.LevelDebug
	}
	return cfg, nil
}

// newConnectedClient builds a client, connects it and runs the optional
// token authentication.
func newConnectedClient(cfg client.Config) (*client.Client, error) {
	c, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err = c.Connect(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	if authToken != "" {
		if err = c.Authenticate(ctx, authToken); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}
