// Package server implements a development server speaking the pulselink wire
// protocol over WebSocket and server-push streams. It exists for local
// development, the CLI and the end-to-end tests; production deployments run
// their own backend.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

// Config holds development server configuration.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string

	// HeartbeatInterval paces heartbeat envelopes on sockets and comment
	// lines on push streams.
	HeartbeatInterval time.Duration

	// AuthToken, when set, is the only token Authenticate accepts. Empty
	// accepts any token.
	AuthToken string

	LogLevel log.Level
}

// DefaultConfig returns default development server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		HeartbeatInterval: 15 * time.Second,
		LogLevel:          log.LevelInfo,
	}
}

// Server is the development backend.
type Server struct {
	config Config
	logger log.Log
	hub    *hub
	gen    *protocol.IDGenerator

	mu         sync.Mutex
	httpServer *http.Server
	running    bool
	closed     bool
}

// NewServer builds a server from config.
func NewServer(config Config) (*Server, error) {
	if config.Addr == "" || config.HeartbeatInterval <= 0 {
		return nil, ErrInvalidConfig
	}
	logger := log.New(config.LogLevel).With(log.String("component", "server"))
	return &Server{
		config: config,
		logger: logger,
		hub:    newHub(logger),
		gen:    protocol.NewIDGenerator(),
	}, nil
}

// Handler returns the HTTP handler serving every endpoint. Useful for
// embedding the server under an existing mux or a test listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/events", s.handleEventStream)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start begins listening. It returns once the listener goroutine is running.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.running {
		return ErrServerAlreadyRunning
	}

	s.httpServer = &http.Server{Addr: s.config.Addr, Handler: s.Handler()}
	s.running = true

	go func() {
		s.logger.Info("Server listening", log.String("addr", s.config.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Listener failed", log.Error(err))
		}
	}()

	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()

	return srv.Shutdown(ctx)
}

// Publish fans an envelope out to every subscriber of a channel and returns
// the delivery count.
func (s *Server) Publish(channel string, env *protocol.Envelope) int {
	return s.hub.publish(channel, env)
}

// NewEnvelope builds a server-originated envelope.
func (s *Server) NewEnvelope(t protocol.EnvelopeType, data map[string]any) *protocol.Envelope {
	return protocol.NewEnvelopeBuilder(s.gen).WithType(t).WithData(data).Build()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"subscribers": s.hub.subscriberCount(),
		"channels":    s.hub.channelCount(),
		"timestamp":   time.Now().UTC(),
	})
}

// reply builds the correlated acknowledgement for a request envelope.
func (s *Server) reply(req *protocol.Envelope, t protocol.EnvelopeType, data map[string]any) *protocol.Envelope {
	return protocol.NewEnvelopeBuilder(s.gen).
		WithType(t).
		WithData(data).
		WithCorrelationID(req.MessageID).
		Build()
}

// checkToken validates an auth request's token.
func (s *Server) checkToken(token string) bool {
	if token == "" {
		return false
	}
	return s.config.AuthToken == "" || token == s.config.AuthToken
}
