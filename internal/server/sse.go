package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

// sseConn is one push-stream client. Envelopes are queued into a buffered
// channel drained by the handler goroutine; a full queue drops the envelope
// rather than stalling the hub.
type sseConn struct {
	connID string
	out    chan *protocol.Envelope
	logger log.Log
}

func (c *sseConn) id() string { return c.connID }

func (c *sseConn) deliver(env *protocol.Envelope) {
	select {
	case c.out <- env:
	default:
		c.logger.Debug("Stream backlogged, envelope dropped")
	}
}

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	connID := uuid.NewString()
	c := &sseConn{
		connID: connID,
		out:    make(chan *protocol.Envelope, 64),
		logger: s.logger.With(log.String("connection_id", connID)),
	}

	// Channels come from the query string; the push stream has no inbound
	// path to subscribe later.
	channels := splitChannels(r.URL.Query().Get("channels"))
	for _, channel := range channels {
		s.hub.subscribe(channel, c)
	}
	defer s.hub.drop(c)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	connected := s.NewEnvelope(protocol.TypeConnected, map[string]any{
		"connection_id": connID,
		"channels":      channels,
	})
	if err := writeEvent(w, connected); err != nil {
		return
	}
	flusher.Flush()
	s.logger.Info("Stream connected", log.String("connection_id", connID))

	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.out:
			if err := writeEvent(w, env); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			// Comment line, liveness only.
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			s.logger.Info("Stream disconnected", log.String("connection_id", connID))
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, env *protocol.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", raw)
	return err
}

func splitChannels(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	channels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			channels = append(channels, p)
		}
	}
	return channels
}
