package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsConn is one socket client.
type wsConn struct {
	server *Server
	conn   *websocket.Conn
	connID string
	logger log.Log

	// Serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	authed bool
}

func (c *wsConn) id() string { return c.connID }

func (c *wsConn) deliver(env *protocol.Envelope) {
	if err := c.write(env); err != nil {
		c.logger.Debug("Delivery failed", log.Error(err))
	}
}

func (c *wsConn) write(env *protocol.Envelope) error {
	raw, err := env.Marshal()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Upgrade failed", log.Error(err))
		return
	}

	connID := uuid.NewString()
	c := &wsConn{
		server: s,
		conn:   conn,
		connID: connID,
		logger: s.logger.With(log.String("connection_id", connID)),
	}
	defer func() {
		s.hub.drop(c)
		_ = conn.Close()
	}()

	// Handshake confirmation carries the server-assigned connection ID.
	connected := s.NewEnvelope(protocol.TypeConnected, map[string]any{
		"connection_id": c.connID,
	})
	if err = c.write(connected); err != nil {
		return
	}
	s.logger.Info("Socket connected", log.String("connection_id", c.connID))

	stop := make(chan struct{})
	defer close(stop)
	go c.heartbeatLoop(stop)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("Socket disconnected", log.String("connection_id", c.connID))
			return
		}
		c.handle(raw)
	}
}

func (c *wsConn) heartbeatLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.server.config.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = c.write(c.server.NewEnvelope(protocol.TypeHeartbeat, nil))
		case <-stop:
			return
		}
	}
}

func (c *wsConn) handle(raw []byte) {
	env, err := protocol.Decode(raw)
	if err != nil {
		_ = c.write(c.server.NewEnvelope(protocol.TypeError, map[string]any{
			"error": "Invalid JSON format",
		}))
		return
	}

	switch env.Type {
	case protocol.TypeAuth:
		c.handleAuth(env)
	case protocol.TypeSubscribe:
		c.handleSubscribe(env)
	case protocol.TypeUnsubscribe:
		c.handleUnsubscribe(env)
	case protocol.TypeCommand:
		c.handleCommand(env)
	case protocol.TypePing:
		_ = c.write(protocol.NewPongEnvelope(c.server.gen, env.MessageID))
	case protocol.TypePong, protocol.TypeHeartbeat:
		// Liveness only.
	default:
		c.logger.Debug("Unhandled envelope", log.String("type", string(env.Type)))
	}
}

func (c *wsConn) handleAuth(env *protocol.Envelope) {
	token, _ := env.DataString("token")
	if !c.server.checkToken(token) {
		_ = c.write(c.server.reply(env, protocol.TypeError, map[string]any{
			"error": "invalid token",
		}))
		return
	}
	c.authed = true
	_ = c.write(c.server.reply(env, protocol.TypeSuccess, map[string]any{
		"message": "Authenticated",
	}))
}

func (c *wsConn) handleSubscribe(env *protocol.Envelope) {
	channels, ok := env.DataStrings("channels")
	if !ok || len(channels) == 0 {
		_ = c.write(c.server.reply(env, protocol.TypeError, map[string]any{
			"error": "missing channels",
		}))
		return
	}
	for _, channel := range channels {
		c.server.hub.subscribe(channel, c)
	}
	_ = c.write(c.server.reply(env, protocol.TypeSuccess, map[string]any{
		"message":  "Subscribed",
		"channels": channels,
	}))
}

func (c *wsConn) handleUnsubscribe(env *protocol.Envelope) {
	channels, ok := env.DataStrings("channels")
	if !ok {
		_ = c.write(c.server.reply(env, protocol.TypeError, map[string]any{
			"error": "missing channels",
		}))
		return
	}
	for _, channel := range channels {
		c.server.hub.unsubscribe(channel, c)
	}
	_ = c.write(c.server.reply(env, protocol.TypeSuccess, map[string]any{
		"message":  "Unsubscribed",
		"channels": channels,
	}))
}

// handleCommand acknowledges a command. The development server has no
// command backend; it echoes the command so round-trip tests have a reply.
func (c *wsConn) handleCommand(env *protocol.Envelope) {
	command, _ := env.DataString("command")
	_ = c.write(c.server.reply(env, protocol.TypeSuccess, map[string]any{
		"message": "Accepted",
		"command": command,
	}))
}
