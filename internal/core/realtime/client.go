// Package realtime implements the reusable connection core: one lifecycle
// manager driving a push-stream or socket transport, with liveness
// monitoring, bounded reconnection, typed dispatch, request/response
// correlation and an outbound queue. The SDK adapters are thin layers over
// this package and add no state transitions of their own.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
	"github.com/pulselink/pulselink/internal/core/transport"
)

// session groups the per-connect-cycle resources: its epoch token and the
// stop channel its monitor goroutines select on. A fresh session exists per
// transport handle; tearing it down bumps the client epoch so callbacks from
// the dead session observe a mismatch and do nothing.
type session struct {
	epoch uint64
	stop  chan struct{}
}

// Client owns one logical connection. All state mutation happens under mu;
// listener and event handler invocation happens outside it.
type Client struct {
	id     string
	config Config
	dialer transport.Dialer
	logger log.Log

	gen        *protocol.IDGenerator
	dispatcher *dispatcher
	correlator *correlator
	metrics    *Metrics

	handlerMu     sync.RWMutex
	eventHandlers map[EventType][]EventHandler

	mu             sync.Mutex
	state          protocol.ConnectionState
	closed         bool
	epoch          uint64
	sess           *session
	tr             transport.Transport
	connectionID   string
	authenticated  bool
	policy         *reconnectPolicy
	queue          *outboundQueue
	lastSeen       time.Time
	reconnectTimer *time.Timer
}

// Option customizes a client beyond its Config.
type Option func(*Client)

// WithMetrics attaches a metrics set. Without it the client records into an
// unregistered local set.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a client for the given transport dialer. The client starts
// disconnected; call Connect (or set AutoConnect and use the registry
// factory) to bring it up.
func New(cfg Config, dialer transport.Dialer, logger log.Log, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		id:            uuid.NewString(),
		config:        cfg,
		dialer:        dialer,
		logger:        logger.With(log.String("component", "realtime"), log.String("transport", string(dialer.Kind()))),
		gen:           protocol.NewIDGenerator(),
		eventHandlers: make(map[EventType][]EventHandler),
		state:         protocol.StateDisconnected,
		policy:        newReconnectPolicy(cfg),
		queue:         newOutboundQueue(cfg.QueueCapacity),
	}
	c.dispatcher = newDispatcher(logger)
	c.correlator = newCorrelator(logger)

	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}

	c.logger.Debug("Client created", log.String("client_id", c.id))

	return c, nil
}

// ID returns the process-local client ID.
func (c *Client) ID() string { return c.id }

// State returns the current connection state.
func (c *Client) State() protocol.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionID returns the server-assigned connection ID, empty until the
// handshake confirms one and after every disconnect.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// IsAuthenticated reports whether the server has acknowledged an auth
// request on the current connection.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// QueueLen returns the number of envelopes buffered for transmission.
func (c *Client) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// On registers a listener for an envelope type.
func (c *Client) On(t protocol.EnvelopeType, fn Listener) ListenerID {
	return c.dispatcher.on(t, fn, false)
}

// Once registers a listener that is removed after its first invocation.
func (c *Client) Once(t protocol.EnvelopeType, fn Listener) ListenerID {
	return c.dispatcher.on(t, fn, true)
}

// Off removes a previously registered listener.
func (c *Client) Off(t protocol.EnvelopeType, id ListenerID) {
	c.dispatcher.off(t, id)
}

// OnEvent registers a lifecycle event handler.
func (c *Client) OnEvent(t EventType, h EventHandler) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.eventHandlers[t] = append(c.eventHandlers[t], h)
}

// NewEnvelope builds an application envelope with a fresh message ID.
func (c *Client) NewEnvelope(t protocol.EnvelopeType, data map[string]any) *protocol.Envelope {
	return protocol.NewEnvelopeBuilder(c.gen).WithType(t).WithData(data).Build()
}

// Connect initiates the transport handshake. It returns once the transport
// reports open, or with the handshake error. A manual Connect after a
// terminal capacity failure resets the attempt budget and re-enters the
// normal lifecycle. A failed Connect still schedules automatic retries per
// the reconnect policy.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	switch c.state {
	case protocol.StateConnected, protocol.StateConnecting:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.stopReconnectTimerLocked()
	c.policy.reset()
	c.setStateLocked(protocol.StateConnecting)
	epoch := c.epoch
	c.mu.Unlock()

	return c.dial(ctx, epoch)
}

// dial performs one transport handshake attempt for the given epoch.
func (c *Client) dial(ctx context.Context, epoch uint64) error {
	dialCtx := ctx
	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	h := transport.Handlers{
		OnMessage:  func(raw []byte) { c.handleInbound(epoch, raw) },
		OnLiveness: func() { c.touchLiveness(epoch) },
		OnClose:    func(err error) { c.handleTransportClose(epoch, err) },
	}

	endpoint := c.config.Endpoint()
	c.logger.Info("Connecting", log.String("endpoint", endpoint))

	tr, err := c.dialer.Dial(dialCtx, endpoint, h)
	if err != nil {
		c.logger.Error("Connect failed", log.Error(err))
		c.handleConnectFailure(epoch, err)
		return err
	}

	c.mu.Lock()
	if c.closed || epoch != c.epoch || c.state != protocol.StateConnecting {
		// Disconnected (or superseded) while the dial was in flight.
		c.mu.Unlock()
		_ = tr.Close()
		return ErrNotConnected
	}

	c.tr = tr
	c.setStateLocked(protocol.StateConnected)
	c.policy.reset()
	c.lastSeen = time.Now()
	c.sess = &session{epoch: epoch, stop: make(chan struct{})}
	sess := c.sess

	// Drain the outbound queue strictly FIFO before any newly submitted
	// send can acquire the mutex. A write failure mid-flush puts the unsent
	// remainder back at the head of the queue; the transport is then torn
	// down so the next cycle re-flushes it.
	var drainErr error
	buffered := c.queue.drain()
	for i, env := range buffered {
		if sendErr := c.transmitLocked(env); sendErr != nil {
			c.queue.requeue(buffered[i:])
			drainErr = sendErr
			c.logger.Warn("Queued send failed during drain, retaining remainder",
				log.Int("retained", len(buffered)-i), log.Error(sendErr))
			break
		}
	}
	c.metrics.queueDepth.Set(float64(c.queue.len()))
	c.mu.Unlock()

	go c.livenessLoop(sess)
	if c.dialer.Kind() != protocol.TransportSSE && c.config.PingInterval > 0 {
		go c.pingLoop(sess)
	}

	c.logger.Info("Connected", log.String("endpoint", endpoint))
	c.emit(Event{Type: EventConnected, State: protocol.StateConnected, Timestamp: time.Now()})

	if drainErr != nil {
		c.forceReconnect(sess, drainErr)
	}

	return nil
}

// Disconnect closes the transport deterministically and synchronously
// cancels every outstanding timer so no stale callback can resurrect the
// connection. Idempotent. The outbound queue is cleared.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	wasIdle := c.state == protocol.StateDisconnected && c.sess == nil && c.reconnectTimer == nil
	c.stopReconnectTimerLocked()
	tr := c.tr
	c.teardownSessionLocked()
	c.queue.clear()
	c.metrics.queueDepth.Set(0)
	c.setStateLocked(protocol.StateDisconnected)
	c.mu.Unlock()

	if wasIdle {
		return nil
	}

	if tr != nil {
		_ = tr.Close()
	}
	c.correlator.failAll(ErrNotConnected)

	c.logger.Info("Disconnected")
	c.emit(Event{Type: EventDisconnected, State: protocol.StateDisconnected, Timestamp: time.Now()})

	return nil
}

// Close disconnects and permanently disposes the client.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.Disconnect()
	c.correlator.failAll(ErrClientClosed)
	return err
}

// Send transmits the envelope immediately when connected; otherwise it is
// buffered and flushed in submission order on the next connect. Fire and
// forget: buffering is not an error. Push-stream clients cannot send.
func (c *Client) Send(env *protocol.Envelope) error {
	if c.dialer.Kind() == protocol.TransportSSE {
		return transport.ErrSendUnsupported
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if c.state == protocol.StateConnected {
		return c.transmitLocked(env)
	}

	if evicted := c.queue.push(env); evicted {
		c.metrics.queueDropped.Inc()
		c.logger.Warn("Outbound queue full, dropped oldest envelope")
	}
	c.metrics.queueDepth.Set(float64(c.queue.len()))
	return nil
}

// transmitLocked marshals and writes one envelope. Caller holds c.mu.
func (c *Client) transmitLocked(env *protocol.Envelope) error {
	if c.tr == nil {
		return ErrNotConnected
	}
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	if err = c.tr.Send(data); err != nil {
		return err
	}
	c.metrics.messagesSent.Inc()
	return nil
}

// touchLiveness records server activity for the heartbeat monitor.
func (c *Client) touchLiveness(epoch uint64) {
	c.mu.Lock()
	if epoch == c.epoch {
		c.lastSeen = time.Now()
	}
	c.mu.Unlock()
}

// handleInbound processes one raw frame from the transport read goroutine.
func (c *Client) handleInbound(epoch uint64, raw []byte) {
	c.mu.Lock()
	if c.closed || epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.lastSeen = time.Now()
	c.mu.Unlock()

	c.metrics.messagesReceived.Inc()

	env, err := protocol.Decode(raw)
	if err != nil {
		c.metrics.protocolErrors.Inc()
		c.logger.Warn("Dropping malformed payload", log.Error(err))
		return
	}

	// A reply to a pending request goes to the correlator exclusively.
	if env.CorrelationID != "" && c.correlator.resolve(env) {
		return
	}

	switch env.Type {
	case protocol.TypePing:
		c.replyPong(epoch, env)
	case protocol.TypeConnected:
		c.applyConnected(epoch, env)
	case protocol.TypeSuccess:
		c.applySuccess(epoch, env)
	}

	c.dispatcher.dispatch(env)
}

// replyPong answers an inbound ping, echoing its message_id as the pong's
// correlation_id.
func (c *Client) replyPong(epoch uint64, ping *protocol.Envelope) {
	pong := protocol.NewPongEnvelope(c.gen, ping.MessageID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	if err := c.transmitLocked(pong); err != nil {
		c.logger.Warn("Pong reply failed", log.Error(err))
	}
}

func (c *Client) applyConnected(epoch uint64, env *protocol.Envelope) {
	id, ok := env.DataString("connection_id")
	if !ok {
		return
	}
	c.mu.Lock()
	if epoch == c.epoch {
		c.connectionID = id
	}
	c.mu.Unlock()
	c.logger.Debug("Connection confirmed", log.String("connection_id", id))
}

// applySuccess handles success envelopes whose payload marks the connection
// as established or authenticated, before listeners are notified.
func (c *Client) applySuccess(epoch uint64, env *protocol.Envelope) {
	msg, _ := env.DataString("message")
	if msg == "" {
		msg, _ = env.DataString("status")
	}

	switch msg {
	case "Connected":
		if id, ok := env.DataString("connection_id"); ok {
			c.mu.Lock()
			if epoch == c.epoch {
				c.connectionID = id
			}
			c.mu.Unlock()
		}
	case "Authenticated":
		c.mu.Lock()
		if epoch == c.epoch {
			c.authenticated = true
		}
		c.mu.Unlock()
	}
}

// handleConnectFailure routes a failed handshake into the reconnect policy.
func (c *Client) handleConnectFailure(epoch uint64, cause error) {
	c.mu.Lock()
	if c.closed || epoch != c.epoch || c.state != protocol.StateConnecting {
		c.mu.Unlock()
		return
	}
	ev := c.scheduleReconnectLocked(cause)
	c.mu.Unlock()
	c.emit(ev)
}

// handleTransportClose reacts to a transport-level closure or error that was
// not requested locally.
func (c *Client) handleTransportClose(epoch uint64, cause error) {
	c.mu.Lock()
	if c.closed || epoch != c.epoch || c.sess == nil {
		c.mu.Unlock()
		return
	}
	c.logger.Warn("Connection lost", log.Error(cause))
	c.teardownSessionLocked()
	ev := c.scheduleReconnectLocked(cause)
	c.mu.Unlock()

	c.emit(Event{Type: EventDisconnected, State: protocol.StateDisconnected, Err: cause, Timestamp: time.Now()})
	c.emit(ev)
}

// forceReconnect tears the current transport down without waiting for the
// transport to report its own closure. Used by the liveness monitor and by
// a failed queue flush.
func (c *Client) forceReconnect(sess *session, cause error) {
	c.mu.Lock()
	if c.closed || sess.epoch != c.epoch || c.state != protocol.StateConnected {
		c.mu.Unlock()
		return
	}
	tr := c.tr
	c.teardownSessionLocked()
	ev := c.scheduleReconnectLocked(cause)
	c.mu.Unlock()

	if tr != nil {
		// Close marks the transport closed first, so its read loop will
		// not also report this closure.
		_ = tr.Close()
	}

	c.emit(Event{Type: EventDisconnected, State: protocol.StateDisconnected, Err: cause, Timestamp: time.Now()})
	c.emit(ev)
}

// scheduleReconnectLocked consumes one reconnect attempt and arms the delay
// timer, or transitions to the terminal Errored state when the budget is
// exhausted. Caller holds c.mu; the returned event must be emitted after
// unlocking.
func (c *Client) scheduleReconnectLocked(cause error) Event {
	delay, ok := c.policy.next()
	if !ok {
		c.setStateLocked(protocol.StateErrored)
		err := &protocol.CapacityError{Attempts: c.policy.maxAttempts}
		c.logger.Error("Reconnect attempts exhausted", log.Int("attempts", c.policy.maxAttempts), log.Error(cause))
		return Event{Type: EventErrored, State: protocol.StateErrored, Err: err, Timestamp: time.Now()}
	}

	c.setStateLocked(protocol.StateReconnecting)
	c.metrics.reconnects.Inc()
	attempt := c.policy.attempts
	epoch := c.epoch
	c.reconnectTimer = time.AfterFunc(delay, func() { c.reconnectFire(epoch) })

	c.logger.Info("Reconnect scheduled",
		log.Int("attempt", attempt),
		log.Duration("delay", delay))

	return Event{
		Type:      EventReconnecting,
		State:     protocol.StateReconnecting,
		Attempt:   attempt,
		Delay:     delay,
		Err:       cause,
		Timestamp: time.Now(),
	}
}

// reconnectFire runs when a reconnect delay elapses. Stale epochs are
// timers that Disconnect should have killed but that were already firing;
// they observe the mismatch and do nothing.
func (c *Client) reconnectFire(epoch uint64) {
	c.mu.Lock()
	if c.closed || epoch != c.epoch || c.state != protocol.StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = nil
	c.setStateLocked(protocol.StateConnecting)
	c.mu.Unlock()

	_ = c.dial(context.Background(), epoch)
}

// livenessLoop enforces the heartbeat timeout: if no liveness signal is seen
// for longer than the configured timeout while connected, the connection is
// forced into a reconnect cycle even though the transport reported nothing.
func (c *Client) livenessLoop(sess *session) {
	interval := c.config.HeartbeatTimeout / 2
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed || sess.epoch != c.epoch || c.state != protocol.StateConnected {
				c.mu.Unlock()
				return
			}
			stale := time.Since(c.lastSeen) > c.config.HeartbeatTimeout
			elapsed := time.Since(c.lastSeen)
			c.mu.Unlock()

			if stale {
				c.logger.Warn("Liveness deadline missed, forcing reconnect",
					log.Duration("since_last_seen", elapsed),
					log.Duration("timeout", c.config.HeartbeatTimeout))
				c.forceReconnect(sess, &protocol.TransportError{Op: "liveness check", Err: errors.New("heartbeat timeout")})
				return
			}
		}
	}
}

// pingLoop sends periodic keepalive pings on socket transports. The pong
// (or any other traffic) refreshes lastSeen; the liveness loop handles a
// silent peer.
func (c *Client) pingLoop(sess *session) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			env := protocol.NewEnvelopeBuilder(c.gen).WithType(protocol.TypePing).Build()

			c.mu.Lock()
			if c.closed || sess.epoch != c.epoch || c.state != protocol.StateConnected {
				c.mu.Unlock()
				return
			}
			err := c.transmitLocked(env)
			c.mu.Unlock()

			if err != nil {
				c.logger.Warn("Keepalive ping failed", log.Error(err))
			}
		}
	}
}

// teardownSessionLocked invalidates the current session: the epoch bump
// orphans every callback bound to it, and the stop channel halts its
// monitor goroutines. Caller holds c.mu.
func (c *Client) teardownSessionLocked() {
	c.epoch++
	if c.sess != nil {
		close(c.sess.stop)
		c.sess = nil
	}
	c.tr = nil
	c.connectionID = ""
	c.authenticated = false
}

func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	// Orphan a timer callback that may already be in flight.
	c.epoch++
}

func (c *Client) setStateLocked(s protocol.ConnectionState) {
	c.state = s
	c.metrics.state.Set(float64(s))
}

// emit fires lifecycle event handlers synchronously on the calling
// goroutine. Zero-valued events are skipped.
func (c *Client) emit(ev Event) {
	if ev.Type == "" {
		return
	}

	c.mu.Lock()
	ev.ConnectionID = c.connectionID
	c.mu.Unlock()

	c.handlerMu.RLock()
	handlers := append([]EventHandler(nil), c.eventHandlers[ev.Type]...)
	c.handlerMu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
