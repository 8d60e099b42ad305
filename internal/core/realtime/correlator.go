package realtime

import (
	"sync"
	"time"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

type requestOutcome struct {
	env *protocol.Envelope
	err error
}

// pendingRequest tracks one correlated send awaiting its reply.
type pendingRequest struct {
	messageID string
	done      chan requestOutcome
	timer     *time.Timer
}

// correlator overlays request/response semantics on the one-way message
// stream: outbound envelopes are tagged with a message_id and the reply
// carrying that id as correlation_id resolves the pending handle. Each
// pending request resolves exactly once; a late reply after deadline expiry
// finds no entry and is ignored.
type correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
	logger  log.Log
}

func newCorrelator(logger log.Log) *correlator {
	return &correlator{
		pending: make(map[string]*pendingRequest),
		logger:  logger.With(log.String("component", "correlator")),
	}
}

// track registers a pending request with a deadline. When the deadline
// elapses first the request rejects with timeoutErr.
func (c *correlator) track(messageID string, timeout time.Duration, timeoutErr error) *pendingRequest {
	pr := &pendingRequest{
		messageID: messageID,
		done:      make(chan requestOutcome, 1),
	}

	c.mu.Lock()
	c.pending[messageID] = pr
	c.mu.Unlock()

	pr.timer = time.AfterFunc(timeout, func() {
		c.fail(messageID, timeoutErr)
	})

	return pr
}

// resolve routes a correlated reply to its pending request. Returns false
// when no request matches, in which case the envelope belongs to the
// regular dispatch path.
func (c *correlator) resolve(env *protocol.Envelope) bool {
	c.mu.Lock()
	pr, ok := c.pending[env.CorrelationID]
	if ok {
		delete(c.pending, env.CorrelationID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	if pr.timer != nil {
		pr.timer.Stop()
	}
	if env.Type == protocol.TypeError {
		pr.done <- requestOutcome{err: &protocol.ServerError{Message: env.ErrorText()}}
	} else {
		pr.done <- requestOutcome{env: env}
	}
	return true
}

// fail rejects one pending request. A no-op when the request has already
// resolved.
func (c *correlator) fail(messageID string, err error) {
	c.mu.Lock()
	pr, ok := c.pending[messageID]
	if ok {
		delete(c.pending, messageID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if pr.timer != nil {
		pr.timer.Stop()
	}
	pr.done <- requestOutcome{err: err}
}

// failAll rejects every pending request and cancels its deadline timer.
// Called on explicit disconnect.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, pr := range pending {
		if pr.timer != nil {
			pr.timer.Stop()
		}
		pr.done <- requestOutcome{err: err}
	}
}

func (c *correlator) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
