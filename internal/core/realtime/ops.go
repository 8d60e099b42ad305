package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/pulselink/pulselink/internal/core/protocol"
)

// SendAndWait transmits a correlated envelope and blocks until the reply
// carrying its message_id arrives, the deadline elapses, or ctx is
// cancelled. Exactly one outcome occurs; a late reply after the deadline is
// ignored. A zero timeout uses the configured RequestTimeout.
func (c *Client) SendAndWait(ctx context.Context, env *protocol.Envelope, timeout time.Duration) (*protocol.Envelope, error) {
	if timeout <= 0 {
		timeout = c.config.RequestTimeout
	}
	return c.request(ctx, env, timeout, &protocol.RequestTimeoutError{MessageID: env.MessageID, Timeout: timeout})
}

// request is the correlated-send primitive the typed operations build on.
func (c *Client) request(ctx context.Context, env *protocol.Envelope, timeout time.Duration, timeoutErr error) (*protocol.Envelope, error) {
	pr := c.correlator.track(env.MessageID, timeout, timeoutErr)

	// Queuing while disconnected is fine: the deadline keeps running and a
	// reply after the flush still resolves the handle.
	if err := c.Send(env); err != nil {
		c.correlator.fail(env.MessageID, err)
	}

	select {
	case out := <-pr.done:
		return out.env, out.err
	case <-ctx.Done():
		c.correlator.fail(env.MessageID, ctx.Err())
		out := <-pr.done
		return out.env, out.err
	}
}

// Subscribe asks the server to add the client to the given channels.
func (c *Client) Subscribe(ctx context.Context, channels ...string) error {
	env := protocol.NewSubscribeEnvelope(c.gen, channels)
	_, err := c.SendAndWait(ctx, env, 0)
	return err
}

// Unsubscribe removes the client from the given channels.
func (c *Client) Unsubscribe(ctx context.Context, channels ...string) error {
	env := protocol.NewUnsubscribeEnvelope(c.gen, channels)
	_, err := c.SendAndWait(ctx, env, 0)
	return err
}

// SendCommand issues a generic correlated command and returns the reply
// envelope.
func (c *Client) SendCommand(ctx context.Context, command string, params map[string]any) (*protocol.Envelope, error) {
	env := protocol.NewCommandEnvelope(c.gen, command, params)
	return c.SendAndWait(ctx, env, 0)
}

// Authenticate submits a token and waits for the server's verdict under the
// dedicated auth timeout, so an auth failure is distinguishable from a
// generic command timeout. Failure rejects this call only; the connection
// stays open.
func (c *Client) Authenticate(ctx context.Context, token string) error {
	env := protocol.NewAuthEnvelope(c.gen, token)

	reply, err := c.request(ctx, env, c.config.AuthTimeout, &protocol.AuthError{Timeout: true})
	if err != nil {
		var serverErr *protocol.ServerError
		if errors.As(err, &serverErr) {
			return &protocol.AuthError{Reason: serverErr.Message}
		}
		return err
	}

	if reply.Type == protocol.TypeSuccess || reply.Type == protocol.TypeConnected {
		c.mu.Lock()
		c.authenticated = true
		c.mu.Unlock()
	}
	return nil
}

// Ping round-trips a correlated ping and reports the latency.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	env := protocol.NewEnvelopeBuilder(c.gen).WithType(protocol.TypePing).Build()
	start := time.Now()
	if _, err := c.SendAndWait(ctx, env, 0); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
