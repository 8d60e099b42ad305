// Package state adapts the callback-driven realtime client to channel-based
// consumption. Every stream is a buffered channel with drop-on-full
// semantics: a slow consumer loses notifications instead of stalling the
// connection goroutines.
package state

import (
	"sync"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
	"github.com/pulselink/pulselink/internal/core/realtime"
	"github.com/pulselink/pulselink/sdk/go/client"
)

const defaultBuffer = 64

// StateChange is one lifecycle transition observed on the connection.
type StateChange struct {
	Event realtime.EventType
	State protocol.ConnectionState
	Err   error
}

// Stream exposes a client's traffic as channels.
type Stream struct {
	client *client.Client
	logger log.Log
	buffer int

	mu       sync.Mutex
	closed   bool
	states   []chan StateChange
	errs     []chan error
	watchers []watcher
}

type watcher struct {
	envelopeType protocol.EnvelopeType
	listenerID   realtime.ListenerID
	ch           chan *protocol.Envelope
}

// Option customizes a stream.
type Option func(*Stream)

// WithBuffer sets the per-channel buffer size.
func WithBuffer(n int) Option {
	return func(s *Stream) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// NewStream attaches channel adapters to a client. Close the stream before
// closing the client.
func NewStream(c *client.Client, logger log.Log, opts ...Option) *Stream {
	s := &Stream{
		client: c,
		logger: logger.With(log.String("component", "state")),
		buffer: defaultBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, t := range []realtime.EventType{
		realtime.EventConnected,
		realtime.EventDisconnected,
		realtime.EventReconnecting,
		realtime.EventErrored,
	} {
		c.OnEvent(t, s.onEvent)
	}

	return s
}

// States returns a channel of lifecycle transitions.
func (s *Stream) States() <-chan StateChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan StateChange, s.buffer)
	s.states = append(s.states, ch)
	return ch
}

// Errors returns a channel carrying errors from reconnecting and errored
// transitions.
func (s *Stream) Errors() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan error, s.buffer)
	s.errs = append(s.errs, ch)
	return ch
}

// Envelopes returns a channel of inbound envelopes of one type.
func (s *Stream) Envelopes(t protocol.EnvelopeType) <-chan *protocol.Envelope {
	ch := make(chan *protocol.Envelope, s.buffer)

	// The send happens under mu so an in-flight dispatch cannot race a
	// concurrent Close of the channel.
	id := s.client.On(t, func(env *protocol.Envelope) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		select {
		case ch <- env:
		default:
			s.logger.Warn("Envelope dropped, consumer too slow", log.String("type", string(t)))
		}
	})

	s.mu.Lock()
	s.watchers = append(s.watchers, watcher{envelopeType: t, listenerID: id, ch: ch})
	s.mu.Unlock()
	return ch
}

// Close detaches all envelope listeners and closes every channel handed out.
// Lifecycle handlers stay registered but become no-ops.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	for _, w := range s.watchers {
		s.client.Off(w.envelopeType, w.listenerID)
		close(w.ch)
	}
	s.watchers = nil
	for _, ch := range s.states {
		close(ch)
	}
	s.states = nil
	for _, ch := range s.errs {
		close(ch)
	}
	s.errs = nil
}

func (s *Stream) onEvent(ev realtime.Event) {
	change := StateChange{Event: ev.Type, State: ev.State, Err: ev.Err}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.states {
		select {
		case ch <- change:
		default:
		}
	}
	if ev.Err == nil {
		return
	}
	for _, ch := range s.errs {
		select {
		case ch <- ev.Err:
		default:
		}
	}
}
