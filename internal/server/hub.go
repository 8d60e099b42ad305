package server

import (
	"sync"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

// subscriber receives envelopes published to channels it subscribed to.
// deliver must not block.
type subscriber interface {
	id() string
	deliver(env *protocol.Envelope)
}

// hub tracks channel subscriptions across all connected clients and fans
// published envelopes out to them.
type hub struct {
	logger log.Log

	mu       sync.RWMutex
	channels map[string]map[string]subscriber
}

func newHub(logger log.Log) *hub {
	return &hub{
		logger:   logger.With(log.String("component", "hub")),
		channels: make(map[string]map[string]subscriber),
	}
}

func (h *hub) subscribe(channel string, s subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[string]subscriber)
		h.channels[channel] = subs
	}
	subs[s.id()] = s
}

func (h *hub) unsubscribe(channel string, s subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(subs, s.id())
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

// drop removes the subscriber from every channel. Called on disconnect.
func (h *hub) drop(s subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel, subs := range h.channels {
		delete(subs, s.id())
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

// publish fans an envelope out to every subscriber of the channel and
// returns the number of deliveries.
func (h *hub) publish(channel string, env *protocol.Envelope) int {
	h.mu.RLock()
	targets := make([]subscriber, 0, len(h.channels[channel]))
	for _, s := range h.channels[channel] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.deliver(env)
	}
	return len(targets)
}

func (h *hub) subscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, subs := range h.channels {
		for id := range subs {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

func (h *hub) channelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}
