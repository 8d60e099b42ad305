package realtime

import (
	"sync"

	"github.com/pulselink/pulselink/internal/core/observability/log"
	"github.com/pulselink/pulselink/internal/core/protocol"
)

// ListenerID identifies a registered listener for later removal.
type ListenerID uint64

type registration struct {
	id       ListenerID
	fn       Listener
	once     bool
	consumed bool
}

// dispatcher routes inbound envelopes by type to registered listeners in
// registration order. A panicking listener never prevents the remaining
// listeners from running.
type dispatcher struct {
	mu        sync.Mutex
	listeners map[protocol.EnvelopeType][]*registration
	nextID    ListenerID
	logger    log.Log
}

func newDispatcher(logger log.Log) *dispatcher {
	return &dispatcher{
		listeners: make(map[protocol.EnvelopeType][]*registration),
		logger:    logger.With(log.String("component", "dispatcher")),
	}
}

// on registers a listener for an envelope type. once listeners are removed
// automatically after their first invocation.
func (d *dispatcher) on(t protocol.EnvelopeType, fn Listener, once bool) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	reg := &registration{id: d.nextID, fn: fn, once: once}
	d.listeners[t] = append(d.listeners[t], reg)
	return reg.id
}

// off removes a listener. Unknown IDs are ignored.
func (d *dispatcher) off(t protocol.EnvelopeType, id ListenerID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := d.listeners[t]
	for i, reg := range regs {
		if reg.id == id {
			d.listeners[t] = append(regs[:i], regs[i+1:]...)
			return
		}
	}
}

// dispatch invokes every listener registered for the envelope's type, in
// registration order. Fire-once listeners are marked consumed before their
// invocation so a re-entrant dispatch cannot fire them twice.
func (d *dispatcher) dispatch(env *protocol.Envelope) {
	d.mu.Lock()
	regs := d.listeners[env.Type]
	batch := make([]*registration, 0, len(regs))
	for _, reg := range regs {
		if reg.consumed {
			continue
		}
		if reg.once {
			reg.consumed = true
		}
		batch = append(batch, reg)
	}
	if len(batch) > 0 {
		d.removeConsumedLocked(env.Type)
	}
	d.mu.Unlock()

	for _, reg := range batch {
		d.invoke(reg, env)
	}
}

func (d *dispatcher) removeConsumedLocked(t protocol.EnvelopeType) {
	regs := d.listeners[t]
	kept := regs[:0]
	for _, reg := range regs {
		if !reg.consumed {
			kept = append(kept, reg)
		}
	}
	if len(kept) == 0 {
		delete(d.listeners, t)
	} else {
		d.listeners[t] = kept
	}
}

// invoke runs one listener, isolating panics so one listener's failure does
// not reach the others or corrupt dispatch state.
func (d *dispatcher) invoke(reg *registration, env *protocol.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Listener panic",
				log.String("type", string(env.Type)),
				log.Any("panic", r))
		}
	}()
	reg.fn(env)
}
