package realtime

import (
	"time"

	"github.com/pulselink/pulselink/internal/core/protocol"
)

// EventType represents lifecycle events a client emits alongside the
// envelope traffic.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventReconnecting EventType = "reconnecting"
	EventErrored      EventType = "errored"
)

// Event is a lifecycle notification.
type Event struct {
	Type         EventType
	State        protocol.ConnectionState
	ConnectionID string
	Attempt      int
	Delay        time.Duration
	Err          error
	Timestamp    time.Time
}

// EventHandler handles a lifecycle event. Handlers run on the goroutine that
// produced the transition and must not block.
type EventHandler func(Event)

// Listener handles an inbound envelope of a subscribed type.
type Listener func(*protocol.Envelope)
