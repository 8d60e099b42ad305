package protocol

// EnvelopeType names the kind of traffic an envelope carries. Arbitrary
// application types flow through unmodified; the constants below are the
// ones the core special-cases.
type EnvelopeType string

const (
	// Inbound types with dedicated handling.

	TypeConnected EnvelopeType = "connected"
	TypeHeartbeat EnvelopeType = "heartbeat"
	TypePing      EnvelopeType = "ping"
	TypePong      EnvelopeType = "pong"
	TypeSuccess   EnvelopeType = "success"
	TypeError     EnvelopeType = "error"

	// Outbound operation types.

	TypeAuth        EnvelopeType = "auth"
	TypeSubscribe   EnvelopeType = "subscribe"
	TypeUnsubscribe EnvelopeType = "unsubscribe"
	TypeCommand     EnvelopeType = "command"
)

// ConnectionState represents the current state of a connection.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateErrored
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// TransportKind selects the underlying transport implementation.
type TransportKind string

const (
	TransportSSE       TransportKind = "sse"
	TransportWebSocket TransportKind = "websocket"
	TransportQUIC      TransportKind = "quic"
)

// BackoffMode selects the reconnect delay strategy. One mode applies per
// connection instance for its whole lifetime.
type BackoffMode string

const (
	BackoffFixed       BackoffMode = "fixed"
	BackoffExponential BackoffMode = "exponential"
)
