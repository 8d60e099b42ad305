package protocol

import (
	"fmt"
	"time"
)

// The error taxonomy mirrors how failures propagate: transport failures feed
// the reconnect policy, protocol failures are dropped, request-level failures
// reject one caller, and capacity exhaustion is terminal.

// TransportError wraps an open/close/network failure. It triggers the
// reconnection policy.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport error: " + e.Op
	}
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError marks a malformed or unparseable envelope. Logged and
// dropped, never fatal.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "protocol error: " + e.Reason
	}
	return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// AuthError is an explicit auth-failure reply or an auth timeout. It rejects
// the in-flight authenticate call only and leaves the connection open.
type AuthError struct {
	Reason  string
	Timeout bool
}

func (e *AuthError) Error() string {
	if e.Timeout {
		return "auth error: timed out waiting for auth reply"
	}
	return "auth error: " + e.Reason
}

// RequestTimeoutError is returned when no correlated reply arrives within
// the deadline. It rejects that one pending request only.
type RequestTimeoutError struct {
	MessageID string
	Timeout   time.Duration
}

func (e *RequestTimeoutError) Error() string {
	return fmt.Sprintf("request %s timed out after %s", e.MessageID, e.Timeout)
}

// ServerError carries the error description from a correlated error reply.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string { return "server error: " + e.Message }

// CapacityError is terminal: the reconnect attempt budget is exhausted and
// no further automatic attempts occur. Recovery requires a manual connect.
type CapacityError struct {
	Attempts int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("reconnect attempts exhausted after %d tries", e.Attempts)
}
