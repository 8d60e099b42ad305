package client

import "github.com/pulselink/pulselink/internal/core/realtime"

// Re-exported sentinel errors so SDK callers can match without reaching into
// internal packages.
var (
	ErrClientClosed     = realtime.ErrClientClosed
	ErrNotConnected     = realtime.ErrNotConnected
	ErrAlreadyConnected = realtime.ErrAlreadyConnected
	ErrInvalidConfig    = realtime.ErrInvalidConfig
)
