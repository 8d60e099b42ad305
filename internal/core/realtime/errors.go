package realtime

import "errors"

// Client-specific errors
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrConnectTimeout   = errors.New("connection timeout")
	ErrInvalidConfig    = errors.New("invalid client configuration")

	ErrAlreadyRegistered = errors.New("client already registered")
	ErrNotRegistered     = errors.New("client not registered")
)
