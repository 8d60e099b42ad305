package protocol

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransportErrorUnwraps(t *testing.T) {
	err := &TransportError{Op: "read frame", Err: io.ErrUnexpectedEOF}
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "read frame")

	bare := &TransportError{Op: "dial"}
	assert.Equal(t, "transport error: dial", bare.Error())
}

func TestProtocolErrorUnwraps(t *testing.T) {
	cause := errors.New("unexpected token")
	err := &ProtocolError{Reason: "unmarshal envelope", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestAuthErrorMessages(t *testing.T) {
	assert.Contains(t, (&AuthError{Timeout: true}).Error(), "timed out")
	assert.Contains(t, (&AuthError{Reason: "invalid token"}).Error(), "invalid token")
}

func TestRequestTimeoutErrorMessage(t *testing.T) {
	err := &RequestTimeoutError{MessageID: "m1", Timeout: 250 * time.Millisecond}
	assert.Contains(t, err.Error(), "m1")
	assert.Contains(t, err.Error(), "250ms")
}

func TestCapacityErrorMessage(t *testing.T) {
	err := &CapacityError{Attempts: 10}
	assert.Contains(t, err.Error(), "10")
}
