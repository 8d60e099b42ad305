package protocol

import (
	"encoding/json"
	"time"
)

// Envelope is the JSON wire format in both directions. An envelope is
// immutable once constructed.
type Envelope struct {
	Type          EnvelopeType   `json:"type"`
	Data          map[string]any `json:"data,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	MessageID     string         `json:"message_id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// Marshal encodes the envelope as JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, &ProtocolError{Reason: "marshal envelope", Err: err}
	}
	return data, nil
}

// Decode parses raw bytes into an envelope. Malformed payloads and envelopes
// without a type are rejected with a ProtocolError.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ProtocolError{Reason: "unmarshal envelope", Err: err}
	}
	if env.Type == "" {
		return nil, &ProtocolError{Reason: "envelope missing type"}
	}
	return &env, nil
}

// DataString extracts a string field from the payload.
func (e *Envelope) DataString(key string) (string, bool) {
	if e.Data == nil {
		return "", false
	}
	v, ok := e.Data[key].(string)
	return v, ok
}

// DataStrings extracts a string slice field from the payload. JSON arrays
// decode as []any, so elements are converted one by one.
func (e *Envelope) DataStrings(key string) ([]string, bool) {
	if e.Data == nil {
		return nil, false
	}
	raw, ok := e.Data[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// ErrorText returns the server-supplied error description from an error
// envelope, falling back to a generic description.
func (e *Envelope) ErrorText() string {
	if msg, ok := e.DataString("error"); ok && msg != "" {
		return msg
	}
	if msg, ok := e.DataString("message"); ok && msg != "" {
		return msg
	}
	return "server error"
}
