package protocol

import "time"

// EnvelopeBuilder assembles outbound envelopes with a fresh message ID and
// timestamp. Builders are cheap; construct one per send.
type EnvelopeBuilder struct {
	gen *IDGenerator
	env Envelope
}

func NewEnvelopeBuilder(gen *IDGenerator) *EnvelopeBuilder {
	return &EnvelopeBuilder{gen: gen}
}

func (b *EnvelopeBuilder) WithType(t EnvelopeType) *EnvelopeBuilder {
	b.env.Type = t
	return b
}

func (b *EnvelopeBuilder) WithData(data map[string]any) *EnvelopeBuilder {
	b.env.Data = data
	return b
}

func (b *EnvelopeBuilder) WithCorrelationID(id string) *EnvelopeBuilder {
	b.env.CorrelationID = id
	return b
}

// Build finalizes the envelope, assigning message_id and timestamp.
func (b *EnvelopeBuilder) Build() *Envelope {
	env := b.env
	env.MessageID = b.gen.Next()
	env.Timestamp = time.Now().UTC()
	return &env
}

// Convenience constructors for the fixed operation envelopes.

func NewAuthEnvelope(gen *IDGenerator, token string) *Envelope {
	return NewEnvelopeBuilder(gen).
		WithType(TypeAuth).
		WithData(map[string]any{"token": token}).
		Build()
}

func NewSubscribeEnvelope(gen *IDGenerator, channels []string) *Envelope {
	return NewEnvelopeBuilder(gen).
		WithType(TypeSubscribe).
		WithData(map[string]any{"channels": channels}).
		Build()
}

func NewUnsubscribeEnvelope(gen *IDGenerator, channels []string) *Envelope {
	return NewEnvelopeBuilder(gen).
		WithType(TypeUnsubscribe).
		WithData(map[string]any{"channels": channels}).
		Build()
}

func NewCommandEnvelope(gen *IDGenerator, command string, params map[string]any) *Envelope {
	return NewEnvelopeBuilder(gen).
		WithType(TypeCommand).
		WithData(map[string]any{"command": command, "params": params}).
		Build()
}

// NewPongEnvelope builds the reply to an inbound ping. The originating
// ping's message_id becomes the pong's correlation_id.
func NewPongEnvelope(gen *IDGenerator, pingMessageID string) *Envelope {
	return NewEnvelopeBuilder(gen).
		WithType(TypePong).
		WithCorrelationID(pingMessageID).
		Build()
}
