package realtime

import "github.com/pulselink/pulselink/internal/core/protocol"

// outboundQueue buffers envelopes submitted while the connection is down.
// FIFO; bounded with a drop-oldest policy (capacity 0 means unbounded). Not
// safe for concurrent use: the owning client guards it with its state mutex.
type outboundQueue struct {
	capacity int
	items    []*protocol.Envelope
	dropped  uint64
}

func newOutboundQueue(capacity int) *outboundQueue {
	return &outboundQueue{capacity: capacity}
}

// push appends an envelope, evicting the oldest entry when full. Returns
// true when an entry was dropped to make room.
func (q *outboundQueue) push(env *protocol.Envelope) bool {
	evicted := false
	if q.capacity > 0 && len(q.items) >= q.capacity {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
		q.dropped++
		evicted = true
	}
	q.items = append(q.items, env)
	return evicted
}

// drain removes and returns all queued envelopes in submission order.
func (q *outboundQueue) drain() []*protocol.Envelope {
	items := q.items
	q.items = nil
	return items
}

// requeue puts unsent envelopes back at the head of the queue, ahead of
// anything pushed since the drain, preserving submission order.
func (q *outboundQueue) requeue(items []*protocol.Envelope) {
	if len(items) == 0 {
		return
	}
	merged := make([]*protocol.Envelope, 0, len(items)+len(q.items))
	merged = append(merged, items...)
	merged = append(merged, q.items...)
	q.items = merged
}

func (q *outboundQueue) clear() {
	q.items = nil
}

func (q *outboundQueue) len() int {
	return len(q.items)
}
