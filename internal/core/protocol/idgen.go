package protocol

import (
	"strconv"
	"sync/atomic"
	"time"
)

// IDGenerator produces message IDs that are unique within a connection's
// lifetime: unix-millisecond timestamp plus a monotonically incrementing
// counter. One generator exists per connection instance.
type IDGenerator struct {
	counter atomic.Uint64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns a fresh message ID.
func (g *IDGenerator) Next() string {
	n := g.counter.Add(1)
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.FormatUint(n, 10)
}
