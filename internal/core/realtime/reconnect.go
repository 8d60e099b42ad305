package realtime

import (
	"math"
	"math/rand"
	"time"

	"github.com/pulselink/pulselink/internal/core/protocol"
)

// reconnectPolicy decides whether and when to retry after a transport
// failure. One policy instance belongs to one client and applies for the
// client's whole lifetime; the mode never varies per failure. Not safe for
// concurrent use: guarded by the owning client's state mutex.
type reconnectPolicy struct {
	mode        protocol.BackoffMode
	interval    time.Duration
	maxDelay    time.Duration
	maxAttempts int

	attempts int
}

func newReconnectPolicy(cfg Config) *reconnectPolicy {
	return &reconnectPolicy{
		mode:        cfg.BackoffMode,
		interval:    cfg.ReconnectInterval,
		maxDelay:    cfg.MaxReconnectDelay,
		maxAttempts: cfg.MaxReconnectAttempts,
	}
}

// next consumes one attempt and returns the delay before it. ok is false
// when the attempt budget is exhausted; the counter is not consumed then.
func (p *reconnectPolicy) next() (delay time.Duration, ok bool) {
	if p.attempts >= p.maxAttempts {
		return 0, false
	}
	p.attempts++

	if p.mode == protocol.BackoffFixed {
		return p.interval, true
	}

	// interval × 2^(attempts−1), capped, with up to 50% jitter.
	base := float64(p.interval) * math.Pow(2, float64(p.attempts-1))
	jitter := rand.Float64() * 0.5 * float64(p.interval)
	delay = time.Duration(math.Min(base+jitter, float64(p.maxDelay)))
	return delay, true
}

// reset clears the attempt counter. Called on every successful connect and
// on a manual connect after a terminal failure.
func (p *reconnectPolicy) reset() {
	p.attempts = 0
}
