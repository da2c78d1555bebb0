package session

import (
	"sync"
	"time"
)

// RateLimiter is the client-side token bucket gating outbound chat. It is
// advisory: the server enforces its own budget and pushes rate_limit frames
// that override whatever the local count says.
type RateLimiter struct {
	mu             sync.Mutex
	remaining      int
	capacity       int
	refillInterval time.Duration
	lastRefill     time.Time
	now            func() time.Time
}

// NewRateLimiter builds a full bucket.
func NewRateLimiter(capacity int, refillInterval time.Duration) *RateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if refillInterval <= 0 {
		refillInterval = time.Second
	}
	l := &RateLimiter{
		capacity:       capacity,
		remaining:      capacity,
		refillInterval: refillInterval,
		now:            time.Now,
	}
	l.lastRefill = l.now()
	return l
}

// TryConsume takes one token. Returns false when the bucket is empty, in
// which case the caller refuses the send locally instead of transmitting.
func (l *RateLimiter) TryConsume() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.remaining <= 0 {
		return false
	}
	l.remaining--
	return true
}

// Remaining reports the current budget after applying any pending refill.
func (l *RateLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.remaining
}

// SetRemaining applies a server-authoritative reset, clamped to the bucket
// bounds. The refill clock restarts so a reset to zero does not instantly
// recover stale elapsed time.
func (l *RateLimiter) SetRemaining(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n > l.capacity {
		n = l.capacity
	}
	l.remaining = n
	l.lastRefill = l.now()
}

// refill credits one token per elapsed refillInterval. Callers hold the lock.
func (l *RateLimiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed < l.refillInterval {
		return
	}

	tokens := int(elapsed / l.refillInterval)
	l.remaining += tokens
	if l.remaining > l.capacity {
		l.remaining = l.capacity
	}
	l.lastRefill = l.lastRefill.Add(time.Duration(tokens) * l.refillInterval)
}
