// Package ratelimit implements client-side pacing against the venue's
// published quotas: a decaying cost counter for private and trading calls,
// a requests-per-second limiter for public calls, and per-symbol windows
// for endpoints with per-pair limits.
package ratelimit

import (
	"sync"
	"time"
)

// Bucket is a decaying cost counter. Each call adds its cost to the level;
// the level decays toward zero at a fixed rate. A call is admitted while
// level + cost <= capacity (boundary inclusive).
type Bucket struct {
	mu          sync.Mutex
	capacity    float64
	level       float64
	decayPerSec float64
	last        time.Time
}

// NewBucket creates a bucket with the given capacity and decay per second.
func NewBucket(capacity, decayPerSec float64) *Bucket {
	return &Bucket{
		capacity:    capacity,
		decayPerSec: decayPerSec,
		last:        time.Now(),
	}
}

func (b *Bucket) decayLocked(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.level -= elapsed * b.decayPerSec
		if b.level < 0 {
			b.level = 0
		}
	}
	b.last = now
}

// Try attempts to admit a call of the given cost. On admission it commits
// the cost and returns (0, true). Otherwise it returns the wait needed for
// decay to free enough headroom and (wait, false) without committing.
func (b *Bucket) Try(cost float64) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.decayLocked(time.Now())

	if b.level+cost <= b.capacity {
		b.level += cost
		return 0, true
	}

	excess := b.level + cost - b.capacity
	wait := time.Duration(excess / b.decayPerSec * float64(time.Second))
	return wait, false
}

// Reconcile adjusts the level after the venue reports the actual cost of a
// call that was charged at an assumed cost. The level stays in [0, capacity].
func (b *Bucket) Reconcile(actual, charged float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.decayLocked(time.Now())

	b.level += actual - charged
	if b.level < 0 {
		b.level = 0
	}
	if b.level > b.capacity {
		b.level = b.capacity
	}
}

// Level returns the current decayed level.
func (b *Bucket) Level() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.decayLocked(time.Now())
	return b.level
}

// Capacity returns the bucket capacity.
func (b *Bucket) Capacity() float64 {
	return b.capacity
}
