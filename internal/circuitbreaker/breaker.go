// Package circuitbreaker guards the REST dispatcher against hammering a
// failing venue: repeated failures open the breaker, a timeout later a probe
// is let through, and enough successes close it again.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	// StateClosed admits all requests.
	StateClosed State = iota
	// StateOpen refuses requests until the probe timeout elapses.
	StateOpen
	// StateHalfOpen admits probe requests while deciding whether to close.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	return [...]string{"CLOSED", "OPEN", "HALF_OPEN"}[s]
}

// Config holds the breaker thresholds.
type Config struct {
	// FailThreshold is the consecutive failures that open the breaker.
	FailThreshold int
	// SuccessThreshold is the consecutive half-open successes that close it.
	SuccessThreshold int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
}

// Breaker is a closed/open/half-open circuit breaker. Safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	cfg       Config
}

// New creates a Breaker in the closed state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg}
}

// Allow reports whether a request may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.Timeout {
			b.state = StateHalfOpen
			b.failures = 0
			b.successes = 0
			return true
		}
		return false
	default: // StateHalfOpen
		return true
	}
}

// Record reports the outcome of a request admitted by Allow.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.cfg.FailThreshold {
			b.state = StateOpen
			b.openedAt = time.Now()
		}
	case StateHalfOpen:
		if !success {
			b.state = StateOpen
			b.openedAt = time.Now()
			return
		}
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
		}
	case StateOpen:
		// A late result for a request admitted before opening; ignore.
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
