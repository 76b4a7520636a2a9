package auth

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RotationStrategy controls when a Ring advances to the next credential.
type RotationStrategy int

const (
	// RotateRoundRobin advances only on explicit Rotate calls.
	RotateRoundRobin RotationStrategy = iota
	// RotateOnError advances whenever OnError is reported.
	RotateOnError
)

type ringEntry struct {
	creds      Credentials
	disabled   bool
	lastUsed   time.Time
	errorCount int
}

// Ring is a Provider backed by multiple credential pairs with rotation.
// It spreads signed traffic across keys and routes around keys the venue
// has started rejecting.
type Ring struct {
	mu       sync.Mutex
	entries  []*ringEntry
	current  int
	strategy RotationStrategy
	logger   zerolog.Logger
}

// NewRing creates a rotating provider over the given credentials.
func NewRing(creds []Credentials, strategy RotationStrategy) *Ring {
	entries := make([]*ringEntry, len(creds))
	for i, c := range creds {
		entries[i] = &ringEntry{creds: c}
	}
	return &Ring{
		entries:  entries,
		strategy: strategy,
		logger:   zerolog.Nop(),
	}
}

// SetLogger configures the logger for the ring.
func (r *Ring) SetLogger(logger zerolog.Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Supply implements Provider, returning the current enabled credential.
func (r *Ring) Supply() (Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < len(r.entries); i++ {
		idx := (r.current + i) % len(r.entries)
		if !r.entries[idx].disabled {
			r.entries[idx].lastUsed = time.Now()
			return r.entries[idx].creds, nil
		}
	}
	return Credentials{}, ErrMissingCredential
}

// Rotate advances to the next enabled credential.
func (r *Ring) Rotate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rotateLocked()
}

func (r *Ring) rotateLocked() {
	if len(r.entries) == 0 {
		return
	}
	start := r.current
	for {
		r.current = (r.current + 1) % len(r.entries)
		if !r.entries[r.current].disabled || r.current == start {
			return
		}
	}
}

// OnError records a failure against the current credential and rotates if the
// strategy calls for it.
func (r *Ring) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) == 0 {
		return
	}
	r.entries[r.current].errorCount++
	r.logger.Warn().
		Err(err).
		Str("api_key", maskKey(r.entries[r.current].creds.APIKey)).
		Int("errors", r.entries[r.current].errorCount).
		Msg("credential error reported")

	if r.strategy == RotateOnError {
		r.rotateLocked()
	}
}

// Disable removes a key from rotation until Enable is called.
func (r *Ring) Disable(apiKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.creds.APIKey == apiKey {
			e.disabled = true
			return
		}
	}
}

// Enable returns a key to rotation and clears its error count.
func (r *Ring) Enable(apiKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.creds.APIKey == apiKey {
			e.disabled = false
			e.errorCount = 0
			return
		}
	}
}
