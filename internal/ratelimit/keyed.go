package ratelimit

import (
	"sync"
	"time"
)

// slidingWindow admits at most maxRequests within a rolling window.
type slidingWindow struct {
	window      time.Duration
	maxRequests int
	timestamps  []time.Time
}

func newSlidingWindow(window time.Duration, maxRequests int) *slidingWindow {
	return &slidingWindow{window: window, maxRequests: maxRequests}
}

func (w *slidingWindow) tryAcquire(now time.Time) (time.Duration, bool) {
	cutoff := now.Add(-w.window)
	kept := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.timestamps = kept

	if len(w.timestamps) < w.maxRequests {
		w.timestamps = append(w.timestamps, now)
		return 0, true
	}

	wait := w.timestamps[0].Add(w.window).Sub(now)
	return wait, false
}

func (w *slidingWindow) empty(now time.Time) bool {
	cutoff := now.Add(-w.window)
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			return false
		}
	}
	return true
}

// Keyed rate-limits independently per key. Endpoints with per-symbol quotas
// (order book depth) use one window per trading pair.
type Keyed struct {
	mu          sync.Mutex
	windows     map[string]*slidingWindow
	window      time.Duration
	maxRequests int
}

// NewKeyed creates a per-key limiter admitting maxRequests per window.
func NewKeyed(window time.Duration, maxRequests int) *Keyed {
	return &Keyed{
		windows:     make(map[string]*slidingWindow),
		window:      window,
		maxRequests: maxRequests,
	}
}

// Try attempts to admit a call for key. Returns (0, true) on admission or
// the wait until the oldest tracked call leaves the window.
func (k *Keyed) Try(key string) (time.Duration, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	w, ok := k.windows[key]
	if !ok {
		w = newSlidingWindow(k.window, k.maxRequests)
		k.windows[key] = w
	}
	return w.tryAcquire(time.Now())
}

// Cleanup drops windows with no recent activity.
func (k *Keyed) Cleanup() {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := time.Now()
	for key, w := range k.windows {
		if w.empty(now) {
			delete(k.windows, key)
		}
	}
}

// TrackedKeys returns the number of keys with live windows.
func (k *Keyed) TrackedKeys() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.windows)
}
