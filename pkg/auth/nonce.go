// Package auth provides credential management, nonce generation, and request
// signing for the venue's Spot and Futures APIs.
package auth

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// NonceSource produces strictly increasing nonce values for signed requests.
// The venue rejects any request whose nonce is not greater than the last one
// seen for the credential, so values are serialized across concurrent callers.
type NonceSource struct {
	last atomic.Uint64
}

// NewNonceSource creates a NonceSource seeded from the current time.
// The first value returned is at least the current epoch time in microseconds.
func NewNonceSource() *NonceSource {
	return &NonceSource{}
}

// Next returns the next nonce. Values are strictly increasing across
// concurrent callers. When the counter would exceed the uint64 range it
// saturates at math.MaxUint64 rather than wrapping, since a wrapped nonce
// would be rejected by the venue.
func (n *NonceSource) Next() uint64 {
	now := uint64(time.Now().UnixMicro())

	for {
		last := n.last.Load()
		if last == math.MaxUint64 {
			return math.MaxUint64
		}
		next := max(now, last+1)
		if n.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

var (
	sourcesMu sync.Mutex
	sources   = make(map[string]*NonceSource)
)

// ForKey returns the process-wide NonceSource for the given API key.
// All signers sharing a credential must share its nonce sequence, even when
// they hold independent client instances.
func ForKey(apiKey string) *NonceSource {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()

	src, ok := sources[apiKey]
	if !ok {
		src = NewNonceSource()
		sources[apiKey] = src
	}
	return src
}
