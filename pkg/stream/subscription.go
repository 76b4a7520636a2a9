package stream

import (
	"encoding/json"
	"sync"

	"krakenx/pkg/core"
)

// SubState is the lifecycle state of one subscription.
type SubState int32

// Subscription states.
const (
	// SubPending indicates the subscribe request is awaiting its ack.
	SubPending SubState = iota
	// SubActive indicates the venue confirmed the subscription.
	SubActive
	// SubFailed indicates the venue rejected the subscription or resubscribe
	// attempts were exhausted.
	SubFailed
)

// String returns the string representation of the subscription state.
func (s SubState) String() string {
	return [...]string{"pending", "active", "failed"}[s]
}

// Subscription is one (channel, symbol) stream. Updates arrive on C until
// the subscription is closed. When the consumer falls behind and the buffer
// fills, new frames are dropped rather than blocking the read loop.
type Subscription struct {
	Channel string
	Symbol  string

	mu      sync.Mutex
	state   SubState
	dataCh  chan json.RawMessage
	errCh   chan error
	closeCh chan struct{}
	closed  bool
	lastErr error
}

func newSubscription(channel, symbol string, buffer int) *Subscription {
	return &Subscription{
		Channel: channel,
		Symbol:  symbol,
		dataCh:  make(chan json.RawMessage, buffer),
		errCh:   make(chan error, 1),
		closeCh: make(chan struct{}),
	}
}

// C delivers raw channel updates. It is closed when the subscription ends.
func (s *Subscription) C() <-chan json.RawMessage {
	return s.dataCh
}

// E delivers errors scoped to this subscription, such as a venue error
// frame referencing its channel.
func (s *Subscription) E() <-chan error {
	return s.errCh
}

// State returns the subscription state.
func (s *Subscription) State() SubState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that failed the subscription, if any.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Subscription) setState(state SubState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if err != nil {
		s.lastErr = err
	}
}

// deliver hands one update to the consumer without blocking the read loop.
func (s *Subscription) deliver(data json.RawMessage) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	select {
	case s.dataCh <- data:
		return true
	default:
		return false
	}
}

// fail marks the subscription failed and surfaces the error to the
// consumer without closing the stream.
func (s *Subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SubFailed
	s.lastErr = err
	if s.closed {
		return
	}
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.lastErr == nil {
		s.lastErr = core.ErrSubscriptionClosed
	}
	close(s.closeCh)
	close(s.dataCh)
	close(s.errCh)
}

func subKey(channel, symbol string) string {
	return channel + "|" + symbol
}

// table is the subscription registry keyed by (channel, symbol).
type table struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

func newTable() *table {
	return &table{subs: make(map[string]*Subscription)}
}

func (t *table) get(channel, symbol string) (*Subscription, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sub, ok := t.subs[subKey(channel, symbol)]
	return sub, ok
}

func (t *table) put(sub *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs[subKey(sub.Channel, sub.Symbol)] = sub
}

func (t *table) remove(channel, symbol string) (*Subscription, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := subKey(channel, symbol)
	sub, ok := t.subs[key]
	if ok {
		delete(t.subs, key)
	}
	return sub, ok
}

func (t *table) all() []*Subscription {
	t.mu.RLock()
	defer t.mu.RUnlock()
	subs := make([]*Subscription, 0, len(t.subs))
	for _, sub := range t.subs {
		subs = append(subs, sub)
	}
	return subs
}

// route finds the subscription for a data frame: exact (channel, symbol)
// first, then the symbol-less channel subscription.
func (t *table) route(channel, symbol string) (*Subscription, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if sub, ok := t.subs[subKey(channel, symbol)]; ok {
		return sub, true
	}
	sub, ok := t.subs[subKey(channel, "")]
	return sub, ok
}
