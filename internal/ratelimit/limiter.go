package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"krakenx/pkg/core"
)

// Cancel penalty points by order age. Cancelling a young order costs more,
// per the venue's order-lifetime schedule.
const (
	cancelPenaltyUnder5s = 8
	cancelPenalty5To10s  = 6
	cancelPenalty10To15s = 5
	cancelPenalty15To45s = 4
	cancelPenalty45To90s = 2
	cancelPenaltyOver90s = 0

	orderTrackingTTL   = 5 * time.Minute
	defaultPublicRPS   = 1
	defaultPublicBurst = 1
)

// Config holds the limiter parameters. Capacity and decay come from the
// account tier; the rest are venue policy defaults that callers may override.
type Config struct {
	// Capacity is the private/trading counter capacity.
	Capacity float64
	// DecayPerSec is how fast the counters decay.
	DecayPerSec float64
	// PublicRPS is the public-endpoint requests per second.
	PublicRPS float64
	// PublicBurst is the public-endpoint burst size.
	PublicBurst int
	// MaxOpenOrders caps concurrent in-flight order submissions.
	MaxOpenOrders int
}

// Metrics tracks limiter usage with atomic counters.
type Metrics struct {
	totalAcquires   atomic.Int64
	allowedAcquires atomic.Int64
	deniedAcquires  atomic.Int64
	rejectedOrders  atomic.Int64
}

// MetricsSnapshot is a point-in-time capture of limiter statistics.
type MetricsSnapshot struct {
	// TotalAcquires is the number of acquire attempts across all policies.
	TotalAcquires int64
	// AllowedAcquires is the number of attempts admitted immediately.
	AllowedAcquires int64
	// DeniedAcquires is the number of attempts that had to wait or fail.
	DeniedAcquires int64
	// RejectedOrders is the number of submissions refused by the in-flight cap.
	RejectedOrders int64
}

// Limiter paces outbound calls per policy kind. Public calls ride a token
// limiter, private and trading calls a decaying cost counter. The trading
// policy additionally tracks order age for cancel penalties and enforces a
// maximum in-flight order count.
type Limiter struct {
	public   *rate.Limiter
	private  *Bucket
	trading  *Bucket
	depth    *Keyed
	orders   *ttlCache
	inflight atomic.Int64
	maxOpen  int64
	metrics  *Metrics
}

// New creates a Limiter from the given configuration.
func New(cfg Config) *Limiter {
	rps := cfg.PublicRPS
	if rps == 0 {
		rps = defaultPublicRPS
	}
	burst := cfg.PublicBurst
	if burst == 0 {
		burst = defaultPublicBurst
	}

	return &Limiter{
		public:  rate.NewLimiter(rate.Limit(rps), burst),
		private: NewBucket(cfg.Capacity, cfg.DecayPerSec),
		trading: NewBucket(cfg.Capacity, cfg.DecayPerSec),
		depth:   NewKeyed(time.Second, 1),
		orders:  newTTLCache(orderTrackingTTL),
		maxOpen: int64(cfg.MaxOpenOrders),
		metrics: &Metrics{},
	}
}

// Allow attempts a non-blocking acquire of cost under the policy. It returns
// (0, true) on admission, or the wait the caller would need and false.
func (l *Limiter) Allow(policy core.PolicyKind, cost float64) (time.Duration, bool) {
	l.metrics.totalAcquires.Add(1)

	var wait time.Duration
	var ok bool
	switch policy {
	case core.PolicyPublic:
		r := l.public.Reserve()
		wait = r.Delay()
		if wait > 0 {
			r.Cancel()
			ok = false
		} else {
			ok = true
		}
	case core.PolicyPrivate:
		wait, ok = l.private.Try(cost)
	case core.PolicyTrading:
		wait, ok = l.trading.Try(cost)
	}

	if ok {
		l.metrics.allowedAcquires.Add(1)
	} else {
		l.metrics.deniedAcquires.Add(1)
	}
	return wait, ok
}

// Wait blocks until cost is admitted under the policy or the context ends.
func (l *Limiter) Wait(ctx context.Context, policy core.PolicyKind, cost float64) error {
	if policy == core.PolicyPublic {
		l.metrics.totalAcquires.Add(1)
		if err := l.public.Wait(ctx); err != nil {
			l.metrics.deniedAcquires.Add(1)
			return err
		}
		l.metrics.allowedAcquires.Add(1)
		return nil
	}

	bucket := l.private
	if policy == core.PolicyTrading {
		bucket = l.trading
	}

	for {
		l.metrics.totalAcquires.Add(1)
		wait, ok := bucket.Try(cost)
		if ok {
			l.metrics.allowedAcquires.Add(1)
			return nil
		}
		l.metrics.deniedAcquires.Add(1)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// WaitDepth blocks until the per-symbol depth window admits a call.
func (l *Limiter) WaitDepth(ctx context.Context, symbol string) error {
	for {
		wait, ok := l.depth.Try(symbol)
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Reconcile adjusts a bucket from the server-reported cost of a completed
// call. Public calls carry no cost metadata and are ignored.
func (l *Limiter) Reconcile(policy core.PolicyKind, actual, charged float64) {
	switch policy {
	case core.PolicyPrivate:
		l.private.Reconcile(actual, charged)
	case core.PolicyTrading:
		l.trading.Reconcile(actual, charged)
	}
}

// PlaceOrder admits one order submission: the in-flight cap is checked first
// (rejecting, never queuing, when full), then the trading bucket is acquired.
// The order is tracked so a later cancel can be charged by age.
func (l *Limiter) PlaceOrder(ctx context.Context, orderID string, cost float64) error {
	for {
		n := l.inflight.Load()
		if l.maxOpen > 0 && n >= l.maxOpen {
			l.metrics.rejectedOrders.Add(1)
			return core.ErrTooManyOrders
		}
		if l.inflight.CompareAndSwap(n, n+1) {
			break
		}
	}

	if err := l.Wait(ctx, core.PolicyTrading, cost); err != nil {
		l.inflight.Add(-1)
		return err
	}

	if orderID != "" {
		l.orders.Put(orderID)
	}
	return nil
}

// RenameOrder re-keys a tracked order, preserving its age. Used once the
// venue assigns a transaction id to a submission tracked under a client key.
func (l *Limiter) RenameOrder(oldID, newID string) {
	l.orders.Rename(oldID, newID)
}

// CancelPenalty returns the cancel cost for an order of the given age.
func CancelPenalty(age time.Duration) float64 {
	secs := age.Seconds()
	switch {
	case secs < 5:
		return cancelPenaltyUnder5s
	case secs < 10:
		return cancelPenalty5To10s
	case secs < 15:
		return cancelPenalty10To15s
	case secs < 45:
		return cancelPenalty15To45s
	case secs < 90:
		return cancelPenalty45To90s
	default:
		return cancelPenaltyOver90s
	}
}

// CancelOrder admits one cancellation, charging the age-based penalty.
// Untracked orders are charged the worst case.
func (l *Limiter) CancelOrder(ctx context.Context, orderID string) error {
	penalty := float64(cancelPenaltyUnder5s)
	if age, ok := l.orders.RemoveWithAge(orderID); ok {
		penalty = CancelPenalty(age)
	}

	if penalty > 0 {
		if err := l.Wait(ctx, core.PolicyTrading, penalty); err != nil {
			return err
		}
	}
	l.OrderDone(orderID)
	return nil
}

// OrderDone releases one in-flight slot after the venue confirms the order
// reached a terminal state (filled, cancelled, rejected).
func (l *Limiter) OrderDone(orderID string) {
	l.orders.Remove(orderID)
	for {
		n := l.inflight.Load()
		if n <= 0 {
			return
		}
		if l.inflight.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// InFlight returns the current in-flight order count.
func (l *Limiter) InFlight() int64 {
	return l.inflight.Load()
}

// Metrics returns a snapshot of the limiter statistics.
func (l *Limiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalAcquires:   l.metrics.totalAcquires.Load(),
		AllowedAcquires: l.metrics.allowedAcquires.Load(),
		DeniedAcquires:  l.metrics.deniedAcquires.Load(),
		RejectedOrders:  l.metrics.rejectedOrders.Load(),
	}
}
