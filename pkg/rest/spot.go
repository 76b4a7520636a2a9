package rest

import (
	"context"
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"krakenx/pkg/core"
)

// Time returns the venue server time.
func (d *Dispatcher) Time(ctx context.Context) (*ServerTime, error) {
	var out ServerTime
	req := core.NewRequest("GET", pathTime)
	if err := d.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SystemStatus returns the venue operational status.
func (d *Dispatcher) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var out SystemStatus
	req := core.NewRequest("GET", pathSystemStatus)
	if err := d.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ticker returns level-1 snapshots for the given pairs, keyed by the
// venue's pair name.
func (d *Dispatcher) Ticker(ctx context.Context, pairs ...string) (map[string]TickerInfo, error) {
	out := make(map[string]TickerInfo)
	req := core.NewRequest("GET", pathTicker)
	if len(pairs) > 0 {
		req.SetParam("pair", joinPairs(pairs))
	}
	if err := d.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Depth returns the order book for one pair. Depth requests pass a
// per-symbol admission window on top of the public limiter, so repeated
// polling of the same book is throttled independently of other pairs.
func (d *Dispatcher) Depth(ctx context.Context, pair string, count int) (*DepthBook, error) {
	if err := d.limiter.WaitDepth(ctx, pair); err != nil {
		return nil, err
	}

	out := make(map[string]DepthBook)
	req := core.NewRequest("GET", pathDepth).SetParam("pair", pair)
	if count > 0 {
		req.SetParam("count", fmt.Sprintf("%d", count))
	}
	if err := d.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	for _, book := range out {
		return &book, nil
	}
	return nil, core.NewVenueError(core.ErrorTypeProtocol, 0, "empty depth result")
}

// AccountBalance returns asset balances as exact decimals.
func (d *Dispatcher) AccountBalance(ctx context.Context) (map[string]*apd.Decimal, error) {
	raw := make(map[string]string)
	req := core.NewRequest("POST", pathBalance).SetPrivate(core.PolicyPrivate).SetCost(costDefault)
	if err := d.Do(ctx, req, &raw); err != nil {
		return nil, err
	}

	balances := make(map[string]*apd.Decimal, len(raw))
	for asset, s := range raw {
		dec, _, err := apd.NewFromString(s)
		if err != nil {
			return nil, core.NewVenueError(core.ErrorTypeProtocol, 0,
				fmt.Sprintf("balance %s=%q: %v", asset, s, err))
		}
		balances[asset] = dec
	}
	return balances, nil
}

// TradeBalance returns the margin account summary, optionally in the given
// quote asset.
func (d *Dispatcher) TradeBalance(ctx context.Context, asset string) (*TradeBalanceInfo, error) {
	var out TradeBalanceInfo
	req := core.NewRequest("POST", pathTradeBalance).SetPrivate(core.PolicyPrivate).SetCost(costDefault)
	if asset != "" {
		req.SetParam("asset", asset)
	}
	if err := d.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenOrders returns the open-orders snapshot.
func (d *Dispatcher) OpenOrders(ctx context.Context) (*OpenOrdersResult, error) {
	var out OpenOrdersResult
	req := core.NewRequest("POST", pathOpenOrders).SetPrivate(core.PolicyPrivate).SetCost(costOrderHistory)
	if err := d.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OrderSpec describes an order submission.
type OrderSpec struct {
	Pair      string
	Side      string // "buy" or "sell"
	OrderType string // "market", "limit", ...
	Volume    string
	Price     string // required for limit orders
	UserRef   string
}

// AddOrder submits an order. Submission counts against the in-flight order
// cap and the trading bucket before anything reaches the wire; when the cap
// is hit the call fails immediately rather than queueing.
func (d *Dispatcher) AddOrder(ctx context.Context, spec OrderSpec) (*AddOrderResult, error) {
	if err := d.limiter.PlaceOrder(ctx, spec.clientKey(), costDefault); err != nil {
		return nil, err
	}

	req := core.NewRequest("POST", pathAddOrder).SetPrivate(core.PolicyTrading).
		SetParam("pair", spec.Pair).
		SetParam("type", spec.Side).
		SetParam("ordertype", spec.OrderType).
		SetParam("volume", spec.Volume)
	if spec.Price != "" {
		req.SetParam("price", spec.Price)
	}
	if spec.UserRef != "" {
		req.SetParam("userref", spec.UserRef)
	}

	var out AddOrderResult
	if err := d.dispatch(ctx, req, &out, false); err != nil {
		d.limiter.OrderDone(spec.clientKey())
		return nil, err
	}

	// Re-key the tracked order under the venue txid so a later cancel can
	// be charged by age. The in-flight slot stays held until OrderDone.
	if len(out.TxIDs) > 0 {
		d.limiter.RenameOrder(spec.clientKey(), out.TxIDs[0])
	}
	return &out, nil
}

// OrderDone releases the in-flight slot for an order that reached a
// terminal state without being cancelled through this dispatcher.
func (d *Dispatcher) OrderDone(txid string) {
	d.limiter.OrderDone(txid)
}

func (s OrderSpec) clientKey() string {
	if s.UserRef != "" {
		return s.UserRef
	}
	return fmt.Sprintf("%s/%s/%s/%s", s.Pair, s.Side, s.OrderType, s.Volume)
}

// CancelOrder cancels an order by transaction id. Cancelling a young order
// carries a penalty cost that decays with order age, so rapid
// place-and-cancel churn drains the trading bucket quickly.
func (d *Dispatcher) CancelOrder(ctx context.Context, txid string) (*CancelOrderResult, error) {
	if err := d.limiter.CancelOrder(ctx, txid); err != nil {
		return nil, err
	}

	req := core.NewRequest("POST", pathCancelOrder).SetPrivate(core.PolicyTrading).
		SetParam("txid", txid)

	var out CancelOrderResult
	if err := d.dispatch(ctx, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// WebSocketToken obtains a token for the authenticated streaming endpoint.
func (d *Dispatcher) WebSocketToken(ctx context.Context) (*WebSocketToken, error) {
	var out WebSocketToken
	req := core.NewRequest("POST", pathWebSocketToken).SetPrivate(core.PolicyPrivate).SetCost(costDefault)
	if err := d.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func joinPairs(pairs []string) string {
	out := pairs[0]
	for _, p := range pairs[1:] {
		out += "," + p
	}
	return out
}
