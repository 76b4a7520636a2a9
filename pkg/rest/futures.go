package rest

import (
	"context"

	"krakenx/pkg/core"
)

// FuturesTickers returns level-1 snapshots for all futures symbols.
func (d *Dispatcher) FuturesTickers(ctx context.Context) (*FuturesTickersResult, error) {
	var out FuturesTickersResult
	req := core.NewRequest("GET", pathFuturesTickers).SetVenue(core.VenueFutures)
	if err := d.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FuturesAccounts returns the futures account balances and margin
// requirements. The call is authenticated but read-only, so it draws from
// the private bucket.
func (d *Dispatcher) FuturesAccounts(ctx context.Context) (*FuturesAccountsResult, error) {
	var out FuturesAccountsResult
	req := core.NewRequest("GET", pathFuturesAccounts).
		SetVenue(core.VenueFutures).
		SetPrivate(core.PolicyPrivate).
		SetCost(costDefault)
	if err := d.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FuturesOpenPositions returns the open futures positions.
func (d *Dispatcher) FuturesOpenPositions(ctx context.Context) (*FuturesOpenPositionsResult, error) {
	var out FuturesOpenPositionsResult
	req := core.NewRequest("GET", pathFuturesOpenPositions).
		SetVenue(core.VenueFutures).
		SetPrivate(core.PolicyPrivate).
		SetCost(costDefault)
	if err := d.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FuturesOrderSpec describes a futures order submission.
type FuturesOrderSpec struct {
	Symbol     string
	Side       string // "buy" or "sell"
	OrderType  string // "mkt", "lmt", ...
	Size       string
	LimitPrice string
	ClientID   string
}

func (s FuturesOrderSpec) clientKey() string {
	if s.ClientID != "" {
		return s.ClientID
	}
	return s.Symbol + "/" + s.Side + "/" + s.OrderType + "/" + s.Size
}

// FuturesSendOrder submits a futures order under the same in-flight cap and
// trading bucket as spot submissions.
func (d *Dispatcher) FuturesSendOrder(ctx context.Context, spec FuturesOrderSpec) (*FuturesSendOrderResult, error) {
	if err := d.limiter.PlaceOrder(ctx, spec.clientKey(), costDefault); err != nil {
		return nil, err
	}

	req := core.NewRequest("POST", pathFuturesSendOrder).
		SetVenue(core.VenueFutures).
		SetPrivate(core.PolicyTrading).
		SetParam("symbol", spec.Symbol).
		SetParam("side", spec.Side).
		SetParam("orderType", spec.OrderType).
		SetParam("size", spec.Size)
	if spec.LimitPrice != "" {
		req.SetParam("limitPrice", spec.LimitPrice)
	}
	if spec.ClientID != "" {
		req.SetParam("cliOrdId", spec.ClientID)
	}

	var out FuturesSendOrderResult
	if err := d.dispatch(ctx, req, &out, false); err != nil {
		d.limiter.OrderDone(spec.clientKey())
		return nil, err
	}
	if out.SendStatus.OrderID != "" {
		d.limiter.RenameOrder(spec.clientKey(), out.SendStatus.OrderID)
	}
	return &out, nil
}

// FuturesCancelOrder cancels a futures order by venue order id.
func (d *Dispatcher) FuturesCancelOrder(ctx context.Context, orderID string) (*FuturesCancelOrderResult, error) {
	if err := d.limiter.CancelOrder(ctx, orderID); err != nil {
		return nil, err
	}

	req := core.NewRequest("POST", pathFuturesCancelOrder).
		SetVenue(core.VenueFutures).
		SetPrivate(core.PolicyTrading).
		SetParam("order_id", orderID)

	var out FuturesCancelOrderResult
	if err := d.dispatch(ctx, req, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}
