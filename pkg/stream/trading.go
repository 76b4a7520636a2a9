package stream

import (
	"context"
	"encoding/json"

	"krakenx/internal/ws"
	"krakenx/pkg/core"
)

// OrderRequest describes an order placed over the streaming session.
type OrderRequest struct {
	Symbol     string
	Side       string // "buy" or "sell"
	OrderType  string // "market", "limit", ...
	Qty        string
	LimitPrice string
}

// AddOrder places an order over the authenticated session and returns the
// venue's raw result payload. The session must be ready and private.
func (m *SessionManager) AddOrder(ctx context.Context, req OrderRequest) (json.RawMessage, error) {
	if err := m.requireTrading(); err != nil {
		return nil, err
	}
	return m.call(ctx, "add_order", orderParams{
		Token:      m.currentToken(),
		Symbol:     req.Symbol,
		Side:       req.Side,
		OrderType:  req.OrderType,
		Qty:        req.Qty,
		LimitPrice: req.LimitPrice,
	})
}

// CancelOrder cancels one order over the authenticated session.
func (m *SessionManager) CancelOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	if err := m.requireTrading(); err != nil {
		return nil, err
	}
	return m.call(ctx, "cancel_order", orderParams{
		Token:   m.currentToken(),
		OrderID: orderID,
	})
}

// CancelAll cancels every open order on the session's account.
func (m *SessionManager) CancelAll(ctx context.Context) (json.RawMessage, error) {
	if err := m.requireTrading(); err != nil {
		return nil, err
	}
	return m.call(ctx, "cancel_all", orderParams{
		Token: m.currentToken(),
	})
}

func (m *SessionManager) requireTrading() error {
	if m.state.Load() != ws.StateReady {
		return core.ErrNotConnected
	}
	if m.cfg.TokenFunc == nil {
		return core.NewVenueError(core.ErrorTypeCredential, 0, "trading requires an authenticated session")
	}
	return nil
}
