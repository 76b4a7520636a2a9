package rest

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"
)

// ServerTime is the venue clock.
type ServerTime struct {
	UnixTime int64  `json:"unixtime"`
	RFC1123  string `json:"rfc1123"`
}

// SystemStatus reports venue availability.
type SystemStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// TickerInfo is the level-1 snapshot for one pair. Each array carries the
// venue's price, whole-lot volume, and lot-volume strings.
type TickerInfo struct {
	Ask    []string `json:"a"`
	Bid    []string `json:"b"`
	Last   []string `json:"c"`
	Volume []string `json:"v"`
	VWAP   []string `json:"p"`
	Trades []int64  `json:"t"`
	Low    []string `json:"l"`
	High   []string `json:"h"`
	Open   string   `json:"o"`
}

// DepthLevel is one price level of the order book.
type DepthLevel struct {
	Price  *apd.Decimal
	Volume *apd.Decimal
	Time   int64
}

// UnmarshalJSON decodes the venue's [price, volume, timestamp] triple.
func (l *DepthLevel) UnmarshalJSON(data []byte) error {
	var raw [3]json.RawMessage
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	var price, volume string
	if err := sonic.Unmarshal(raw[0], &price); err != nil {
		return err
	}
	if err := sonic.Unmarshal(raw[1], &volume); err != nil {
		return err
	}
	var ts int64
	if err := sonic.Unmarshal(raw[2], &ts); err != nil {
		return err
	}

	p, _, err := apd.NewFromString(price)
	if err != nil {
		return fmt.Errorf("depth price %q: %w", price, err)
	}
	v, _, err := apd.NewFromString(volume)
	if err != nil {
		return fmt.Errorf("depth volume %q: %w", volume, err)
	}
	l.Price, l.Volume, l.Time = p, v, ts
	return nil
}

// DepthBook is the order book snapshot for one pair.
type DepthBook struct {
	Asks []DepthLevel `json:"asks"`
	Bids []DepthLevel `json:"bids"`
}

// TradeBalanceInfo summarises margin account state. The venue sends decimal
// strings; they are parsed exactly, never through float64.
type TradeBalanceInfo struct {
	EquivalentBalance *apd.Decimal `json:"eb"`
	TradeBalance      *apd.Decimal `json:"tb"`
	MarginUsed        *apd.Decimal `json:"m"`
	UnrealizedPL      *apd.Decimal `json:"n"`
	CostBasis         *apd.Decimal `json:"c"`
	Equity            *apd.Decimal `json:"e"`
	FreeMargin        *apd.Decimal `json:"mf"`
}

// OrderDescription describes a placed order in the venue's words.
type OrderDescription struct {
	Order string `json:"order"`
	Close string `json:"close,omitempty"`
}

// AddOrderResult is the response to an order submission.
type AddOrderResult struct {
	Description OrderDescription `json:"descr"`
	TxIDs       []string         `json:"txid"`
}

// CancelOrderResult is the response to an order cancellation.
type CancelOrderResult struct {
	Count   int  `json:"count"`
	Pending bool `json:"pending,omitempty"`
}

// OpenOrder is one entry of the open-orders snapshot.
type OpenOrder struct {
	Status      string           `json:"status"`
	OpenTime    float64          `json:"opentm"`
	Description OrderDescription `json:"descr"`
	Volume      *apd.Decimal     `json:"vol"`
	VolumeExec  *apd.Decimal     `json:"vol_exec"`
	Price       *apd.Decimal     `json:"price"`
}

// OpenOrdersResult is the open-orders snapshot keyed by transaction id.
type OpenOrdersResult struct {
	Open map[string]OpenOrder `json:"open"`
}

// WebSocketToken authorises a private streaming session. The token must be
// presented within its validity window but keeps a session alive
// indefinitely once used.
type WebSocketToken struct {
	Token   string `json:"token"`
	Expires int64  `json:"expires"`
}

// FuturesAccount is one futures account's balances and requirements.
type FuturesAccount struct {
	Type      string             `json:"type"`
	Currency  string             `json:"currency"`
	Balances  map[string]float64 `json:"balances"`
	Auxiliary map[string]float64 `json:"auxiliary"`
}

// FuturesAccountsResult maps account names to their state.
type FuturesAccountsResult struct {
	Accounts map[string]FuturesAccount `json:"accounts"`
}

// FuturesTicker is the level-1 snapshot for one futures symbol.
type FuturesTicker struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	MarkPrice float64 `json:"markPrice"`
	Vol24h    float64 `json:"vol24h"`
}

// FuturesTickersResult is the full tickers snapshot.
type FuturesTickersResult struct {
	Tickers []FuturesTicker `json:"tickers"`
}

// FuturesSendStatus reports the outcome of a futures order submission.
type FuturesSendStatus struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// FuturesSendOrderResult is the response to a futures order submission.
type FuturesSendOrderResult struct {
	SendStatus FuturesSendStatus `json:"sendStatus"`
}

// FuturesCancelStatus reports the outcome of a futures cancellation.
type FuturesCancelStatus struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// FuturesCancelOrderResult is the response to a futures cancellation.
type FuturesCancelOrderResult struct {
	CancelStatus FuturesCancelStatus `json:"cancelStatus"`
}

// FuturesPosition is one open futures position.
type FuturesPosition struct {
	Side   string  `json:"side"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
}

// FuturesOpenPositionsResult is the open-positions snapshot.
type FuturesOpenPositionsResult struct {
	OpenPositions []FuturesPosition `json:"openPositions"`
}
