package stream

import (
	"encoding/json"

	"github.com/bytedance/sonic"
)

// request is the envelope for every client-to-venue frame.
type request struct {
	Method string `json:"method"`
	Params any    `json:"params"`
	ReqID  int64  `json:"req_id,omitempty"`
}

// subscribeParams shapes subscribe and unsubscribe requests.
type subscribeParams struct {
	Channel string   `json:"channel,omitempty"`
	Symbols []string `json:"symbol,omitempty"`
	Token   string   `json:"token,omitempty"`
}

// orderParams shapes trading requests. The venue takes a single symbol,
// not an array, on order methods.
type orderParams struct {
	Token      string `json:"token"`
	Symbol     string `json:"symbol,omitempty"`
	Side       string `json:"side,omitempty"`
	OrderType  string `json:"order_type,omitempty"`
	Qty        string `json:"order_qty,omitempty"`
	LimitPrice string `json:"limit_price,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
}

// frame is the envelope for every venue-to-client frame. Exactly one of the
// method/channel pair is set: replies carry a method, stream data a channel.
type frame struct {
	Method  string          `json:"method,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Type    string          `json:"type,omitempty"`
	ReqID   int64           `json:"req_id,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Error   string          `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (f *frame) isReply() bool     { return f.Method != "" && f.ReqID != 0 }
func (f *frame) isHeartbeat() bool { return f.Channel == "heartbeat" }
func (f *frame) isStatus() bool    { return f.Channel == "status" }

// subscribeResult is the payload of a subscribe/unsubscribe ack.
type subscribeResult struct {
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
}

// statusData is one entry of the status channel's data array.
type statusData struct {
	System       string `json:"system"`
	APIVersion   string `json:"api_version"`
	ConnectionID uint64 `json:"connection_id"`
}

// dataSymbol extracts the symbol from the first element of a data array, so
// updates can be routed to the matching subscription. Channels without
// per-symbol fan-out return an empty string.
func dataSymbol(data json.RawMessage) string {
	var entries []struct {
		Symbol string `json:"symbol"`
	}
	if err := sonic.Unmarshal(data, &entries); err != nil || len(entries) == 0 {
		return ""
	}
	return entries[0].Symbol
}

func parseFrame(data []byte) (*frame, error) {
	var f frame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
