package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krakenx/pkg/auth"
	"krakenx/pkg/core"
)

func TestTicker(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XBT/USD", r.URL.Query().Get("pair"))
		w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"a":["30300.10","1","1.000"],"b":["30300.00","1","1.000"],"c":["30303.20","0.00067643"],"o":"30502.80"}}}`))
	}))

	tickers, err := d.Ticker(context.Background(), "XBT/USD")
	require.NoError(t, err)
	info, ok := tickers["XXBTZUSD"]
	require.True(t, ok)
	assert.Equal(t, "30300.10", info.Ask[0])
	assert.Equal(t, "30502.80", info.Open)
}

func TestDepth(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/Depth", r.URL.Path)
		w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"asks":[["30300.10","2.34000000",1656671298]],"bids":[["30297.90","0.50000000",1656671297]]}}}`))
	}))

	book, err := d.Depth(context.Background(), "XBT/USD", 10)
	require.NoError(t, err)
	require.Len(t, book.Asks, 1)
	require.Len(t, book.Bids, 1)
	assert.Equal(t, "30300.10", book.Asks[0].Price.String())
	assert.Equal(t, "2.34000000", book.Asks[0].Volume.String())
	assert.Equal(t, int64(1656671298), book.Asks[0].Time)
}

func TestDepth_PerSymbolThrottle(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"asks":[],"bids":[]}}}`))
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := d.Depth(ctx, "XBT/USD", 0)
	require.NoError(t, err)

	// Second poll of the same book inside the window blocks until the
	// context expires.
	_, err = d.Depth(ctx, "XBT/USD", 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAddOrder(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "XBTUSD", r.PostForm.Get("pair"))
		assert.Equal(t, "buy", r.PostForm.Get("type"))
		assert.Equal(t, "limit", r.PostForm.Get("ordertype"))
		assert.Equal(t, "1.25", r.PostForm.Get("volume"))
		assert.Equal(t, "27500.0", r.PostForm.Get("price"))
		w.Write([]byte(`{"error":[],"result":{"descr":{"order":"buy 1.25 XBTUSD @ limit 27500.0"},"txid":["OU22CG-KLAF2-FWUDD7"]}}`))
	}))

	res, err := d.AddOrder(context.Background(), OrderSpec{
		Pair: "XBTUSD", Side: "buy", OrderType: "limit", Volume: "1.25", Price: "27500.0",
	})
	require.NoError(t, err)
	require.Len(t, res.TxIDs, 1)
	assert.Equal(t, "OU22CG-KLAF2-FWUDD7", res.TxIDs[0])
	assert.Equal(t, int64(1), d.Limiter().InFlight())

	d.OrderDone(res.TxIDs[0])
	assert.Equal(t, int64(0), d.Limiter().InFlight())
}

func TestAddOrder_InFlightCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":[],"result":{"descr":{"order":"x"},"txid":["TX1"]}}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL).WithMaxOpenOrders(1)
	d, err := NewDispatcher(cfg, auth.NewStaticProvider("test-key", testSecret))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.AddOrder(context.Background(), OrderSpec{Pair: "XBTUSD", Side: "buy", OrderType: "market", Volume: "1"})
	require.NoError(t, err)

	_, err = d.AddOrder(context.Background(), OrderSpec{Pair: "ETHUSD", Side: "buy", OrderType: "market", Volume: "1"})
	assert.ErrorIs(t, err, core.ErrTooManyOrders)

	d.OrderDone("TX1")
	_, err = d.AddOrder(context.Background(), OrderSpec{Pair: "ETHUSD", Side: "buy", OrderType: "market", Volume: "1"})
	assert.NoError(t, err)
}

func TestAddOrder_ReleasesSlotOnFailure(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EOrder:Insufficient funds"]}`))
	}))

	_, err := d.AddOrder(context.Background(), OrderSpec{Pair: "XBTUSD", Side: "buy", OrderType: "market", Volume: "100"})
	require.Error(t, err)
	assert.Equal(t, int64(0), d.Limiter().InFlight())
}

func TestCancelOrder(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "OU22CG-KLAF2-FWUDD7", r.PostForm.Get("txid"))
		w.Write([]byte(`{"error":[],"result":{"count":1}}`))
	}))

	res, err := d.CancelOrder(context.Background(), "OU22CG-KLAF2-FWUDD7")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestWebSocketToken(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/private/GetWebSocketsToken", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("API-Sign"))
		w.Write([]byte(`{"error":[],"result":{"token":"WW91ciBhdXRo","expires":900}}`))
	}))

	tok, err := d.WebSocketToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "WW91ciBhdXRo", tok.Token)
	assert.Equal(t, int64(900), tok.Expires)
}
