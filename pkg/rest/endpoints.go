package rest

// Spot API paths.
const (
	pathTime           = "/0/public/Time"
	pathSystemStatus   = "/0/public/SystemStatus"
	pathTicker         = "/0/public/Ticker"
	pathDepth          = "/0/public/Depth"
	pathBalance        = "/0/private/Balance"
	pathTradeBalance   = "/0/private/TradeBalance"
	pathOpenOrders     = "/0/private/OpenOrders"
	pathAddOrder       = "/0/private/AddOrder"
	pathCancelOrder    = "/0/private/CancelOrder"
	pathWebSocketToken = "/0/private/GetWebSocketsToken"
)

// Futures API paths, relative to the derivatives base URL.
const (
	pathFuturesAccounts      = "/api/v3/accounts"
	pathFuturesTickers       = "/api/v3/tickers"
	pathFuturesSendOrder     = "/api/v3/sendorder"
	pathFuturesCancelOrder   = "/api/v3/cancelorder"
	pathFuturesOpenPositions = "/api/v3/openpositions"
)

// Private endpoint costs against the decay counter. Most calls cost 1;
// ledger and trade history style queries cost 2.
const (
	costDefault      = 1
	costOrderHistory = 2
)
