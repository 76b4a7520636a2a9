package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame_Reply(t *testing.T) {
	f, err := parseFrame([]byte(`{"method":"subscribe","req_id":7,"success":true,"result":{"channel":"ticker","symbol":"BTC/USD"}}`))
	require.NoError(t, err)
	assert.True(t, f.isReply())
	require.NotNil(t, f.Success)
	assert.True(t, *f.Success)
}

func TestParseFrame_Heartbeat(t *testing.T) {
	f, err := parseFrame([]byte(`{"channel":"heartbeat"}`))
	require.NoError(t, err)
	assert.True(t, f.isHeartbeat())
	assert.False(t, f.isReply())
}

func TestParseFrame_Status(t *testing.T) {
	f, err := parseFrame([]byte(`{"channel":"status","type":"update","data":[{"system":"online","api_version":"v2","connection_id":12872621}]}`))
	require.NoError(t, err)
	assert.True(t, f.isStatus())
}

func TestDataSymbol(t *testing.T) {
	assert.Equal(t, "BTC/USD", dataSymbol([]byte(`[{"symbol":"BTC/USD","last":30000}]`)))
	assert.Empty(t, dataSymbol([]byte(`[{"order_id":"X"}]`)))
	assert.Empty(t, dataSymbol([]byte(`[]`)))
	assert.Empty(t, dataSymbol([]byte(`not json`)))
}
