package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_Encode_Sorted(t *testing.T) {
	p := Params{"pair": "XBT/USD", "nonce": "12345", "asset": "ZUSD"}

	assert.Equal(t, "asset=ZUSD&nonce=12345&pair=XBT%2FUSD", p.Encode())
}

func TestParams_Encode_Empty(t *testing.T) {
	assert.Equal(t, "", Params{}.Encode())
	assert.Equal(t, "", Params(nil).Encode())
}

func TestRequest_Builders(t *testing.T) {
	req := NewRequest("POST", "/0/private/AddOrder").
		SetParam("pair", "XBTUSD").
		SetPrivate(PolicyTrading).
		SetCost(1).
		SetVenue(VenueSpot)

	assert.True(t, req.Private)
	assert.Equal(t, PolicyTrading, req.Policy)
	assert.Equal(t, VenueSpot, req.Venue)
	assert.Equal(t, "XBTUSD", req.Params["pair"])
	assert.Equal(t, 1.0, req.Cost)
}

func TestPolicyKind_String(t *testing.T) {
	assert.Equal(t, "PUBLIC", PolicyPublic.String())
	assert.Equal(t, "PRIVATE", PolicyPrivate.String())
	assert.Equal(t, "TRADING", PolicyTrading.String())
}
