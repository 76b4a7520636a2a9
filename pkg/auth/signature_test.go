package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCreds(secret string) Credentials {
	return NewCredentials("test-key", base64.StdEncoding.EncodeToString([]byte(secret)))
}

func TestSignSpot_Deterministic(t *testing.T) {
	creds := testCreds("my_secret")

	sig1, err := SignSpot("/0/private/TradeBalance", 12345, "nonce=12345&asset=ZUSD", creds)
	require.NoError(t, err)
	sig2, err := SignSpot("/0/private/TradeBalance", 12345, "nonce=12345&asset=ZUSD", creds)
	require.NoError(t, err)

	assert.Equal(t, sig1, sig2)
}

func TestSignSpot_ValidBase64Output(t *testing.T) {
	creds := testCreds("test_secret_key_for_signing")

	sig, err := SignSpot("/0/private/Balance", 1616492376594, "nonce=1616492376594", creds)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	// HMAC-SHA512 output is 64 bytes, 88 chars once base64 encoded.
	assert.Len(t, raw, 64)
	assert.Len(t, sig, 88)
}

func TestSignSpot_InputSensitivity(t *testing.T) {
	creds := testCreds("my_secret")

	base, err := SignSpot("/0/private/Balance", 12345, "nonce=12345", creds)
	require.NoError(t, err)

	diffNonce, err := SignSpot("/0/private/Balance", 12346, "nonce=12346", creds)
	require.NoError(t, err)
	assert.NotEqual(t, base, diffNonce)

	diffPath, err := SignSpot("/0/private/TradeBalance", 12345, "nonce=12345", creds)
	require.NoError(t, err)
	assert.NotEqual(t, base, diffPath)

	diffBody, err := SignSpot("/0/private/Balance", 12345, "nonce=12345&asset=XBT", creds)
	require.NoError(t, err)
	assert.NotEqual(t, base, diffBody)

	diffSecret, err := SignSpot("/0/private/Balance", 12345, "nonce=12345", testCreds("other_secret"))
	require.NoError(t, err)
	assert.NotEqual(t, base, diffSecret)
}

func TestSignSpot_InvalidSecret(t *testing.T) {
	creds := NewCredentials("key", "not valid base64!!")

	_, err := SignSpot("/0/private/Balance", 1, "nonce=1", creds)
	assert.ErrorIs(t, err, ErrInvalidSecret)
}

func TestSignFutures_Deterministic(t *testing.T) {
	creds := testCreds("my_secret")

	sig1, err := SignFutures("/api/v3/accounts", 12345, "", creds)
	require.NoError(t, err)
	sig2, err := SignFutures("/api/v3/accounts", 12345, "", creds)
	require.NoError(t, err)

	assert.Equal(t, sig1, sig2)
	assert.Len(t, sig1, 88)
}

func TestSignFutures_DiffersFromSpot(t *testing.T) {
	creds := testCreds("my_secret")

	spot, err := SignSpot("/api/v3/accounts", 12345, "nonce=12345", creds)
	require.NoError(t, err)
	futures, err := SignFutures("/api/v3/accounts", 12345, "nonce=12345", creds)
	require.NoError(t, err)

	assert.NotEqual(t, spot, futures, "spot and futures schemes must not collide")
}

func TestSignFutures_InputSensitivity(t *testing.T) {
	creds := testCreds("my_secret")

	base, err := SignFutures("/api/v3/sendorder", 12345, "symbol=PI_XBTUSD", creds)
	require.NoError(t, err)

	diffBody, err := SignFutures("/api/v3/sendorder", 12345, "symbol=PI_ETHUSD", creds)
	require.NoError(t, err)
	assert.NotEqual(t, base, diffBody)

	diffPath, err := SignFutures("/api/v3/cancelorder", 12345, "symbol=PI_XBTUSD", creds)
	require.NoError(t, err)
	assert.NotEqual(t, base, diffPath)
}

func TestSignFutures_InvalidSecret(t *testing.T) {
	creds := NewCredentials("key", "%%%")

	_, err := SignFutures("/api/v3/accounts", 1, "", creds)
	assert.ErrorIs(t, err, ErrInvalidSecret)
}
