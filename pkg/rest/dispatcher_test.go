package rest

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krakenx/pkg/auth"
	"krakenx/pkg/core"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("test-secret-key-material"))

func testConfig(url string) *core.Config {
	cfg := core.DefaultConfig().WithBaseURLs(url, url).WithTier(core.TierPro)
	cfg.MaxRetries = 0
	cfg.Timeout = 2 * time.Second
	return cfg
}

func newTestDispatcher(t *testing.T, handler http.Handler) (*Dispatcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	d, err := NewDispatcher(testConfig(srv.URL), auth.NewStaticProvider("test-key", testSecret))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d, srv
}

func TestDispatcher_PublicRequest(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/0/public/Time", r.URL.Path)
		w.Write([]byte(`{"error":[],"result":{"unixtime":1688669448,"rfc1123":"Thu, 06 Jul 23 18:50:48 +0000"}}`))
	}))

	st, err := d.Time(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1688669448), st.UnixTime)
}

func TestDispatcher_PrivateSpotSigning(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("API-Key"))
		assert.NotEmpty(t, r.Header.Get("API-Sign"))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")

		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.PostForm.Get("nonce"))
		w.Write([]byte(`{"error":[],"result":{"ZUSD":"1000.5000","XXBT":"0.25"}}`))
	}))

	balances, err := d.AccountBalance(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, "1000.5000", balances["ZUSD"].String())
	assert.Equal(t, "0.25", balances["XXBT"].String())
}

func TestDispatcher_NoncesIncreaseAcrossCalls(t *testing.T) {
	var nonces []uint64
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		n, err := strconv.ParseUint(r.PostForm.Get("nonce"), 10, 64)
		require.NoError(t, err)
		nonces = append(nonces, n)
		w.Write([]byte(`{"error":[],"result":{}}`))
	}))

	for i := 0; i < 3; i++ {
		_, err := d.TradeBalance(context.Background(), "ZUSD")
		require.NoError(t, err)
	}

	require.Len(t, nonces, 3)
	assert.Less(t, nonces[0], nonces[1])
	assert.Less(t, nonces[1], nonces[2])
}

func TestDispatcher_VenueErrorClassified(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EAPI:Invalid key"]}`))
	}))

	_, err := d.AccountBalance(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsAuthRejected(err))
}

func TestDispatcher_RateLimitStatus(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := d.Time(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsRateLimited(err))

	var verr *core.VenueError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 7*time.Second, verr.RetryAfter)
}

func TestDispatcher_ServerErrorTransient(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := d.Time(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsTransient(err))
}

func TestDispatcher_CircuitBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.CircuitBreakerFailThreshold = 2
	d, err := NewDispatcher(cfg, nil)
	require.NoError(t, err)
	defer d.Close()

	for i := 0; i < 2; i++ {
		_, err := d.Time(context.Background())
		require.Error(t, err)
	}

	_, err = d.Time(context.Background())
	assert.ErrorIs(t, err, core.ErrCircuitOpen)
}

func TestDispatcher_ClosedRejectsRequests(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":[],"result":{}}`))
	}))

	require.NoError(t, d.Close())

	_, err := d.Time(context.Background())
	assert.ErrorIs(t, err, core.ErrSessionClosed)
}

func TestDispatcher_MissingCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	d, err := NewDispatcher(testConfig(srv.URL), nil)
	require.NoError(t, err)
	defer d.Close()

	_, err = d.AccountBalance(context.Background())
	assert.ErrorIs(t, err, auth.ErrMissingCredential)
}

func TestDispatcher_MalformedResponse(t *testing.T) {
	d, _ := newTestDispatcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))

	_, err := d.Time(context.Background())
	require.Error(t, err)

	var verr *core.VenueError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, core.ErrorTypeProtocol, verr.Type)
}
