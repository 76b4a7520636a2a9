package core

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Tier is the account verification tier, which sets the private and trading
// rate-limit parameters the venue grants the credential.
type Tier string

// Verification tiers.
const (
	TierStarter      Tier = "starter"
	TierIntermediate Tier = "intermediate"
	TierPro          Tier = "pro"
)

// RateLimitParams returns the counter capacity and decay per second for the
// tier, mirroring the venue's published schedule.
func (t Tier) RateLimitParams() (capacity float64, decayPerSec float64) {
	switch t {
	case TierIntermediate:
		return 20, 0.5
	case TierPro:
		return 20, 1.0
	default:
		return 15, 0.33
	}
}

// Config holds the settings for a REST dispatcher or streaming session.
type Config struct {
	// SpotBaseURL is the Spot REST API base URL.
	SpotBaseURL string `json:"spot_base_url" validate:"required,url"`
	// FuturesBaseURL is the Futures REST API base URL.
	FuturesBaseURL string `json:"futures_base_url" validate:"required,url"`
	// SpotWSURL is the public Spot websocket endpoint.
	SpotWSURL string `json:"spot_ws_url" validate:"required"`
	// SpotWSAuthURL is the authenticated Spot websocket endpoint.
	SpotWSAuthURL string `json:"spot_ws_auth_url" validate:"required"`

	// Tier selects the venue rate-limit parameters for the credential.
	Tier Tier `json:"tier" validate:"omitempty,oneof=starter intermediate pro"`

	Timeout      time.Duration `json:"timeout" validate:"min=1ms"`
	MaxRetries   int           `json:"max_retries" validate:"min=0"`
	RetryWaitMin time.Duration `json:"retry_wait_min" validate:"min=0"`
	RetryWaitMax time.Duration `json:"retry_wait_max" validate:"min=0"`

	// MaxOpenOrders caps concurrent in-flight order submissions. Submissions
	// over the cap are rejected, not queued.
	MaxOpenOrders int `json:"max_open_orders" validate:"min=1"`

	// CostHeader names the response header carrying the server-reported
	// request cost, used to reconcile the client-side buckets. Leave empty
	// to disable reconciliation.
	CostHeader string `json:"cost_header"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config with production endpoints and defaults:
// 10s timeout, 3 retries, starter tier, 60 in-flight orders, breaker at
// 5 failures / 2 successes / 30s probe.
func DefaultConfig() *Config {
	return &Config{
		SpotBaseURL:    "https://api.kraken.com",
		FuturesBaseURL: "https://futures.kraken.com/derivatives",
		SpotWSURL:      "wss://ws.kraken.com/v2",
		SpotWSAuthURL:  "wss://ws-auth.kraken.com/v2",

		Tier: TierStarter,

		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 1 * time.Second,

		MaxOpenOrders: 60,
		CostHeader:    "X-RateLimit-Cost",

		CircuitBreakerEnabled:          true,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		LogLevel: "info",
	}
}

var validate = validator.New()

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// WithTier sets the verification tier and returns the config for chaining.
func (c *Config) WithTier(tier Tier) *Config {
	c.Tier = tier
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithBaseURLs overrides the REST base URLs, useful against a test server.
func (c *Config) WithBaseURLs(spot, futures string) *Config {
	c.SpotBaseURL = spot
	c.FuturesBaseURL = futures
	return c
}

// WithMaxOpenOrders sets the in-flight order cap and returns the config.
func (c *Config) WithMaxOpenOrders(n int) *Config {
	c.MaxOpenOrders = n
	return c
}
