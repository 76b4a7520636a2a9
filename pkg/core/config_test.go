package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, TierStarter, cfg.Tier)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 60, cfg.MaxOpenOrders)
}

func TestConfig_Validate_BadURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SpotBaseURL = "not a url"

	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_BadTier(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tier = "platinum"

	assert.Error(t, cfg.Validate())
}

func TestConfig_Chaining(t *testing.T) {
	cfg := DefaultConfig().
		WithTier(TierPro).
		WithTimeout(5 * time.Second).
		WithMaxOpenOrders(10).
		WithBaseURLs("https://spot.example.com", "https://futures.example.com")

	require.NoError(t, cfg.Validate())
	assert.Equal(t, TierPro, cfg.Tier)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.MaxOpenOrders)
	assert.Equal(t, "https://spot.example.com", cfg.SpotBaseURL)
}

func TestTier_RateLimitParams(t *testing.T) {
	cap1, decay1 := TierStarter.RateLimitParams()
	assert.Equal(t, 15.0, cap1)
	assert.InDelta(t, 0.33, decay1, 1e-9)

	cap2, decay2 := TierIntermediate.RateLimitParams()
	assert.Equal(t, 20.0, cap2)
	assert.Equal(t, 0.5, decay2)

	cap3, decay3 := TierPro.RateLimitParams()
	assert.Equal(t, 20.0, cap3)
	assert.Equal(t, 1.0, decay3)
}
