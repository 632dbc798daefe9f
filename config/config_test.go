package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prism/market-ledger/config"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "ledger.db", cfg.DBPath)
	assert.True(t, cfg.FeePercentage().Equal(decimalFromString(t, "2.5")))
	assert.Equal(t, "mainnet", cfg.DefaultNetwork)
	assert.Equal(t, uint64(50000), cfg.ReconcileBlockWindow)
	assert.Equal(t, 30*time.Second, cfg.StatsCacheTTL)
	assert.Equal(t, 7, cfg.RecentWindowDays)
	assert.False(t, cfg.ChainEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("FEE_PERCENT", "5")
	t.Setenv("CHAIN_RPC_URL", "http://localhost:8545")
	t.Setenv("CONTRACT_ADDRESS", "0x4444444444444444444444444444444444444444")
	t.Setenv("STATS_CACHE_TTL", "90s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.True(t, cfg.FeePercentage().Equal(decimalFromString(t, "5")))
	assert.True(t, cfg.ChainEnabled())
	assert.Equal(t, 90*time.Second, cfg.StatsCacheTTL)
}

func TestLoad_RejectsMalformedFeePercent(t *testing.T) {
	t.Setenv("FEE_PERCENT", "two-and-a-half")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEE_PERCENT")
}
