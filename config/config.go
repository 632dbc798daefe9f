/*
Package config loads runtime configuration from the environment.

A .env file in the working directory is loaded first (missing is fine),
then every field is decoded from the environment with its default applied.
FeePercent is parsed into a decimal at load time so a malformed value fails
startup instead of the first purchase.
*/
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the full runtime configuration.
type Config struct {
	Port   int    `env:"PORT,default=8080"`
	DBPath string `env:"DB_PATH,default=ledger.db"`

	// FeePercent is the platform fee percentage applied at ingestion.
	FeePercent     string `env:"FEE_PERCENT,default=2.5"`
	DefaultNetwork string `env:"DEFAULT_NETWORK,default=mainnet"`

	ChainRPCURL          string `env:"CHAIN_RPC_URL"`
	ContractAddress      string `env:"CONTRACT_ADDRESS"`
	ReconcileBlockWindow uint64 `env:"RECONCILE_BLOCK_WINDOW,default=50000"`
	ReconcileSchedule    string `env:"RECONCILE_SCHEDULE,default=0 * * * *"`

	StatsCacheTTL    time.Duration `env:"STATS_CACHE_TTL,default=30s"`
	RecentWindowDays int           `env:"RECENT_WINDOW_DAYS,default=7"`
	RateLimitRPS     float64       `env:"RATE_LIMIT_RPS,default=50"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if _, err := decimal.NewFromString(cfg.FeePercent); err != nil {
		return nil, fmt.Errorf("FEE_PERCENT %q is not a decimal: %w", cfg.FeePercent, err)
	}
	return &cfg, nil
}

// FeePercentage returns FEE_PERCENT as a decimal. Load validated it.
func (c *Config) FeePercentage() decimal.Decimal {
	d, _ := decimal.NewFromString(c.FeePercent)
	return d
}

// ChainEnabled reports whether a chain reader can be constructed.
func (c *Config) ChainEnabled() bool {
	return c.ChainRPCURL != "" && c.ContractAddress != ""
}
