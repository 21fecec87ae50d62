// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/laughstock/market-engine/internal/pricing"
)

// Config holds all runtime configuration for the market engine.
type Config struct {
	Port        string
	DatabaseURL string // empty → in-memory store
	RedisURL    string // empty → no read-through cache

	SupabaseURL     string // empty → static dev verifier
	SupabaseAnonKey string

	// Pricing knobs.
	PriceStepSize      int64
	PriceChangePerStep decimal.Decimal
	PriceMin           decimal.Decimal

	// Trade limits. Zero disables the corresponding check.
	MaxTradeQuantity    int64
	MaxHoldingsPerAsset int64

	StartingCoins decimal.Decimal
	CacheTTLSecs  int
	SeedDemoData  bool
}

// Load reads configuration from environment variables, applying
// defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		SeedDemoData:    getEnvBool("SEED_DEMO_DATA", false),
	}

	var err error
	if cfg.PriceStepSize, err = getEnvInt64("PRICE_STEP_SIZE", pricing.DefaultStepSize); err != nil {
		return nil, err
	}
	if cfg.PriceChangePerStep, err = getEnvDecimal("PRICE_CHANGE_PER_STEP", "0.005"); err != nil {
		return nil, err
	}
	if cfg.PriceMin, err = getEnvDecimal("PRICE_MIN", "0.01"); err != nil {
		return nil, err
	}
	if cfg.MaxTradeQuantity, err = getEnvInt64("MAX_TRADE_QUANTITY", 10000); err != nil {
		return nil, err
	}
	if cfg.MaxHoldingsPerAsset, err = getEnvInt64("MAX_HOLDINGS_PER_ASSET", 0); err != nil {
		return nil, err
	}
	if cfg.StartingCoins, err = getEnvDecimal("STARTING_COINS", "1000"); err != nil {
		return nil, err
	}
	ttl, err := getEnvInt64("CACHE_TTL_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTLSecs = int(ttl)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDecimal(key, fallback string) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s must be a decimal: %w", key, err)
	}
	return d, nil
}
