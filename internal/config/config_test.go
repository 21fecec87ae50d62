package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "PRICE_STEP_SIZE", "PRICE_CHANGE_PER_STEP", "STARTING_COINS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.PriceStepSize != 5 {
		t.Errorf("expected default step size 5, got %d", cfg.PriceStepSize)
	}
	if cfg.PriceChangePerStep.String() != "0.005" {
		t.Errorf("expected default change per step 0.005, got %s", cfg.PriceChangePerStep)
	}
	if cfg.StartingCoins.String() != "1000" {
		t.Errorf("expected default starting coins 1000, got %s", cfg.StartingCoins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("PRICE_STEP_SIZE", "10")
	t.Setenv("PRICE_CHANGE_PER_STEP", "0.01")
	t.Setenv("MAX_TRADE_QUANTITY", "50")
	t.Setenv("SEED_DEMO_DATA", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9999" {
		t.Errorf("expected port 9999, got %s", cfg.Port)
	}
	if cfg.PriceStepSize != 10 {
		t.Errorf("expected step size 10, got %d", cfg.PriceStepSize)
	}
	if cfg.PriceChangePerStep.String() != "0.01" {
		t.Errorf("expected change per step 0.01, got %s", cfg.PriceChangePerStep)
	}
	if cfg.MaxTradeQuantity != 50 {
		t.Errorf("expected max trade quantity 50, got %d", cfg.MaxTradeQuantity)
	}
	if !cfg.SeedDemoData {
		t.Error("expected seed flag true")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("PRICE_STEP_SIZE", "five")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-integer step size")
	}
}
