package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
order_entry:
  host: fix.truex.example
  port: 9001
  sender_comp_id: MM1
  target_comp_id: TRUEX
market_data:
  session:
    host: fix.truex.example
    port: 9002
    sender_comp_id: MM1MD
    target_comp_id: TRUEX
  symbol: BTC-USD
  request_id: MDR-1
hedge_venue:
  base_url: https://api.kraken.example
price_source:
  url: wss://prices.example/ws
  symbol: BTC-USD
inventory:
  max_position_base: "10"
hedge:
  min_hedge_size: "0.01"
quote:
  levels: 3
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.OrderEntry.Port != 9001 {
		t.Errorf("OrderEntry.Port = %d, want 9001", cfg.OrderEntry.Port)
	}
	if cfg.Quote.Levels != 3 {
		t.Errorf("Quote.Levels = %d, want 3", cfg.Quote.Levels)
	}
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestEnvOverridesSensitiveFields(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	t.Setenv("MM_OE_API_KEY", "env-key")
	t.Setenv("MM_OE_API_SECRET", "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OrderEntry.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.OrderEntry.APIKey)
	}
	if cfg.OrderEntry.APISecret != "env-secret" {
		t.Errorf("APISecret = %q, want env-secret", cfg.OrderEntry.APISecret)
	}
}

func TestToOrchestratorConfigConvertsDecimals(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	oc := cfg.ToOrchestratorConfig()
	if oc.Inventory.MaxPositionBase.String() != "10" {
		t.Errorf("MaxPositionBase = %v, want 10", oc.Inventory.MaxPositionBase)
	}
	if oc.Hedge.MinHedgeSize.String() != "0.01" {
		t.Errorf("MinHedgeSize = %v, want 0.01", oc.Hedge.MinHedgeSize)
	}
	if oc.MarketDataSymbol != "BTC-USD" {
		t.Errorf("MarketDataSymbol = %q, want BTC-USD", oc.MarketDataSymbol)
	}
}
