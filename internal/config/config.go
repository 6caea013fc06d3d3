// Package config defines all configuration for the market-making engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via MM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"truex-mm/internal/fixsession"
	"truex-mm/internal/hedge"
	"truex-mm/internal/hedgevenue"
	"truex-mm/internal/inventory"
	"truex-mm/internal/opstatus"
	"truex-mm/internal/orchestrator"
	"truex-mm/internal/pnl"
	"truex-mm/internal/pricesource"
	"truex-mm/internal/quote"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun      bool              `mapstructure:"dry_run"`
	OrderEntry  FIXSessionConfig  `mapstructure:"order_entry"`
	MarketData  MarketDataConfig  `mapstructure:"market_data"`
	HedgeVenue  HedgeVenueConfig  `mapstructure:"hedge_venue"`
	PriceSource PriceSourceConfig `mapstructure:"price_source"`
	Inventory   InventoryConfig   `mapstructure:"inventory"`
	PnL         PnLConfig         `mapstructure:"pnl"`
	Quote       QuoteConfig       `mapstructure:"quote"`
	Hedge       HedgeConfig       `mapstructure:"hedge"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Status      StatusConfig      `mapstructure:"status"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// FIXSessionConfig describes one FIXT.1.1/FIX 5.0SP2 session (order-entry or
// market-data — both share this shape, the venue distinguishes them by
// SenderCompID/TargetCompID).
type FIXSessionConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	SenderCompID string `mapstructure:"sender_comp_id"`
	TargetCompID string `mapstructure:"target_comp_id"`
	APIKey       string `mapstructure:"api_key"`
	APISecret    string `mapstructure:"api_secret"`

	HeartbeatIntervalSec  int `mapstructure:"heartbeat_interval_sec"`
	MaxReconnectAttempts  int `mapstructure:"max_reconnect_attempts"`
	InitialReconnectDelayMs int `mapstructure:"initial_reconnect_delay_ms"`
	MaxReconnectDelayMs     int `mapstructure:"max_reconnect_delay_ms"`
	MaxStoredMessages       int `mapstructure:"max_stored_messages"`
	MessageRetentionSec     int `mapstructure:"message_retention_sec"`
}

// MarketDataConfig wraps the market-data FIX session plus the symbol and
// request id it subscribes with.
type MarketDataConfig struct {
	Session   FIXSessionConfig `mapstructure:"session"`
	Symbol    string           `mapstructure:"symbol"`
	RequestID string           `mapstructure:"request_id"`
}

// HedgeVenueConfig configures the REST hedge-venue client.
type HedgeVenueConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	APISecret     string `mapstructure:"api_secret"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// PriceSourceConfig configures the external fused reference-price feed.
type PriceSourceConfig struct {
	URL    string `mapstructure:"url"`
	Symbol string `mapstructure:"symbol"`
}

// InventoryConfig mirrors internal/inventory.Config in YAML-friendly types.
type InventoryConfig struct {
	MaxPositionBase    string  `mapstructure:"max_position_base"`
	HedgeThresholdBase string  `mapstructure:"hedge_threshold_base"`
	EmergencyLimitBase string  `mapstructure:"emergency_limit_base"`
	MaxSkewTicks       string  `mapstructure:"max_skew_ticks"`
	SkewExponent       float64 `mapstructure:"skew_exponent"`
	TickSize           string  `mapstructure:"tick_size"`
	LimitWarningPct    float64 `mapstructure:"limit_warning_pct"`
}

// PnLConfig mirrors internal/pnl.Config.
type PnLConfig struct {
	TrueXMakerBps        string `mapstructure:"truex_maker_bps"`
	TrueXTakerBps        string `mapstructure:"truex_taker_bps"`
	HedgeMakerBps        string `mapstructure:"hedge_maker_bps"`
	HedgeTakerBps        string `mapstructure:"hedge_taker_bps"`
	SignificantPnLChange string `mapstructure:"significant_pnl_change"`
}

// QuoteConfig mirrors internal/quote.Config.
type QuoteConfig struct {
	Symbol                string `mapstructure:"symbol"`
	ClientID              string `mapstructure:"client_id"`
	Levels                int    `mapstructure:"levels"`
	BaseSpreadBps         string `mapstructure:"base_spread_bps"`
	LevelSpacingTicks     string `mapstructure:"level_spacing_ticks"`
	TickSize              string `mapstructure:"tick_size"`
	BaseSize              string `mapstructure:"base_size"`
	SizeDecayFactor       string `mapstructure:"size_decay_factor"`
	PriceBandPct          string `mapstructure:"price_band_pct"`
	MinNotional           string `mapstructure:"min_notional"`
	ConfidenceThreshold   float64 `mapstructure:"confidence_threshold"`
	RepriceThresholdTicks string `mapstructure:"reprice_threshold_ticks"`
	DupGuardMs            int    `mapstructure:"dup_guard_ms"`
	MaxOrdersPerSecond    int    `mapstructure:"max_orders_per_second"`
	DrainIntervalMs       int    `mapstructure:"drain_interval_ms"`
}

// HedgeConfig mirrors internal/hedge.Config.
type HedgeConfig struct {
	HedgeSymbol         string `mapstructure:"hedge_symbol"`
	MinHedgeSize        string `mapstructure:"min_hedge_size"`
	MaxHedgeSize        string `mapstructure:"max_hedge_size"`
	LimitTimeoutMs      int    `mapstructure:"limit_timeout_ms"`
	PollIntervalMs      int    `mapstructure:"poll_interval_ms"`
	LimitPriceOffsetBps string `mapstructure:"limit_price_offset_bps"`
}

// PersistenceConfig controls the JSON-file persistence adapter.
type PersistenceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DataDir string `mapstructure:"data_dir"`
}

// StatusConfig controls the optional SSE operator status surface.
type StatusConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	Port             int  `mapstructure:"port"`
	PollIntervalSec int  `mapstructure:"poll_interval_sec"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: MM_OE_API_KEY, MM_OE_API_SECRET,
// MM_MD_API_KEY, MM_MD_API_SECRET, MM_HEDGE_API_KEY, MM_HEDGE_API_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("MM_OE_API_KEY"); key != "" {
		cfg.OrderEntry.APIKey = key
	}
	if secret := os.Getenv("MM_OE_API_SECRET"); secret != "" {
		cfg.OrderEntry.APISecret = secret
	}
	if key := os.Getenv("MM_MD_API_KEY"); key != "" {
		cfg.MarketData.Session.APIKey = key
	}
	if secret := os.Getenv("MM_MD_API_SECRET"); secret != "" {
		cfg.MarketData.Session.APISecret = secret
	}
	if key := os.Getenv("MM_HEDGE_API_KEY"); key != "" {
		cfg.HedgeVenue.APIKey = key
	}
	if secret := os.Getenv("MM_HEDGE_API_SECRET"); secret != "" {
		cfg.HedgeVenue.APISecret = secret
	}
	if os.Getenv("MM_DRY_RUN") == "true" || os.Getenv("MM_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.OrderEntry.Host == "" || c.OrderEntry.Port == 0 {
		return fmt.Errorf("order_entry.host and order_entry.port are required")
	}
	if c.OrderEntry.SenderCompID == "" || c.OrderEntry.TargetCompID == "" {
		return fmt.Errorf("order_entry.sender_comp_id and target_comp_id are required")
	}
	if c.MarketData.Session.Host == "" || c.MarketData.Symbol == "" {
		return fmt.Errorf("market_data.session.host and market_data.symbol are required")
	}
	if c.HedgeVenue.BaseURL == "" {
		return fmt.Errorf("hedge_venue.base_url is required")
	}
	if c.PriceSource.URL == "" || c.PriceSource.Symbol == "" {
		return fmt.Errorf("price_source.url and price_source.symbol are required")
	}
	if _, err := decimal.NewFromString(zeroIfEmpty(c.Inventory.MaxPositionBase)); err != nil {
		return fmt.Errorf("inventory.max_position_base: %w", err)
	}
	if _, err := decimal.NewFromString(zeroIfEmpty(c.Hedge.MinHedgeSize)); err != nil {
		return fmt.Errorf("hedge.min_hedge_size: %w", err)
	}
	if c.Quote.Levels <= 0 {
		return fmt.Errorf("quote.levels must be > 0")
	}
	return nil
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// ToFIXSessionConfig converts the YAML-friendly shape into fixsession.Config.
func (c FIXSessionConfig) ToFIXSessionConfig() fixsession.Config {
	return fixsession.Config{
		Host:                  c.Host,
		Port:                  c.Port,
		SenderCompID:          c.SenderCompID,
		TargetCompID:          c.TargetCompID,
		APIKey:                c.APIKey,
		APISecret:             c.APISecret,
		HeartbeatInterval:     time.Duration(c.HeartbeatIntervalSec) * time.Second,
		MaxReconnectAttempts:  c.MaxReconnectAttempts,
		InitialReconnectDelay: time.Duration(c.InitialReconnectDelayMs) * time.Millisecond,
		MaxReconnectDelay:     time.Duration(c.MaxReconnectDelayMs) * time.Millisecond,
		MaxStoredMessages:     c.MaxStoredMessages,
		MessageRetention:      time.Duration(c.MessageRetentionSec) * time.Second,
	}
}

// ToHedgeVenueConfig converts to hedgevenue.Config.
func (c HedgeVenueConfig) ToHedgeVenueConfig() hedgevenue.Config {
	timeout := 10 * time.Second
	if c.TimeoutSec > 0 {
		timeout = time.Duration(c.TimeoutSec) * time.Second
	}
	return hedgevenue.Config{
		BaseURL:    c.BaseURL,
		APIKey:     c.APIKey,
		APISecret:  c.APISecret,
		Timeout:    timeout,
		RetryCount: c.RetryCount,
	}
}

// ToPriceSourceConfig converts to pricesource.Config.
func (c PriceSourceConfig) ToPriceSourceConfig() pricesource.Config {
	return pricesource.Config{URL: c.URL, Symbol: c.Symbol}
}

// ToInventoryConfig converts to inventory.Config.
func (c InventoryConfig) ToInventoryConfig() inventory.Config {
	return inventory.Config{
		MaxPositionBase:    mustDecimal(c.MaxPositionBase),
		HedgeThresholdBase: mustDecimal(c.HedgeThresholdBase),
		EmergencyLimitBase: mustDecimal(c.EmergencyLimitBase),
		MaxSkewTicks:       mustDecimal(c.MaxSkewTicks),
		SkewExponent:       c.SkewExponent,
		TickSize:           mustDecimal(c.TickSize),
		LimitWarningPct:    c.LimitWarningPct,
	}
}

// ToPnLConfig converts to pnl.Config.
func (c PnLConfig) ToPnLConfig() pnl.Config {
	return pnl.Config{
		Fees: pnl.FeeSchedule{
			TrueXMakerBps: mustDecimal(c.TrueXMakerBps),
			TrueXTakerBps: mustDecimal(c.TrueXTakerBps),
			HedgeMakerBps: mustDecimal(c.HedgeMakerBps),
			HedgeTakerBps: mustDecimal(c.HedgeTakerBps),
		},
		SignificantPnLChange: mustDecimal(c.SignificantPnLChange),
	}
}

// ToQuoteConfig converts to quote.Config.
func (c QuoteConfig) ToQuoteConfig() quote.Config {
	return quote.Config{
		Symbol:                c.Symbol,
		ClientID:              c.ClientID,
		Levels:                c.Levels,
		BaseSpreadBps:         mustDecimal(c.BaseSpreadBps),
		LevelSpacingTicks:     mustDecimal(c.LevelSpacingTicks),
		TickSize:              mustDecimal(c.TickSize),
		BaseSize:              mustDecimal(c.BaseSize),
		SizeDecayFactor:       mustDecimal(c.SizeDecayFactor),
		PriceBandPct:          mustDecimal(c.PriceBandPct),
		MinNotional:           mustDecimal(c.MinNotional),
		ConfidenceThreshold:   c.ConfidenceThreshold,
		RepriceThresholdTicks: mustDecimal(c.RepriceThresholdTicks),
		DupGuardMs:            c.DupGuardMs,
		MaxOrdersPerSecond:    c.MaxOrdersPerSecond,
		DrainInterval:         time.Duration(c.DrainIntervalMs) * time.Millisecond,
	}
}

// ToHedgeConfig converts to hedge.Config.
func (c HedgeConfig) ToHedgeConfig() hedge.Config {
	return hedge.Config{
		HedgeSymbol:         c.HedgeSymbol,
		MinHedgeSize:        mustDecimal(c.MinHedgeSize),
		MaxHedgeSize:        mustDecimal(c.MaxHedgeSize),
		LimitTimeoutMs:      c.LimitTimeoutMs,
		PollIntervalMs:      c.PollIntervalMs,
		LimitPriceOffsetBps: mustDecimal(c.LimitPriceOffsetBps),
	}
}

// ToStatusConfig converts to opstatus.Config.
func (c StatusConfig) ToStatusConfig() opstatus.Config {
	return opstatus.Config{
		Enabled:      c.Enabled,
		Port:         c.Port,
		PollInterval: time.Duration(c.PollIntervalSec) * time.Second,
	}
}

// ToOrchestratorConfig aggregates every subsystem's config into the shape
// orchestrator.New needs.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		OrderEntrySession:  c.OrderEntry.ToFIXSessionConfig(),
		MarketDataSession:  c.MarketData.Session.ToFIXSessionConfig(),
		MarketDataSymbol:   c.MarketData.Symbol,
		MarketDataRequestID: c.MarketData.RequestID,
		Inventory:          c.Inventory.ToInventoryConfig(),
		PnL:                c.PnL.ToPnLConfig(),
		Quote:              c.Quote.ToQuoteConfig(),
		Hedge:              c.Hedge.ToHedgeConfig(),
	}
}
