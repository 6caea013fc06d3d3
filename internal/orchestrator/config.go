package orchestrator

import (
	"time"

	"truex-mm/internal/fixsession"
	"truex-mm/internal/hedge"
	"truex-mm/internal/inventory"
	"truex-mm/internal/pnl"
	"truex-mm/internal/quote"
)

// Config aggregates every subsystem's configuration surface into the one
// object the orchestrator needs to construct and wire the whole engine.
type Config struct {
	OrderEntrySession fixsession.Config
	MarketDataSession fixsession.Config
	MarketDataSymbol  string

	Inventory inventory.Config
	PnL       pnl.Config
	Quote     quote.Config
	Hedge     hedge.Config

	PnLSummaryInterval time.Duration
	MarketDataRequestID string

	// HedgePriceSource selects where the hedge executor's limit-order leg
	// reads its reference best bid/ask from: "book" prefers the local FIX
	// market-data book and falls back to PriceSource when the book is empty
	// or stale; "pricesource" always uses the external fused price. Defaults
	// to "book".
	HedgePriceSource string
}

const (
	HedgePriceSourceBook        = "book"
	HedgePriceSourcePriceSource = "pricesource"
)

func (c Config) withDefaults() Config {
	if c.PnLSummaryInterval <= 0 {
		c.PnLSummaryInterval = time.Minute
	}
	if c.MarketDataRequestID == "" {
		c.MarketDataRequestID = "MDR-1"
	}
	if c.HedgePriceSource == "" {
		c.HedgePriceSource = HedgePriceSourceBook
	}
	return c
}
