package quote

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config is the quote section of the configuration surface.
type Config struct {
	Symbol               string
	ClientID             string
	Levels               int
	BaseSpreadBps        decimal.Decimal
	LevelSpacingTicks    decimal.Decimal
	TickSize             decimal.Decimal
	BaseSize             decimal.Decimal
	SizeDecayFactor      decimal.Decimal
	PriceBandPct         decimal.Decimal
	MinNotional          decimal.Decimal
	ConfidenceThreshold  float64
	RepriceThresholdTicks decimal.Decimal
	DupGuardMs           int
	MaxOrdersPerSecond   int
	DrainInterval        time.Duration
}

// WithDefaults fills in zero-valued optional fields.
func (c Config) WithDefaults() Config {
	if c.DupGuardMs == 0 {
		c.DupGuardMs = 500
	}
	if c.DrainInterval == 0 {
		c.DrainInterval = 200 * time.Millisecond
	}
	if c.SizeDecayFactor.IsZero() {
		c.SizeDecayFactor = decimal.NewFromInt(1)
	}
	if c.Levels == 0 {
		c.Levels = 1
	}
	return c
}
