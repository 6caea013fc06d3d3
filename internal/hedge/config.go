package hedge

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config is the hedge section of the configuration surface.
type Config struct {
	HedgeSymbol         string
	MinHedgeSize        decimal.Decimal
	MaxHedgeSize        decimal.Decimal
	LimitTimeoutMs       int
	PollIntervalMs       int
	LimitPriceOffsetBps decimal.Decimal
}

func (c Config) limitTimeout() time.Duration {
	return time.Duration(c.LimitTimeoutMs) * time.Millisecond
}

func (c Config) pollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}
