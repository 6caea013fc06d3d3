package quote

import (
	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

// snapToTick rounds raw to the nearest multiple of tickSize.
func snapToTick(raw, tickSize decimal.Decimal) decimal.Decimal {
	if tickSize.IsZero() {
		return raw
	}
	ratio := raw.Div(tickSize).Round(0)
	return ratio.Mul(tickSize)
}

// canQuoter is the narrow inventory-manager collaborator the ladder needs.
type canQuoter interface {
	CanQuote(side mmtypes.Side) bool
}

// buildDesired computes the desired ladder for both sides given the current
// mid and inventory skew, per spec §4.5. A side is entirely omitted when
// inv.CanQuote(side) is false. Quotes outside the price band or below
// minNotional are dropped.
func buildDesired(cfg Config, mid, bidSkewTicks, askSkewTicks decimal.Decimal, inv canQuoter) []mmtypes.QuoteDesired {
	halfSpread := cfg.BaseSpreadBps.Div(decimal.NewFromInt(10000)).Mul(mid).Div(decimal.NewFromInt(2))

	var out []mmtypes.QuoteDesired
	bandLow := mid.Mul(decimal.NewFromInt(1).Sub(cfg.PriceBandPct.Div(decimal.NewFromInt(100))))
	bandHigh := mid.Mul(decimal.NewFromInt(1).Add(cfg.PriceBandPct.Div(decimal.NewFromInt(100))))

	for level := 1; level <= cfg.Levels; level++ {
		offset := decimal.NewFromInt(int64(level)).Mul(cfg.LevelSpacingTicks).Mul(cfg.TickSize)
		size := cfg.BaseSize.Mul(cfg.SizeDecayFactor.Pow(decimal.NewFromInt(int64(level - 1))))

		if inv.CanQuote(mmtypes.Buy) {
			bidRaw := mid.Sub(halfSpread).Sub(offset).Add(bidSkewTicks.Mul(cfg.TickSize))
			q := mmtypes.QuoteDesired{Side: mmtypes.Buy, Level: level, Price: snapToTick(bidRaw, cfg.TickSize), Size: size}
			if passesFilters(q, bandLow, bandHigh, cfg.MinNotional) {
				out = append(out, q)
			}
		}
		if inv.CanQuote(mmtypes.Sell) {
			askRaw := mid.Add(halfSpread).Add(offset).Add(askSkewTicks.Mul(cfg.TickSize))
			q := mmtypes.QuoteDesired{Side: mmtypes.Sell, Level: level, Price: snapToTick(askRaw, cfg.TickSize), Size: size}
			if passesFilters(q, bandLow, bandHigh, cfg.MinNotional) {
				out = append(out, q)
			}
		}
	}
	return out
}

func passesFilters(q mmtypes.QuoteDesired, bandLow, bandHigh, minNotional decimal.Decimal) bool {
	if q.Price.LessThan(bandLow) || q.Price.GreaterThan(bandHigh) {
		return false
	}
	if q.Price.Mul(q.Size).LessThan(minNotional) {
		return false
	}
	return true
}
