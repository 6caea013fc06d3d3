// Package pnl implements FIFO realized P&L matching, mark-to-market
// unrealized P&L, and a maker/taker fee ledger.
package pnl

import (
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

// FeeSchedule is the {venue × maker/taker} basis-points table.
type FeeSchedule struct {
	TrueXMakerBps decimal.Decimal
	TrueXTakerBps decimal.Decimal
	HedgeMakerBps decimal.Decimal
	HedgeTakerBps decimal.Decimal
}

func (f FeeSchedule) bps(venue string, maker bool) decimal.Decimal {
	switch venue {
	case "truex":
		if maker {
			return f.TrueXMakerBps
		}
		return f.TrueXTakerBps
	case "hedge":
		if maker {
			return f.HedgeMakerBps
		}
		return f.HedgeTakerBps
	default:
		return decimal.Zero
	}
}

// Config is the pnl section of the configuration surface.
type Config struct {
	Fees                FeeSchedule
	SignificantPnLChange decimal.Decimal
}

// lot is one unmatched quantity at a price, FIFO-ordered within its queue.
type lot struct {
	qty   decimal.Decimal
	price decimal.Decimal
}

// Summary is the point-in-time P&L report.
type Summary struct {
	RealizedPnL         decimal.Decimal
	UnrealizedPnL        decimal.Decimal
	TotalFees           decimal.Decimal
	FeesByVenue         map[string]decimal.Decimal
	MakerFees           decimal.Decimal
	TakerFees           decimal.Decimal
	TotalMatchedQuantity decimal.Decimal
	NetPosition         decimal.Decimal
}

// SignificantChangeEvent fires when the realized+unrealized-fees figure
// moves by at least SignificantPnLChange since it was last reported.
type SignificantChangeEvent struct {
	Total decimal.Decimal
}

// Tracker owns the FIFO buy/sell lot queues and fee ledger. Single-writer:
// OnFill and MarkToMarket are expected to be called from one goroutine.
type Tracker struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	buyLots  []lot
	sellLots []lot

	realizedPnL decimal.Decimal
	totalFees   decimal.Decimal
	feesByVenue map[string]decimal.Decimal
	makerFees   decimal.Decimal
	takerFees   decimal.Decimal
	totalMatched decimal.Decimal
	unrealized  decimal.Decimal

	lastReported decimal.Decimal

	significantCh chan SignificantChangeEvent
}

// New constructs a Tracker.
func New(cfg Config, logger *slog.Logger) *Tracker {
	return &Tracker{
		cfg:           cfg,
		logger:        logger.With("component", "pnl"),
		feesByVenue:   make(map[string]decimal.Decimal),
		significantCh: make(chan SignificantChangeEvent, 64),
	}
}

// SignificantChanges returns the channel significant P&L moves are published on.
func (t *Tracker) SignificantChanges() <-chan SignificantChangeEvent { return t.significantCh }

// OnFill appends the new lot to its side's queue, matches it FIFO against
// the opposite queue, accrues the fee for this fill, and recomputes
// unrealized P&L against the last reported mark.
func (t *Tracker) OnFill(side mmtypes.Side, qty, price decimal.Decimal, venue string, maker bool, mid decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if side == mmtypes.Buy {
		t.buyLots = append(t.buyLots, lot{qty: qty, price: price})
	} else {
		t.sellLots = append(t.sellLots, lot{qty: qty, price: price})
	}
	t.match()

	fee := qty.Mul(price).Mul(t.cfg.Fees.bps(venue, maker)).Div(decimal.NewFromInt(10000))
	t.totalFees = t.totalFees.Add(fee)
	t.feesByVenue[venue] = t.feesByVenue[venue].Add(fee)
	if maker {
		t.makerFees = t.makerFees.Add(fee)
	} else {
		t.takerFees = t.takerFees.Add(fee)
	}

	t.recomputeUnrealizedLocked(mid)
	t.checkSignificantLocked()
}

// MarkToMarket recomputes unrealized P&L against mid without requiring a fill.
func (t *Tracker) MarkToMarket(mid decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recomputeUnrealizedLocked(mid)
	t.checkSignificantLocked()
}

// match pairs the head of each queue until either empties. Each match of
// qty q at buyPrice b and sellPrice s contributes q·(s−b) to realized P&L.
func (t *Tracker) match() {
	for len(t.buyLots) > 0 && len(t.sellLots) > 0 {
		b := &t.buyLots[0]
		s := &t.sellLots[0]

		q := b.qty
		if s.qty.LessThan(q) {
			q = s.qty
		}

		t.realizedPnL = t.realizedPnL.Add(q.Mul(s.price.Sub(b.price)))
		t.totalMatched = t.totalMatched.Add(q)

		b.qty = b.qty.Sub(q)
		s.qty = s.qty.Sub(q)

		if b.qty.IsZero() {
			t.buyLots = t.buyLots[1:]
		}
		if s.qty.IsZero() {
			t.sellLots = t.sellLots[1:]
		}
	}
}

func (t *Tracker) recomputeUnrealizedLocked(mid decimal.Decimal) {
	buyRemaining, buyAvg := remainder(t.buyLots)
	sellRemaining, sellAvg := remainder(t.sellLots)
	net := buyRemaining.Sub(sellRemaining)

	switch {
	case net.IsPositive():
		t.unrealized = net.Mul(mid.Sub(buyAvg))
	case net.IsNegative():
		t.unrealized = net.Neg().Mul(sellAvg.Sub(mid))
	default:
		t.unrealized = decimal.Zero
	}
}

// remainder returns the total quantity and quantity-weighted average price
// of the lots remaining in a queue.
func remainder(lots []lot) (qty, avgPrice decimal.Decimal) {
	var totalQty, totalCost decimal.Decimal
	for _, l := range lots {
		totalQty = totalQty.Add(l.qty)
		totalCost = totalCost.Add(l.qty.Mul(l.price))
	}
	if totalQty.IsZero() {
		return decimal.Zero, decimal.Zero
	}
	return totalQty, totalCost.Div(totalQty)
}

func (t *Tracker) checkSignificantLocked() {
	total := t.realizedPnL.Add(t.unrealized).Sub(t.totalFees)
	if total.Sub(t.lastReported).Abs().GreaterThanOrEqual(t.cfg.SignificantPnLChange) {
		t.lastReported = total
		select {
		case t.significantCh <- SignificantChangeEvent{Total: total}:
		default:
			t.logger.Warn("significantChange channel full, dropping event")
		}
	}
}

// Snapshot returns the current Summary.
func (t *Tracker) Snapshot() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	feesByVenue := make(map[string]decimal.Decimal, len(t.feesByVenue))
	for k, v := range t.feesByVenue {
		feesByVenue[k] = v
	}
	buyRemaining, _ := remainder(t.buyLots)
	sellRemaining, _ := remainder(t.sellLots)

	return Summary{
		RealizedPnL:          t.realizedPnL,
		UnrealizedPnL:        t.unrealized,
		TotalFees:            t.totalFees,
		FeesByVenue:          feesByVenue,
		MakerFees:            t.makerFees,
		TakerFees:            t.takerFees,
		TotalMatchedQuantity: t.totalMatched,
		NetPosition:          buyRemaining.Sub(sellRemaining),
	}
}
