// Package marketdata maintains a local order book fed by a FIX market-data
// session: subscribe, snapshot, and incremental update handling, plus the
// repeating-group reconstruction those messages require.
package marketdata

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

// Book is a concurrency-safe local mirror of one instrument's order book.
type Book struct {
	mu      sync.RWMutex
	bids    map[string]decimal.Decimal // price.String() -> size
	asks    map[string]decimal.Decimal
	updated time.Time
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{
		bids: make(map[string]decimal.Decimal),
		asks: make(map[string]decimal.Decimal),
	}
}

func (b *Book) sideFor(entryType string) map[string]decimal.Decimal {
	if entryType == mdEntryTypeBid {
		return b.bids
	}
	return b.asks
}

// applySnapshot clears both sides and re-inserts entries with size > 0.
func (b *Book) applySnapshot(entries []groupEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = make(map[string]decimal.Decimal)
	b.asks = make(map[string]decimal.Decimal)
	for _, e := range entries {
		if e.size.IsZero() || e.size.IsNegative() {
			continue
		}
		b.sideFor(e.entryType)[e.price.String()] = e.size
	}
	b.updated = time.Now()
}

// applyIncremental applies New/Change/Delete entries; action Delete or a
// zero size removes the price level.
func (b *Book) applyIncremental(entries []groupEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range entries {
		side := b.sideFor(e.entryType)
		if e.action == mdUpdateActionDelete || e.size.IsZero() {
			delete(side, e.price.String())
			continue
		}
		side[e.price.String()] = e.size
	}
	b.updated = time.Now()
}

func sortedLevels(side map[string]decimal.Decimal, descending bool) []mmtypes.PriceLevel {
	out := make([]mmtypes.PriceLevel, 0, len(side))
	for priceStr, size := range side {
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			continue
		}
		out = append(out, mmtypes.PriceLevel{Price: price, Size: size})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// GetOrderBook returns bids sorted descending and asks sorted ascending.
func (b *Book) GetOrderBook() (bids, asks []mmtypes.PriceLevel) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return sortedLevels(b.bids, true), sortedLevels(b.asks, false)
}

// BestBidAsk returns the best bid/ask prices and sizes, the midpoint, and
// the absolute spread. ok is false if either side is empty.
func (b *Book) BestBidAsk() (bestBid, bestAsk, bidSize, askSize, mid, spread decimal.Decimal, ok bool) {
	bids, asks := b.GetOrderBook()
	if len(bids) == 0 || len(asks) == 0 {
		return decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, false
	}
	bestBid, bidSize = bids[0].Price, bids[0].Size
	bestAsk, askSize = asks[0].Price, asks[0].Size
	mid = bestBid.Add(bestAsk).Div(decimal.NewFromInt(2))
	spread = bestAsk.Sub(bestBid)
	return bestBid, bestAsk, bidSize, askSize, mid, spread, true
}

// Spread returns the absolute spread in dollars and in basis points of mid.
func (b *Book) Spread() (dollars, bps decimal.Decimal, ok bool) {
	_, _, _, _, mid, spread, ok := b.BestBidAsk()
	if !ok || mid.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}
	bps = spread.Div(mid).Mul(decimal.NewFromInt(10000))
	return spread, bps, true
}

// IsStale reports whether the book hasn't been updated within maxAge.
func (b *Book) IsStale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.updated.IsZero() {
		return true
	}
	return time.Since(b.updated) > maxAge
}

// LastUpdated returns the timestamp of the last applied update.
func (b *Book) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}
