package marketdata

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestApplySnapshotDropsZeroSizeAndSorts(t *testing.T) {
	t.Parallel()
	b := NewBook()
	b.applySnapshot([]groupEntry{
		{entryType: mdEntryTypeBid, price: d("100"), size: d("1")},
		{entryType: mdEntryTypeBid, price: d("101"), size: d("2")},
		{entryType: mdEntryTypeBid, price: d("99"), size: d("0")}, // dropped
		{entryType: mdEntryTypeAsk, price: d("103"), size: d("1")},
		{entryType: mdEntryTypeAsk, price: d("102"), size: d("1")},
	})

	bids, asks := b.GetOrderBook()
	if len(bids) != 2 || !bids[0].Price.Equal(d("101")) || !bids[1].Price.Equal(d("100")) {
		t.Fatalf("bids not sorted descending: %+v", bids)
	}
	if len(asks) != 2 || !asks[0].Price.Equal(d("102")) || !asks[1].Price.Equal(d("103")) {
		t.Fatalf("asks not sorted ascending: %+v", asks)
	}
}

func TestApplySnapshotIdempotent(t *testing.T) {
	t.Parallel()
	b := NewBook()
	entries := []groupEntry{
		{entryType: mdEntryTypeBid, price: d("100"), size: d("1")},
		{entryType: mdEntryTypeAsk, price: d("101"), size: d("1")},
	}
	b.applySnapshot(entries)
	bids1, asks1 := b.GetOrderBook()
	b.applySnapshot(entries)
	bids2, asks2 := b.GetOrderBook()

	if len(bids1) != len(bids2) || len(asks1) != len(asks2) {
		t.Fatalf("re-applying identical snapshot changed book shape")
	}
}

func TestApplyIncrementalDeleteAndZeroSize(t *testing.T) {
	t.Parallel()
	b := NewBook()
	b.applySnapshot([]groupEntry{
		{entryType: mdEntryTypeBid, price: d("100"), size: d("1")},
		{entryType: mdEntryTypeBid, price: d("99"), size: d("1")},
	})
	b.applyIncremental([]groupEntry{
		{entryType: mdEntryTypeBid, price: d("100"), action: mdUpdateActionDelete},
		{entryType: mdEntryTypeBid, price: d("99"), size: d("0"), action: mdUpdateActionChange},
	})
	bids, _ := b.GetOrderBook()
	if len(bids) != 0 {
		t.Fatalf("expected both bid levels removed, got %+v", bids)
	}
}

func TestBestBidAskAndSpread(t *testing.T) {
	t.Parallel()
	b := NewBook()
	b.applySnapshot([]groupEntry{
		{entryType: mdEntryTypeBid, price: d("99.50"), size: d("1")},
		{entryType: mdEntryTypeAsk, price: d("100.50"), size: d("1")},
	})

	bestBid, bestAsk, _, _, mid, spread, ok := b.BestBidAsk()
	if !ok {
		t.Fatal("expected ok")
	}
	if !bestBid.Equal(d("99.50")) || !bestAsk.Equal(d("100.50")) {
		t.Fatalf("best bid/ask = %s/%s", bestBid, bestAsk)
	}
	if !mid.Equal(d("100")) {
		t.Fatalf("mid = %s, want 100", mid)
	}
	if !spread.Equal(d("1")) {
		t.Fatalf("spread = %s, want 1", spread)
	}
}

func TestIsStale(t *testing.T) {
	t.Parallel()
	b := NewBook()
	if !b.IsStale(0) {
		t.Fatal("empty book should be stale")
	}
}
