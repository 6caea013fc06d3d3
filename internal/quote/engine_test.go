package quote

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"truex-mm/internal/fixcodec"
	"truex-mm/internal/mmtypes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSender struct {
	mu   sync.Mutex
	sent []struct {
		msgType string
		body    *fixcodec.Fields
	}
	seq int
}

func (f *fakeSender) SendApplicationMessage(msgType string, body *fixcodec.Fields) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.sent = append(f.sent, struct {
		msgType string
		body    *fixcodec.Fields
	}{msgType, body})
	return f.seq, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeInventory struct {
	canQuoteBuy, canQuoteSell bool
	bidSkew, askSkew          decimal.Decimal
}

func (f fakeInventory) CanQuote(side mmtypes.Side) bool {
	if side == mmtypes.Buy {
		return f.canQuoteBuy
	}
	return f.canQuoteSell
}

func (f fakeInventory) GetSkew() (decimal.Decimal, decimal.Decimal) { return f.bidSkew, f.askSkew }

func testConfig() Config {
	return Config{
		Symbol: "BTC-USD", ClientID: "cid1",
		Levels: 1, BaseSpreadBps: d("50"), LevelSpacingTicks: d("1"),
		TickSize: d("0.5"), BaseSize: d("1"), SizeDecayFactor: d("1"),
		PriceBandPct: d("100"), MinNotional: d("0"),
		ConfidenceThreshold: 0.5, RepriceThresholdTicks: d("1"),
		MaxOrdersPerSecond: 100,
	}
}

func TestOnPriceUpdatePlacesBothSides(t *testing.T) {
	sender := &fakeSender{}
	inv := fakeInventory{canQuoteBuy: true, canQuoteSell: true}
	e := New(testConfig(), sender, inv, testLogger())

	e.OnPriceUpdate(d("100000"), 1.0)

	if sender.count() != 2 {
		t.Fatalf("expected 2 sent NewOrderSingle messages, got %d", sender.count())
	}
	if len(e.ActiveOrders()) != 2 {
		t.Fatalf("expected 2 active orders, got %d", len(e.ActiveOrders()))
	}
}

func TestOnPriceUpdateLowConfidenceCancelsAll(t *testing.T) {
	sender := &fakeSender{}
	inv := fakeInventory{canQuoteBuy: true, canQuoteSell: true}
	e := New(testConfig(), sender, inv, testLogger())

	e.OnPriceUpdate(d("100000"), 1.0)
	sentAfterPlace := sender.count()

	e.OnPriceUpdate(d("100000"), 0.1) // below threshold 0.5

	if sender.count() <= sentAfterPlace {
		t.Fatalf("expected cancel messages sent, count stayed at %d", sentAfterPlace)
	}
	select {
	case ev := <-e.CancelAlls():
		if ev.Reason == "" {
			t.Fatal("expected non-empty cancel reason")
		}
	default:
		t.Fatal("expected a CancelAllEvent")
	}
}

func TestDupGuardSkipsRepeatedActionWithinWindow(t *testing.T) {
	sender := &fakeSender{}
	inv := fakeInventory{canQuoteBuy: true, canQuoteSell: true}
	cfg := testConfig()
	cfg.DupGuardMs = 60000 // effectively never expires within test
	e := New(cfg, sender, inv, testLogger())

	e.OnPriceUpdate(d("100000"), 1.0)
	first := sender.count()

	// same mid, same ladder -> reconcile finds no-action for existing orders,
	// but force a cancel storm via cancelAll twice in a row to hit dup-guard.
	e.cancelAll("test")
	afterFirstCancel := sender.count()
	e.cancelAll("test")
	afterSecondCancel := sender.count()

	if afterFirstCancel <= first {
		t.Fatalf("expected cancel messages on first cancelAll")
	}
	if afterSecondCancel != afterFirstCancel {
		t.Fatalf("expected dup-guard to block repeated cancel, got %d -> %d", afterFirstCancel, afterSecondCancel)
	}
}

func TestRateLimiterQueuesExcessToOverflow(t *testing.T) {
	sender := &fakeSender{}
	inv := fakeInventory{canQuoteBuy: true, canQuoteSell: true}
	cfg := testConfig()
	cfg.MaxOrdersPerSecond = 1
	cfg.Levels = 3
	e := New(cfg, sender, inv, testLogger())

	e.OnPriceUpdate(d("100000"), 1.0)

	// 6 desired actions (3 levels * 2 sides), only ~1 token budget: most
	// should have been queued to overflow rather than sent immediately.
	if sender.count() >= 6 {
		t.Fatalf("expected rate limiting to defer most actions, got %d sent immediately", sender.count())
	}
	e.mu.Lock()
	queued := len(e.overflow)
	e.mu.Unlock()
	if queued == 0 {
		t.Fatal("expected some actions queued to overflow")
	}
}

func TestExecutionReportFilledRemovesActiveAndEmitsFill(t *testing.T) {
	sender := &fakeSender{}
	inv := fakeInventory{canQuoteBuy: true, canQuoteSell: true}
	e := New(testConfig(), sender, inv, testLogger())
	e.OnPriceUpdate(d("100000"), 1.0)

	orders := e.ActiveOrders()
	target := orders[0]

	msg := &fixcodec.ParsedMessage{
		MsgType: fixcodec.MsgTypeExecutionReport,
		Values: map[fixcodec.Tag]string{
			fixcodec.TagClOrdID:   target.ClientOrderID,
			fixcodec.TagOrdStatus: fixcodec.OrdStatusFilled,
			fixcodec.TagLastPx:    target.Price.String(),
			fixcodec.TagLastQty:   target.Size.String(),
			fixcodec.TagExecID:    "E1",
			fixcodec.TagSide:      sideFIXFor(target.Side),
		},
	}
	e.OnMessage(msg)

	for _, o := range e.ActiveOrders() {
		if o.ClientOrderID == target.ClientOrderID {
			t.Fatalf("expected order removed from active book after fill")
		}
	}

	select {
	case fill := <-e.Fills():
		if fill.ClientOrderID != target.ClientOrderID {
			t.Fatalf("fill clOrdId = %s, want %s", fill.ClientOrderID, target.ClientOrderID)
		}
	default:
		t.Fatal("expected a fill event")
	}
}

func sideFIXFor(side mmtypes.Side) string {
	if side == mmtypes.Sell {
		return fixcodec.SideSellFIX
	}
	return fixcodec.SideBuyFIX
}
