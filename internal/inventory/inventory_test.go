package inventory

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func drainEvent[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

// S4: max=1.0, emergency=1.2. Buy 1.2 @ 100000 produces exactly one
// emergency event and no hedge-signal.
func TestOnFillEmergencyS4(t *testing.T) {
	cfg := Config{
		MaxPositionBase:    dec("1.0"),
		HedgeThresholdBase: dec("0.5"),
		EmergencyLimitBase: dec("1.2"),
		MaxSkewTicks:       dec("5"),
		TickSize:           dec("0.5"),
	}
	m := New(cfg, testLogger())

	m.OnFill(mmtypes.Buy, dec("1.2"), dec("100000"), "truex", "e1")

	fill := drainEvent(t, m.Fills())
	if !fill.Position.NetPosition.Equal(dec("1.2")) {
		t.Fatalf("net position = %s, want 1.2", fill.Position.NetPosition)
	}

	emergency := drainEvent(t, m.Emergencies())
	if !emergency.NetPosition.Equal(dec("1.2")) {
		t.Fatalf("emergency net = %s", emergency.NetPosition)
	}

	select {
	case sig := <-m.HedgeSignals():
		t.Fatalf("unexpected hedge signal: %+v", sig)
	default:
	}
}

func TestOnFillHedgeSignalAboveThreshold(t *testing.T) {
	cfg := Config{
		MaxPositionBase:    dec("2.0"),
		HedgeThresholdBase: dec("0.5"),
		MaxSkewTicks:       dec("5"),
		TickSize:           dec("0.5"),
	}
	m := New(cfg, testLogger())

	m.OnFill(mmtypes.Buy, dec("0.6"), dec("100"), "truex", "e1")
	drainEvent(t, m.Fills())

	sig := drainEvent(t, m.HedgeSignals())
	if sig.Side != mmtypes.Sell {
		t.Fatalf("hedge side = %s, want sell (opposite of long)", sig.Side)
	}
	if !sig.Size.Equal(dec("0.6")) {
		t.Fatalf("hedge size = %s, want 0.6", sig.Size)
	}
}

func TestOnFillInvalidIgnored(t *testing.T) {
	cfg := Config{MaxPositionBase: dec("1")}
	m := New(cfg, testLogger())

	m.OnFill(mmtypes.Side("sideways"), dec("1"), dec("100"), "truex", "e1")
	m.OnFill(mmtypes.Buy, dec("0"), dec("100"), "truex", "e1")
	m.OnFill(mmtypes.Buy, dec("1"), dec("-1"), "truex", "e1")

	select {
	case ev := <-m.Fills():
		t.Fatalf("expected no fill events, got %+v", ev)
	default:
	}
	if got := m.Snapshot().FillCount; got != 0 {
		t.Fatalf("FillCount = %d, want 0", got)
	}
}

func TestVWAPRecomputation(t *testing.T) {
	cfg := Config{MaxPositionBase: dec("100"), HedgeThresholdBase: dec("100")}
	m := New(cfg, testLogger())

	m.OnFill(mmtypes.Buy, dec("1"), dec("100"), "v", "1")
	drainEvent(t, m.Fills())
	m.OnFill(mmtypes.Buy, dec("3"), dec("200"), "v", "2")
	drainEvent(t, m.Fills())

	snap := m.Snapshot()
	// (1*100 + 3*200) / 4 = 175
	if !snap.AvgEntry.Equal(dec("175")) {
		t.Fatalf("AvgEntry = %s, want 175", snap.AvgEntry)
	}
}

func TestGetSkewZeroWhenFlat(t *testing.T) {
	cfg := Config{MaxPositionBase: dec("1"), MaxSkewTicks: dec("5")}
	m := New(cfg, testLogger())
	bid, ask := m.GetSkew()
	if !bid.IsZero() || !ask.IsZero() {
		t.Fatalf("expected zero skew when flat, got bid=%s ask=%s", bid, ask)
	}
}

func TestGetSkewLongSkewsAsksUp(t *testing.T) {
	cfg := Config{MaxPositionBase: dec("2"), HedgeThresholdBase: dec("10"), MaxSkewTicks: dec("10"), SkewExponent: 1}
	m := New(cfg, testLogger())
	m.OnFill(mmtypes.Buy, dec("1"), dec("100"), "v", "1")
	drainEvent(t, m.Fills())

	bidSkew, askSkew := m.GetSkew()
	// utilization = 0.5, raw = 0.5*10 = 5
	if !askSkew.Equal(dec("5")) || !bidSkew.Equal(dec("-5")) {
		t.Fatalf("bidSkew=%s askSkew=%s, want -5/5", bidSkew, askSkew)
	}
}

func TestCanQuoteBlocksAccumulatingSide(t *testing.T) {
	cfg := Config{MaxPositionBase: dec("1"), HedgeThresholdBase: dec("10")}
	m := New(cfg, testLogger())
	m.OnFill(mmtypes.Buy, dec("1"), dec("100"), "v", "1")
	drainEvent(t, m.Fills())

	if m.CanQuote(mmtypes.Buy) {
		t.Fatal("expected buy blocked at max long position")
	}
	if !m.CanQuote(mmtypes.Sell) {
		t.Fatal("expected sell still allowed")
	}
}
