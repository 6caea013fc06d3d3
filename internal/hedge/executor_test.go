package hedge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

type fakeRef struct {
	bid, ask decimal.Decimal
	ok       bool
}

func (f fakeRef) BestBidAsk() (decimal.Decimal, decimal.Decimal, bool) { return f.bid, f.ask, f.ok }

// fakeVenue returns a scripted sequence of QueryOrders states per tx id and
// can optionally block on AddOrder until release is closed (for the
// reentry-guard test).
type fakeVenue struct {
	mu          sync.Mutex
	nextTxID    int
	states      map[string][]mmtypes.HedgeOrderState // scripted sequence, popped one per QueryOrders call
	addOrderErr error
	started     chan struct{}
	release     chan struct{}
	cancelled   []string
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{states: make(map[string][]mmtypes.HedgeOrderState)}
}

func (v *fakeVenue) AddOrder(ctx context.Context, req mmtypes.HedgeOrderRequest) (mmtypes.HedgeOrderAck, error) {
	if v.started != nil {
		close(v.started)
	}
	if v.release != nil {
		<-v.release
	}
	if v.addOrderErr != nil {
		return mmtypes.HedgeOrderAck{}, v.addOrderErr
	}
	v.mu.Lock()
	v.nextTxID++
	tx := "T" + string(rune('0'+v.nextTxID))
	v.mu.Unlock()
	return mmtypes.HedgeOrderAck{TxIDs: []string{tx}}, nil
}

func (v *fakeVenue) QueryOrders(ctx context.Context, txIDs []string) (map[string]mmtypes.HedgeOrderState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]mmtypes.HedgeOrderState)
	for _, tx := range txIDs {
		seq := v.states[tx]
		if len(seq) == 0 {
			out[tx] = mmtypes.HedgeOrderState{Status: mmtypes.HedgeOpen}
			continue
		}
		out[tx] = seq[0]
		v.states[tx] = seq[1:]
	}
	return out, nil
}

func (v *fakeVenue) CancelOrder(ctx context.Context, txID string) (int, error) {
	v.mu.Lock()
	v.cancelled = append(v.cancelled, txID)
	v.mu.Unlock()
	return 1, nil
}

func testConfig() Config {
	return Config{
		HedgeSymbol: "XBTUSD", MinHedgeSize: d("0.01"), MaxHedgeSize: d("10"),
		LimitTimeoutMs: 50, PollIntervalMs: 5, LimitPriceOffsetBps: d("10"),
	}
}

func TestExecuteHedgeRejectsInvalidSide(t *testing.T) {
	e := New(testConfig(), newFakeVenue(), fakeRef{}, testLogger())
	if err := e.ExecuteHedge(context.Background(), mmtypes.Side("sideways"), d("1"), mmtypes.Normal); !errors.Is(err, ErrInvalidSide) {
		t.Fatalf("err = %v, want ErrInvalidSide", err)
	}
}

func TestExecuteHedgeRejectsNonPositiveSize(t *testing.T) {
	e := New(testConfig(), newFakeVenue(), fakeRef{}, testLogger())
	if err := e.ExecuteHedge(context.Background(), mmtypes.Buy, d("0"), mmtypes.Normal); !errors.Is(err, ErrNonPositiveSize) {
		t.Fatalf("err = %v, want ErrNonPositiveSize", err)
	}
}

func TestExecuteHedgeRejectsBelowMinSize(t *testing.T) {
	e := New(testConfig(), newFakeVenue(), fakeRef{}, testLogger())
	if err := e.ExecuteHedge(context.Background(), mmtypes.Buy, d("0.001"), mmtypes.Normal); !errors.Is(err, ErrBelowMinSize) {
		t.Fatalf("err = %v, want ErrBelowMinSize", err)
	}
}

func TestExecuteHedgeClampsToMaxSize(t *testing.T) {
	venue := newFakeVenue()
	ref := fakeRef{bid: d("100"), ask: d("101"), ok: true}
	e := New(testConfig(), venue, ref, testLogger())

	venue.states["T1"] = []mmtypes.HedgeOrderState{{Status: mmtypes.HedgeClosed, VolExec: d("10"), Price: d("100.9")}}
	if err := e.ExecuteHedge(context.Background(), mmtypes.Sell, d("999"), mmtypes.Normal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev := <-e.Placed()
	if !ev.Size.Equal(d("10")) {
		t.Fatalf("placed size = %s, want clamped to 10", ev.Size)
	}
}

func TestLimitFillRecordsSlippageAndStats(t *testing.T) {
	venue := newFakeVenue()
	ref := fakeRef{bid: d("100"), ask: d("101"), ok: true}
	e := New(testConfig(), venue, ref, testLogger())
	venue.states["T1"] = []mmtypes.HedgeOrderState{
		{Status: mmtypes.HedgeOpen},
		{Status: mmtypes.HedgeClosed, VolExec: d("1"), Price: d("99.9")},
	}

	if err := e.ExecuteHedge(context.Background(), mmtypes.Sell, d("1"), mmtypes.Normal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fill := <-e.Filled()
	if !fill.Price.Equal(d("99.9")) {
		t.Fatalf("fill price = %s", fill.Price)
	}
	// sell: slippage = fillPrice - reference(bid) = 99.9 - 100 = -0.1
	if !fill.Slippage.Equal(d("-0.1")) {
		t.Fatalf("slippage = %s, want -0.1", fill.Slippage)
	}

	stats := e.Stats()
	if stats.LimitFills != 1 || stats.TotalHedges != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestLimitTimeoutFallsBackToMarket(t *testing.T) {
	venue := newFakeVenue()
	ref := fakeRef{bid: d("100"), ask: d("101"), ok: true}
	e := New(testConfig(), venue, ref, testLogger())
	// T1 (limit leg) never closes -> timeout; T2 (market leg) closes immediately.
	venue.states["T2"] = []mmtypes.HedgeOrderState{{Status: mmtypes.HedgeClosed, VolExec: d("1"), Price: d("101.2")}}

	if err := e.ExecuteHedge(context.Background(), mmtypes.Buy, d("1"), mmtypes.Normal); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-e.Timeouts():
	case <-time.After(time.Second):
		t.Fatal("expected a timeout event")
	}
	if len(venue.cancelled) != 1 {
		t.Fatalf("expected limit leg cancelled, got %v", venue.cancelled)
	}

	fill := <-e.Filled()
	if fill.Maker {
		t.Fatal("expected market-path fill to be maker=false")
	}

	stats := e.Stats()
	if stats.MarketFills != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestUrgentGoesDirectlyToMarket(t *testing.T) {
	venue := newFakeVenue()
	ref := fakeRef{bid: d("100"), ask: d("101"), ok: true}
	e := New(testConfig(), venue, ref, testLogger())
	venue.states["T1"] = []mmtypes.HedgeOrderState{{Status: mmtypes.HedgeClosed, VolExec: d("1"), Price: d("101.5")}}

	if err := e.ExecuteHedge(context.Background(), mmtypes.Buy, d("1"), mmtypes.Urgent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fill := <-e.Filled()
	if fill.Maker {
		t.Fatal("urgent hedge should record as non-maker (market) fill")
	}
}

func TestReentryGuardRejectsConcurrentHedge(t *testing.T) {
	venue := newFakeVenue()
	venue.started = make(chan struct{})
	venue.release = make(chan struct{})
	ref := fakeRef{bid: d("100"), ask: d("101"), ok: true}
	e := New(testConfig(), venue, ref, testLogger())

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.ExecuteHedge(context.Background(), mmtypes.Buy, d("1"), mmtypes.Urgent)
	}()

	<-venue.started // first call is now in flight, blocked inside AddOrder
	err := e.ExecuteHedge(context.Background(), mmtypes.Sell, d("1"), mmtypes.Normal)
	if !errors.Is(err, ErrAlreadyInFlight) {
		t.Fatalf("err = %v, want ErrAlreadyInFlight", err)
	}

	close(venue.release)
	<-errCh
}
