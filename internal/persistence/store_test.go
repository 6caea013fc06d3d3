package persistence

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestFlushFillsWritesAtomicFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	fill := mmtypes.Fill{
		ExecID: "E1", ClientOrderID: "C1", Side: mmtypes.Buy,
		Quantity: d("1"), Price: d("100"), Venue: "truex",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Maker: true,
	}
	if err := s.AddFill(fill); err != nil {
		t.Fatalf("AddFill: %v", err)
	}
	if err := s.FlushFills(); err != nil {
		t.Fatalf("FlushFills: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "fills.json"))
	if err != nil {
		t.Fatalf("read fills.json: %v", err)
	}
	var fills []mmtypes.Fill
	if err := json.Unmarshal(data, &fills); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(fills) != 1 || fills[0].ExecID != "E1" {
		t.Errorf("fills = %+v, want one fill with ExecID E1", fills)
	}

	if _, err := os.Stat(filepath.Join(dir, "fills.json.tmp")); !os.IsNotExist(err) {
		t.Errorf("expected .tmp file to be renamed away, stat err = %v", err)
	}
}

func TestAddOrderOverwritesByClientOrderID(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	o1 := mmtypes.ActiveOrder{ClientOrderID: "C1", Side: mmtypes.Buy, Price: d("100"), Size: d("1"), Status: mmtypes.StatusActive}
	o2 := mmtypes.ActiveOrder{ClientOrderID: "C1", Side: mmtypes.Buy, Price: d("100"), Size: d("1"), Status: mmtypes.StatusTerminal}
	_ = s.AddOrder(o1)
	_ = s.AddOrder(o2)

	if err := s.FlushOrders(); err != nil {
		t.Fatalf("FlushOrders: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "orders.json"))
	if err != nil {
		t.Fatalf("read orders.json: %v", err)
	}
	var orders []mmtypes.ActiveOrder
	if err := json.Unmarshal(data, &orders); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(orders) != 1 || orders[0].Status != mmtypes.StatusTerminal {
		t.Errorf("orders = %+v, want one order with terminal status", orders)
	}
}

func TestFlushOHLCBuildsOneCandlePerMinuteFromFills(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	fills := []mmtypes.Fill{
		{ExecID: "E1", Price: d("100"), Quantity: d("1"), Timestamp: base},
		{ExecID: "E2", Price: d("101"), Quantity: d("2"), Timestamp: base.Add(10 * time.Second)},
		{ExecID: "E3", Price: d("99"), Quantity: d("1"), Timestamp: base.Add(90 * time.Second)},
	}
	for _, f := range fills {
		if err := s.AddFill(f); err != nil {
			t.Fatalf("AddFill: %v", err)
		}
	}
	if err := s.FlushOHLC(); err != nil {
		t.Fatalf("FlushOHLC: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ohlc.json"))
	if err != nil {
		t.Fatalf("read ohlc.json: %v", err)
	}
	var candles []Candle
	if err := json.Unmarshal(data, &candles); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("len(candles) = %d, want 2", len(candles))
	}

	var first *Candle
	for i := range candles {
		if candles[i].Start.Equal(base) {
			first = &candles[i]
		}
	}
	if first == nil {
		t.Fatal("no candle found for the first minute bucket")
	}
	if !first.Open.Equal(d("100")) || !first.High.Equal(d("101")) || !first.Close.Equal(d("101")) {
		t.Errorf("first candle = %+v, want open 100 high 101 close 101", first)
	}
	if !first.Volume.Equal(d("3")) {
		t.Errorf("first candle volume = %v, want 3", first.Volume)
	}
}

func TestFlushWithNoDataProducesEmptyArrays(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.FlushFills(); err != nil {
		t.Fatalf("FlushFills: %v", err)
	}
	if err := s.FlushOrders(); err != nil {
		t.Fatalf("FlushOrders: %v", err)
	}
	if err := s.FlushOHLC(); err != nil {
		t.Fatalf("FlushOHLC: %v", err)
	}

	for _, name := range []string{"fills.json", "orders.json", "ohlc.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var arr []json.RawMessage
		if err := json.Unmarshal(data, &arr); err != nil {
			t.Fatalf("unmarshal %s: %v", name, err)
		}
		if len(arr) != 0 {
			t.Errorf("%s = %d entries, want 0", name, len(arr))
		}
	}
}
