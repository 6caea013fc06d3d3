// Package persistence provides a crash-safe JSON-file implementation of
// mmtypes.PersistenceAdapter. Fills and orders are buffered in memory as
// they arrive and written to disk only on Flush*, using atomic file
// replacement (write to .tmp, then rename) so a crash mid-write never
// leaves a truncated file behind.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

// Candle is a one-minute OHLC bar built from fill prices. There is no
// dedicated trade-tape producer in this engine, so the store derives
// candles directly from the same fills it already persists.
type Candle struct {
	Start  time.Time       `json:"start"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// JSONStore persists fills, orders, and derived OHLC candles to JSON files
// in a designated directory. All operations are mutex-protected.
type JSONStore struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	fills   []mmtypes.Fill
	orders  map[string]mmtypes.ActiveOrder
	candles map[int64]*Candle
}

// Open creates a store backed by the given directory.
func Open(dir string, logger *slog.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &JSONStore{
		dir:     dir,
		logger:  logger.With("component", "persistence"),
		orders:  make(map[string]mmtypes.ActiveOrder),
		candles: make(map[int64]*Candle),
	}, nil
}

// AddFill buffers a fill for the next FlushFills and folds its price into
// the current one-minute candle.
func (s *JSONStore) AddFill(fill mmtypes.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fills = append(s.fills, fill)
	s.applyCandle(fill)
	return nil
}

// AddOrder buffers an order snapshot for the next FlushOrders, keyed by
// ClientOrderID so repeated updates to the same order overwrite in place.
func (s *JSONStore) AddOrder(order mmtypes.ActiveOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[order.ClientOrderID] = order
	return nil
}

func (s *JSONStore) applyCandle(fill mmtypes.Fill) {
	bucket := fill.Timestamp.Truncate(time.Minute).Unix()
	c, ok := s.candles[bucket]
	if !ok {
		s.candles[bucket] = &Candle{
			Start:  fill.Timestamp.Truncate(time.Minute),
			Open:   fill.Price,
			High:   fill.Price,
			Low:    fill.Price,
			Close:  fill.Price,
			Volume: fill.Quantity,
		}
		return
	}
	if fill.Price.GreaterThan(c.High) {
		c.High = fill.Price
	}
	if fill.Price.LessThan(c.Low) {
		c.Low = fill.Price
	}
	c.Close = fill.Price
	c.Volume = c.Volume.Add(fill.Quantity)
}

// FlushFills atomically writes every buffered fill to fills.json.
func (s *JSONStore) FlushFills() error {
	s.mu.Lock()
	fills := append(make([]mmtypes.Fill, 0, len(s.fills)), s.fills...)
	s.mu.Unlock()
	return s.writeAtomic("fills.json", fills)
}

// FlushOrders atomically writes every buffered order snapshot to orders.json.
func (s *JSONStore) FlushOrders() error {
	s.mu.Lock()
	orders := make([]mmtypes.ActiveOrder, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, o)
	}
	s.mu.Unlock()
	return s.writeAtomic("orders.json", orders)
}

// FlushOHLC atomically writes every candle built from fills so far to
// ohlc.json.
func (s *JSONStore) FlushOHLC() error {
	s.mu.Lock()
	candles := make([]*Candle, 0, len(s.candles))
	for _, c := range s.candles {
		candles = append(candles, c)
	}
	s.mu.Unlock()
	return s.writeAtomic("ohlc.json", candles)
}

func (s *JSONStore) writeAtomic(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	s.logger.Debug("flushed", "file", name, "bytes", len(data))
	return nil
}

var _ mmtypes.PersistenceAdapter = (*JSONStore)(nil)
