// Package pricesource is a reference implementation of mmtypes.PriceSource:
// a WebSocket feed that republishes a fused reference price (mid/best
// bid/best ask/confidence), reconnecting with exponential backoff and a
// read-deadline dead-connection detector.
package pricesource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

// priceMessage is the wire shape this reference venue publishes.
type priceMessage struct {
	Bid        string  `json:"bid"`
	Ask        string  `json:"ask"`
	Confidence float64 `json:"confidence"`
}

// Feed is a single WebSocket connection to the reference-price venue.
type Feed struct {
	cfg Config

	connMu sync.Mutex
	conn   *websocket.Conn

	updateCh chan mmtypes.PriceUpdate
	logger   *slog.Logger

	cancel context.CancelFunc
}

// New constructs a Feed.
func New(cfg Config, logger *slog.Logger) *Feed {
	return &Feed{
		cfg:      cfg,
		updateCh: make(chan mmtypes.PriceUpdate, updateBufferSize),
		logger:   logger.With("component", "pricesource"),
	}
}

// Subscribe starts the reconnect-and-read loop in the background and
// returns a channel of fused price updates. Satisfies mmtypes.PriceSource.
func (f *Feed) Subscribe(ctx context.Context) (<-chan mmtypes.PriceUpdate, error) {
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	go f.run(runCtx)
	return f.updateCh, nil
}

// Close stops the feed and closes any live connection.
func (f *Feed) Close() error {
	if f.cancel != nil {
		f.cancel()
	}
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) run(ctx context.Context) {
	backoff := time.Second
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("pricesource disconnected, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.writeJSON(map[string]string{"op": "subscribe", "symbol": f.cfg.Symbol}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.logger.Info("pricesource connected", "symbol", f.cfg.Symbol)

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatchMessage(msg)
	}
}

func (f *Feed) dispatchMessage(data []byte) {
	var raw priceMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		f.logger.Debug("ignoring non-json pricesource message", "data", string(data))
		return
	}

	bid, err1 := decimal.NewFromString(raw.Bid)
	ask, err2 := decimal.NewFromString(raw.Ask)
	if err1 != nil || err2 != nil {
		f.logger.Warn("ignoring malformed price message", "data", string(data))
		return
	}
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))

	update := mmtypes.PriceUpdate{
		Mid: mid, BestBid: bid, BestAsk: ask,
		Confidence: raw.Confidence, Timestamp: time.Now(),
	}

	select {
	case f.updateCh <- update:
	default:
		f.logger.Warn("update channel full, dropping price update")
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) writeJSON(v interface{}) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("pricesource: not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *Feed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("pricesource: not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
