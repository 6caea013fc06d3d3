// Package hedge places hedging orders against the external hedge venue: an
// aggressive limit order with a fallback to market on timeout, or straight
// to market for urgent requests.
package hedge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

const eventBufferSize = 64

// ReferencePrice is the narrow collaborator the executor reads best bid/ask
// from. The orchestrator supplies it: by default the local FIX market-data
// book, falling back to the external price source (see DESIGN.md).
type ReferencePrice interface {
	BestBidAsk() (bid, ask decimal.Decimal, ok bool)
}

// PlacedEvent, FilledEvent, TimeoutEvent and FailedEvent are published at
// the corresponding points of executeHedge per spec §4.6.
type PlacedEvent struct {
	Side mmtypes.Side
	Size decimal.Decimal
	Price decimal.Decimal
}

type FilledEvent struct {
	Side     mmtypes.Side
	Size     decimal.Decimal
	Price    decimal.Decimal
	Slippage decimal.Decimal
	Maker    bool
}

type TimeoutEvent struct {
	Side mmtypes.Side
	Size decimal.Decimal
}

type FailedEvent struct {
	Side   mmtypes.Side
	Size   decimal.Decimal
	Reason string
}

// Stats is the cumulative hedge-performance ledger.
type Stats struct {
	TotalHedges     int
	TotalHedgedBase decimal.Decimal
	TotalSlippage   decimal.Decimal
	LimitFills      int
	MarketFills     int
	FailedHedges    int
}

func (s Stats) AvgSlippage() decimal.Decimal {
	filled := s.LimitFills + s.MarketFills
	if filled == 0 {
		return decimal.Zero
	}
	return s.TotalSlippage.Div(decimal.NewFromInt(int64(filled)))
}

func (s Stats) LimitFillRate() float64 {
	if s.TotalHedges == 0 {
		return 0
	}
	return float64(s.LimitFills) / float64(s.TotalHedges)
}

// Executor is the single in-flight hedge owner: executeHedge refuses
// reentry while a prior call is still polling.
type Executor struct {
	cfg    Config
	venue  mmtypes.HedgeVenue
	ref    ReferencePrice
	logger *slog.Logger

	mu       sync.Mutex
	inFlight bool
	stats    Stats

	placedCh  chan PlacedEvent
	filledCh  chan FilledEvent
	timeoutCh chan TimeoutEvent
	failedCh  chan FailedEvent
}

// New constructs an Executor.
func New(cfg Config, venue mmtypes.HedgeVenue, ref ReferencePrice, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:       cfg,
		venue:     venue,
		ref:       ref,
		logger:    logger.With("component", "hedge"),
		placedCh:  make(chan PlacedEvent, eventBufferSize),
		filledCh:  make(chan FilledEvent, eventBufferSize),
		timeoutCh: make(chan TimeoutEvent, eventBufferSize),
		failedCh:  make(chan FailedEvent, eventBufferSize),
	}
}

func (e *Executor) Placed() <-chan PlacedEvent   { return e.placedCh }
func (e *Executor) Filled() <-chan FilledEvent    { return e.filledCh }
func (e *Executor) Timeouts() <-chan TimeoutEvent { return e.timeoutCh }
func (e *Executor) Failed() <-chan FailedEvent    { return e.failedCh }

// Stats returns a copy of the cumulative stats.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// ExecuteHedge validates, clamps, and executes a hedge request. It blocks
// for one market-poll window of LimitTimeoutMs (urgent), or up to
// LimitTimeoutMs for the limit leg plus one more for the market fallback
// (normal urgency), so callers typically invoke it from its own goroutine.
func (e *Executor) ExecuteHedge(ctx context.Context, side mmtypes.Side, size decimal.Decimal, urgency mmtypes.Urgency) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	if size.Sign() <= 0 {
		return ErrNonPositiveSize
	}
	if size.LessThan(e.cfg.MinHedgeSize) {
		return ErrBelowMinSize
	}
	if size.GreaterThan(e.cfg.MaxHedgeSize) {
		size = e.cfg.MaxHedgeSize
	}

	e.mu.Lock()
	if e.inFlight {
		e.mu.Unlock()
		return ErrAlreadyInFlight
	}
	e.inFlight = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}()

	e.mu.Lock()
	e.stats.TotalHedges++
	e.mu.Unlock()

	if urgency == mmtypes.Urgent {
		return e.marketPath(ctx, side, size)
	}
	return e.limitThenMarket(ctx, side, size)
}

func (e *Executor) limitThenMarket(ctx context.Context, side mmtypes.Side, size decimal.Decimal) error {
	bid, ask, ok := e.ref.BestBidAsk()
	if !ok {
		return ErrNoReferencePrice
	}

	reference := ask
	if side == mmtypes.Sell {
		reference = bid
	}
	offset := e.cfg.LimitPriceOffsetBps.Div(decimal.NewFromInt(10000))
	var limitPrice decimal.Decimal
	if side == mmtypes.Sell {
		limitPrice = reference.Mul(decimal.NewFromInt(1).Sub(offset))
	} else {
		limitPrice = reference.Mul(decimal.NewFromInt(1).Add(offset))
	}

	ack, err := e.venue.AddOrder(ctx, mmtypes.HedgeOrderRequest{
		Pair: e.cfg.HedgeSymbol, Side: side, OrderType: "limit", Price: limitPrice, Volume: size,
	})
	if err != nil {
		e.publishFailed(FailedEvent{Side: side, Size: size, Reason: err.Error()})
		return err
	}
	e.publishPlaced(PlacedEvent{Side: side, Size: size, Price: limitPrice})

	filled, err := e.poll(ctx, ack.TxIDs, e.cfg.limitTimeout())
	if err != nil {
		return err
	}
	if filled != nil {
		slippage := slippageFor(side, reference, filled.Price)
		e.recordFill(side, filled.VolExec, filled.Price, slippage, true)
		e.publishFilled(FilledEvent{Side: side, Size: filled.VolExec, Price: filled.Price, Slippage: slippage, Maker: true})
		return nil
	}

	// timeout: cancel the limit order then fall back to market.
	e.publishTimeout(TimeoutEvent{Side: side, Size: size})
	for _, tx := range ack.TxIDs {
		_, _ = e.venue.CancelOrder(ctx, tx)
	}
	return e.marketPath(ctx, side, size)
}

func (e *Executor) marketPath(ctx context.Context, side mmtypes.Side, size decimal.Decimal) error {
	bid, ask, hasRef := e.ref.BestBidAsk()
	reference := ask
	if side == mmtypes.Sell {
		reference = bid
	}

	ack, err := e.venue.AddOrder(ctx, mmtypes.HedgeOrderRequest{
		Pair: e.cfg.HedgeSymbol, Side: side, OrderType: "market", Volume: size,
	})
	if err != nil {
		e.recordFailed()
		e.publishFailed(FailedEvent{Side: side, Size: size, Reason: err.Error()})
		return err
	}
	e.publishPlaced(PlacedEvent{Side: side, Size: size})

	filled, err := e.poll(ctx, ack.TxIDs, e.cfg.limitTimeout())
	if err != nil {
		return err
	}
	if filled == nil {
		e.recordFailed()
		e.publishFailed(FailedEvent{Side: side, Size: size, Reason: "market order did not reach a terminal state"})
		return nil
	}

	var slippage decimal.Decimal
	if hasRef {
		slippage = slippageFor(side, reference, filled.Price)
	}
	e.recordFill(side, filled.VolExec, filled.Price, slippage, false)
	e.publishFilled(FilledEvent{Side: side, Size: filled.VolExec, Price: filled.Price, Slippage: slippage, Maker: false})
	return nil
}

// poll queries order status every PollIntervalMs until a terminal state or
// timeout. Returns nil, nil on "canceled"/"expired" (abandoned, not an error).
func (e *Executor) poll(ctx context.Context, txIDs []string, timeout time.Duration) (*mmtypes.HedgeOrderState, error) {
	deadline := time.Now().Add(timeout)
	interval := e.cfg.pollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		states, err := e.venue.QueryOrders(ctx, txIDs)
		if err != nil {
			e.logger.Warn("queryOrders failed", "err", err)
		} else {
			for _, st := range states {
				switch st.Status {
				case mmtypes.HedgeClosed:
					s := st
					return &s, nil
				case mmtypes.HedgeCanceled, mmtypes.HedgeExpired:
					return nil, nil
				}
			}
		}

		if time.Now().After(deadline) {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func slippageFor(side mmtypes.Side, reference, fillPrice decimal.Decimal) decimal.Decimal {
	if side == mmtypes.Sell {
		return fillPrice.Sub(reference)
	}
	return reference.Sub(fillPrice)
}

func (e *Executor) recordFill(side mmtypes.Side, size, price, slippage decimal.Decimal, maker bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.TotalHedgedBase = e.stats.TotalHedgedBase.Add(size)
	e.stats.TotalSlippage = e.stats.TotalSlippage.Add(slippage)
	if maker {
		e.stats.LimitFills++
	} else {
		e.stats.MarketFills++
	}
}

func (e *Executor) recordFailed() {
	e.mu.Lock()
	e.stats.FailedHedges++
	e.mu.Unlock()
}

func (e *Executor) publishPlaced(ev PlacedEvent) {
	select {
	case e.placedCh <- ev:
	default:
		e.logger.Warn("placed channel full, dropping event")
	}
}

func (e *Executor) publishFilled(ev FilledEvent) {
	select {
	case e.filledCh <- ev:
	default:
		e.logger.Warn("filled channel full, dropping event")
	}
}

func (e *Executor) publishTimeout(ev TimeoutEvent) {
	select {
	case e.timeoutCh <- ev:
	default:
		e.logger.Warn("timeout channel full, dropping event")
	}
}

func (e *Executor) publishFailed(ev FailedEvent) {
	select {
	case e.failedCh <- ev:
	default:
		e.logger.Warn("failed channel full, dropping event")
	}
}
