// Package quote computes the desired quote ladder from the reference price
// and inventory skew, reconciles it against live orders, and drives order
// placement/cancellation over a FIX session subject to rate limiting and a
// dup-guard.
package quote

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/fixcodec"
	"truex-mm/internal/mmtypes"
)

const eventBufferSize = 256

// Sender is the narrow fixsession.Session collaborator the engine needs.
type Sender interface {
	SendApplicationMessage(msgType string, body *fixcodec.Fields) (int, error)
}

// InventoryManager is the narrow inventory.Manager collaborator the engine needs.
type InventoryManager interface {
	CanQuote(side mmtypes.Side) bool
	GetSkew() (bidSkewTicks, askSkewTicks decimal.Decimal)
}

// FillEvent is published when an execution report reports a fill.
type FillEvent struct {
	Side          mmtypes.Side
	Price         decimal.Decimal
	Size          decimal.Decimal
	ClientOrderID string
	ExecID        string
}

// CancelAllEvent is published when confidence gating forces every active
// order to be cancelled.
type CancelAllEvent struct {
	Reason string
}

// Engine is the single-writer owner of the active-order book and quote
// state. OnPriceUpdate and OnMessage are expected to be called from one
// goroutine (the orchestrator's dispatch loop).
type Engine struct {
	cfg    Config
	sender Sender
	inv    InventoryManager
	logger *slog.Logger

	mu        sync.Mutex
	active    map[string]*mmtypes.ActiveOrder // keyed by ClientOrderID
	isQuoting bool

	lastActioned map[string]time.Time
	limiter      *tokenBucket
	overflow     []action
	idGen        *clOrdIDGenerator

	fillCh      chan FillEvent
	cancelAllCh chan CancelAllEvent
}

// New constructs an Engine.
func New(cfg Config, sender Sender, inv InventoryManager, logger *slog.Logger) *Engine {
	cfg = cfg.WithDefaults()
	return &Engine{
		cfg:          cfg,
		sender:       sender,
		inv:          inv,
		logger:       logger.With("component", "quote"),
		active:       make(map[string]*mmtypes.ActiveOrder),
		lastActioned: make(map[string]time.Time),
		limiter:      newTokenBucket(cfg.MaxOrdersPerSecond),
		idGen:        newClOrdIDGenerator(),
		fillCh:       make(chan FillEvent, eventBufferSize),
		cancelAllCh:  make(chan CancelAllEvent, eventBufferSize),
	}
}

func (e *Engine) Fills() <-chan FillEvent             { return e.fillCh }
func (e *Engine) CancelAlls() <-chan CancelAllEvent    { return e.cancelAllCh }

// ActiveOrders returns a snapshot of currently-resting orders.
func (e *Engine) ActiveOrders() []mmtypes.ActiveOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]mmtypes.ActiveOrder, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, *a)
	}
	return out
}

// OnPriceUpdate recomputes the desired ladder and reconciles it against the
// live order book. Below confidenceThreshold it cancels everything instead.
func (e *Engine) OnPriceUpdate(mid decimal.Decimal, confidence float64) {
	if confidence < e.cfg.ConfidenceThreshold {
		e.cancelAll("confidence below threshold")
		return
	}

	e.mu.Lock()
	e.isQuoting = true
	bidSkew, askSkew := e.inv.GetSkew()
	desired := buildDesired(e.cfg, mid, bidSkew, askSkew, e.inv)
	actions := reconcile(desired, e.active, e.cfg.RepriceThresholdTicks, e.cfg.TickSize)
	e.mu.Unlock()

	for _, act := range actions {
		e.dispatch(act)
	}
}

// CancelAllQuotes cancels every active order immediately, bypassing the
// ladder/confidence machinery. It is the orchestrator's entry point for the
// emergency policy and for shutdown.
func (e *Engine) CancelAllQuotes(reason string) {
	e.cancelAll(reason)
}

// cancelAll cancels every active order and publishes a CancelAllEvent.
func (e *Engine) cancelAll(reason string) {
	e.mu.Lock()
	e.isQuoting = false
	orders := make([]*mmtypes.ActiveOrder, 0, len(e.active))
	for _, a := range e.active {
		orders = append(orders, a)
	}
	e.mu.Unlock()

	for _, a := range orders {
		e.dispatch(action{kind: actionCancel, active: a})
	}

	select {
	case e.cancelAllCh <- CancelAllEvent{Reason: reason}:
	default:
		e.logger.Warn("cancelAll channel full, dropping event")
	}
}

// dispatch applies the dup-guard and rate limiter, then executes or queues act.
func (e *Engine) dispatch(act action) {
	guardKey := guardKeyFor(act)

	e.mu.Lock()
	if last, ok := e.lastActioned[guardKey]; ok {
		if time.Since(last) < time.Duration(e.cfg.DupGuardMs)*time.Millisecond {
			e.mu.Unlock()
			return
		}
	}
	e.mu.Unlock()

	cost := float64(1)
	if act.kind == actionCancelReplace {
		cost = 2
	}

	if !e.limiter.tryAcquire(cost) {
		e.mu.Lock()
		e.overflow = append(e.overflow, act)
		e.mu.Unlock()
		return
	}

	e.execute(act, guardKey)
}

func guardKeyFor(act action) string {
	if act.active != nil {
		return act.active.ClientOrderID
	}
	if act.desired != nil {
		return fmt.Sprintf("%s:%d", act.desired.Side, act.desired.Level)
	}
	return ""
}

func (e *Engine) execute(act action, guardKey string) {
	e.mu.Lock()
	e.lastActioned[guardKey] = time.Now()
	e.mu.Unlock()

	switch act.kind {
	case actionPlace:
		e.place(*act.desired)
	case actionCancel:
		e.cancel(act.active)
	case actionCancelReplace:
		e.cancel(act.active)
		e.place(*act.desired)
	}
}

func (e *Engine) place(d mmtypes.QuoteDesired) {
	id := e.idGen.Next()
	order := &mmtypes.ActiveOrder{
		ClientOrderID: id,
		Side:          d.Side,
		Price:         d.Price,
		Size:          d.Size,
		Level:         d.Level,
		Status:        mmtypes.StatusPending,
		PlacedAt:      time.Now(),
	}
	e.mu.Lock()
	e.active[id] = order
	e.mu.Unlock()

	side := fixcodec.SideBuyFIX
	if d.Side == mmtypes.Sell {
		side = fixcodec.SideSellFIX
	}
	body := fixcodec.NewFields().
		Set(fixcodec.TagClOrdID, id).
		Set(fixcodec.TagSymbol, e.cfg.Symbol).
		Set(fixcodec.TagSide, side).
		Set(fixcodec.TagOrderQty, d.Size.String()).
		Set(fixcodec.TagOrdType, "2").
		Set(fixcodec.TagPrice, d.Price.String()).
		Set(fixcodec.TagTimeInForce, "1")
	if e.cfg.ClientID != "" {
		body.Set(fixcodec.TagNoPartyIDs, "1").
			Set(fixcodec.TagPartyID, e.cfg.ClientID).
			Set(fixcodec.TagPartyRole, "D")
	}
	if _, err := e.sender.SendApplicationMessage(fixcodec.MsgTypeNewOrderSingle, body); err != nil {
		e.logger.Error("send NewOrderSingle failed", "clOrdId", id, "err", err)
	}
}

func (e *Engine) cancel(a *mmtypes.ActiveOrder) {
	e.mu.Lock()
	if existing, ok := e.active[a.ClientOrderID]; ok {
		existing.Status = mmtypes.StatusCancelPending
	}
	e.mu.Unlock()

	newID := e.idGen.Next()
	side := fixcodec.SideBuyFIX
	if a.Side == mmtypes.Sell {
		side = fixcodec.SideSellFIX
	}
	body := fixcodec.NewFields().
		Set(fixcodec.TagClOrdID, newID).
		Set(fixcodec.TagOrigClOrdID, a.ClientOrderID).
		Set(fixcodec.TagSymbol, e.cfg.Symbol).
		Set(fixcodec.TagSide, side)
	if _, err := e.sender.SendApplicationMessage(fixcodec.MsgTypeOrderCancelRequest, body); err != nil {
		e.logger.Error("send OrderCancelRequest failed", "origClOrdId", a.ClientOrderID, "err", err)
	}
}

// OnMessage handles inbound execution reports (35=8) by OrdStatus.
func (e *Engine) OnMessage(msg *fixcodec.ParsedMessage) {
	if msg.MsgType != fixcodec.MsgTypeExecutionReport {
		return
	}
	clOrdID, _ := msg.Get(fixcodec.TagClOrdID)
	status, _ := msg.Get(fixcodec.TagOrdStatus)

	switch status {
	case fixcodec.OrdStatusNew:
		e.mu.Lock()
		if a, ok := e.active[clOrdID]; ok {
			a.Status = mmtypes.StatusActive
		}
		e.mu.Unlock()
	case fixcodec.OrdStatusPartiallyFilled:
		// stays active; no state transition required.
	case fixcodec.OrdStatusFilled:
		e.mu.Lock()
		delete(e.active, clOrdID)
		e.mu.Unlock()
		e.publishFill(msg, clOrdID)
	case fixcodec.OrdStatusCanceled:
		e.mu.Lock()
		delete(e.active, clOrdID)
		e.mu.Unlock()
	case fixcodec.OrdStatusRejected:
		e.mu.Lock()
		delete(e.active, clOrdID)
		e.mu.Unlock()
		text, _ := msg.Get(fixcodec.TagText)
		e.logger.Warn("order rejected", "clOrdId", clOrdID, "reason", text)
	}
}

func (e *Engine) publishFill(msg *fixcodec.ParsedMessage, clOrdID string) {
	priceStr, _ := msg.Get(fixcodec.TagLastPx)
	sizeStr, _ := msg.Get(fixcodec.TagLastQty)
	execID, _ := msg.Get(fixcodec.TagExecID)
	sideFIX, _ := msg.Get(fixcodec.TagSide)

	price, _ := decimal.NewFromString(priceStr)
	size, _ := decimal.NewFromString(sizeStr)
	side := mmtypes.Buy
	if sideFIX == fixcodec.SideSellFIX {
		side = mmtypes.Sell
	}

	select {
	case e.fillCh <- FillEvent{Side: side, Price: price, Size: size, ClientOrderID: clOrdID, ExecID: execID}:
	default:
		e.logger.Warn("fill channel full, dropping event")
	}
}

// RunDrainLoop periodically replays the rate-limit overflow queue as budget
// recovers, until ctx is cancelled.
func (e *Engine) RunDrainLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.drainOverflow()
		}
	}
}

func (e *Engine) drainOverflow() {
	e.mu.Lock()
	queue := e.overflow
	e.overflow = nil
	e.mu.Unlock()

	for _, act := range queue {
		e.dispatch(act)
	}
}
