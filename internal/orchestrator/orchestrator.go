// Package orchestrator owns every subsystem of the market-making engine,
// wires their events together, and enforces the emergency policy: when
// inventory reports the position at or above the emergency limit, every
// resting quote is cancelled and the reason is propagated to operators.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/fixsession"
	"truex-mm/internal/hedge"
	"truex-mm/internal/inventory"
	"truex-mm/internal/marketdata"
	"truex-mm/internal/mmtypes"
	"truex-mm/internal/pnl"
	"truex-mm/internal/quote"
)

const eventBufferSize = 64

// Orchestrator is the top-level object: New wires everything, Start begins
// trading, Stop flattens and tears down.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	oeSession *fixsession.Session
	mdSession *fixsession.Session
	mdFeed    *marketdata.Feed

	quoteEngine *quote.Engine
	inv         *inventory.Manager
	pnlTracker  *pnl.Tracker
	hedgeExec   *hedge.Executor
	priceSrc    mmtypes.PriceSource
	persistence mmtypes.PersistenceAdapter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statusMu            sync.RWMutex
	connected           bool
	loggedOn            bool
	mdConnected         bool
	emergencyActive     bool
	lastEmergencyReason string
	stopping            bool

	lastMidMu sync.RWMutex
	lastMid   decimal.Decimal
	lastBid   decimal.Decimal
	lastAsk   decimal.Decimal

	eventsCh       chan LifecycleEvent
	oeDisconnected chan struct{}
}

// New constructs every subsystem from cfg and wires them together. venue,
// priceSrc and persistence are the external collaborators (spec §6);
// persistence may be nil to run without durable audit output.
func New(cfg Config, venue mmtypes.HedgeVenue, priceSrc mmtypes.PriceSource, persistence mmtypes.PersistenceAdapter, logger *slog.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	logger = logger.With("component", "orchestrator")

	o := &Orchestrator{
		cfg:            cfg,
		logger:         logger,
		priceSrc:       priceSrc,
		persistence:    persistence,
		eventsCh:       make(chan LifecycleEvent, eventBufferSize),
		oeDisconnected: make(chan struct{}, 1),
	}

	o.inv = inventory.New(cfg.Inventory, logger)
	o.pnlTracker = pnl.New(cfg.PnL, logger)

	oeListener := &oeListener{orch: o}
	o.oeSession = fixsession.New(cfg.OrderEntrySession, oeListener, logger)
	o.quoteEngine = quote.New(cfg.Quote, o.oeSession, o.inv, logger)

	o.hedgeExec = hedge.New(cfg.Hedge, venue, priceReferenceAdapter{o}, logger)

	mdListener := &mdListener{orch: o}
	o.mdSession = fixsession.New(cfg.MarketDataSession, mdListener, logger)
	o.mdFeed = marketdata.New(cfg.MarketDataSymbol, o.mdSession, logger)
	mdListener.Feed = o.mdFeed

	return o
}

// bookStaleAfter bounds how long the local FIX book's last update may trail
// before priceReferenceAdapter falls back to the external price source.
const bookStaleAfter = 5 * time.Second

// priceReferenceAdapter implements hedge.ReferencePrice. When configured for
// HedgePriceSourceBook it prefers the local market-data book and falls back
// to the fused external price when the book is empty or stale.
type priceReferenceAdapter struct{ o *Orchestrator }

func (p priceReferenceAdapter) BestBidAsk() (bid, ask decimal.Decimal, ok bool) {
	if p.o.cfg.HedgePriceSource == HedgePriceSourceBook {
		book := p.o.mdFeed.Book()
		if bestBid, bestAsk, _, _, _, _, bookOK := book.BestBidAsk(); bookOK && !book.IsStale(bookStaleAfter) {
			return bestBid, bestAsk, true
		}
	}
	return p.o.getLastBidAsk()
}

// Events returns the lifecycle event stream (started/stopped/emergency/disconnect).
func (o *Orchestrator) Events() <-chan LifecycleEvent { return o.eventsCh }

// GetStatus returns a point-in-time snapshot of engine health.
func (o *Orchestrator) GetStatus() Status {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()

	pos := o.inv.Snapshot()
	summary := o.pnlTracker.Snapshot()

	return Status{
		Connected:           o.connected,
		LoggedOn:            o.loggedOn,
		MarketDataConnected: o.mdConnected,
		NetPosition:         pos.NetPosition,
		RealizedPnL:         summary.RealizedPnL,
		UnrealizedPnL:       summary.UnrealizedPnL,
		ActiveOrderCount:    len(o.quoteEngine.ActiveOrders()),
		EmergencyActive:     o.emergencyActive,
		LastEmergencyReason: o.lastEmergencyReason,
	}
}

// Start connects the order-entry session and fails fast on logon failure,
// opportunistically connects market data, starts the periodic timers, and
// emits a "started" lifecycle event.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.ctx, o.cancel = context.WithCancel(ctx)

	if err := o.oeSession.Connect(o.ctx); err != nil {
		return fmt.Errorf("order-entry logon failed: %w", err)
	}

	o.wg.Add(1)
	go o.superviseOE()

	o.wg.Add(1)
	go o.connectMarketData()

	priceCh, err := o.priceSrc.Subscribe(o.ctx)
	if err != nil {
		o.logger.Error("price source subscribe failed", "error", err)
		return fmt.Errorf("price source subscribe: %w", err)
	}

	o.wg.Add(1)
	go o.runPriceLoop(priceCh)

	o.wg.Add(1)
	go o.runQuoteDrainLoop()

	o.wg.Add(1)
	go o.runQuoteFillLoop()

	o.wg.Add(1)
	go o.runQuoteCancelAllLoop()

	o.wg.Add(1)
	go o.runInventoryEventLoops()

	o.wg.Add(1)
	go o.runHedgeEventLoops()

	o.wg.Add(1)
	go o.runPnLSummaryLoop()

	o.emitLifecycle("started", "")
	o.logger.Info("orchestrator started")
	return nil
}

// Stop cancels all quotes, attempts one urgent flattening hedge if a
// material position remains, tears down timers and sessions, flushes
// persistence, and emits a "stopped" lifecycle event.
func (o *Orchestrator) Stop() {
	o.statusMu.Lock()
	o.stopping = true
	o.statusMu.Unlock()

	o.quoteEngine.CancelAllQuotes("shutdown")

	net := o.inv.Snapshot().NetPosition
	if net.Abs().GreaterThan(o.cfg.Hedge.MinHedgeSize) {
		side := mmtypes.Sell
		if net.IsNegative() {
			side = mmtypes.Buy
		}
		flattenCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := o.hedgeExec.ExecuteHedge(flattenCtx, side, net.Abs(), mmtypes.Urgent); err != nil {
			o.logger.Error("shutdown flatten hedge failed", "error", err)
		}
		cancel()
	}

	if o.cancel != nil {
		o.cancel()
	}

	_ = o.oeSession.Disconnect()
	_ = o.mdSession.Disconnect()
	_ = o.priceSrc.Close()

	if o.persistence != nil {
		if err := o.persistence.FlushOrders(); err != nil {
			o.logger.Warn("flush orders failed", "error", err)
		}
		if err := o.persistence.FlushFills(); err != nil {
			o.logger.Warn("flush fills failed", "error", err)
		}
		if err := o.persistence.FlushOHLC(); err != nil {
			o.logger.Warn("flush ohlc failed", "error", err)
		}
	}

	o.wg.Wait()
	o.emitLifecycle("stopped", "")
	o.logger.Info("orchestrator stopped")
}

func (o *Orchestrator) isStopping() bool {
	o.statusMu.RLock()
	defer o.statusMu.RUnlock()
	return o.stopping
}

func (o *Orchestrator) emitLifecycle(eventType, reason string) {
	select {
	case o.eventsCh <- LifecycleEvent{Type: eventType, Reason: reason, At: time.Now()}:
	default:
		o.logger.Warn("lifecycle event channel full, dropping event", "type", eventType)
	}
}

func (o *Orchestrator) setLastMid(mid, bid, ask decimal.Decimal) {
	o.lastMidMu.Lock()
	o.lastMid = mid
	o.lastBid = bid
	o.lastAsk = ask
	o.lastMidMu.Unlock()
}

func (o *Orchestrator) getLastMid() decimal.Decimal {
	o.lastMidMu.RLock()
	defer o.lastMidMu.RUnlock()
	return o.lastMid
}

func (o *Orchestrator) getLastBidAsk() (bid, ask decimal.Decimal, ok bool) {
	o.lastMidMu.RLock()
	defer o.lastMidMu.RUnlock()
	if o.lastBid.IsZero() && o.lastAsk.IsZero() {
		return decimal.Zero, decimal.Zero, false
	}
	return o.lastBid, o.lastAsk, true
}
