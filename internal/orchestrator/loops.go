package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

// onOELogon marks the order-entry session connected and logged on.
func (o *Orchestrator) onOELogon() {
	o.statusMu.Lock()
	o.connected = true
	o.loggedOn = true
	o.statusMu.Unlock()
	o.logger.Info("order-entry session logged on")
}

// onOEDisconnect marks the session down, emits a disconnect event, and (if
// not shutting down) hands off to the session's own reconnect supervisor.
func (o *Orchestrator) onOEDisconnect(err error) {
	o.statusMu.Lock()
	o.connected = false
	o.loggedOn = false
	o.statusMu.Unlock()

	o.logger.Warn("order-entry session disconnected", "error", err)
	o.emitLifecycle("disconnect", errString(err))

	select {
	case o.oeDisconnected <- struct{}{}:
	default:
	}
}

// superviseOE waits for the connection established by Start's fail-fast
// Connect to drop, then hands off to Run's reconnect-with-backoff loop.
// Run dials from scratch, so it must never run concurrently with a live
// connection.
func (o *Orchestrator) superviseOE() {
	defer o.wg.Done()
	select {
	case <-o.ctx.Done():
		return
	case <-o.oeDisconnected:
	}
	if o.isStopping() {
		return
	}
	if err := o.oeSession.Run(o.ctx); err != nil && o.ctx.Err() == nil {
		o.logger.Error("order-entry session reconnect loop ended", "error", err)
	}
}

func (o *Orchestrator) connectMarketData() {
	defer o.wg.Done()
	if err := o.mdSession.Run(o.ctx); err != nil && o.ctx.Err() == nil {
		o.logger.Warn("market-data session ended, continuing without market data", "error", err)
	}
}

func (o *Orchestrator) onMDLogon(feed interface{ Subscribe(string) error }) {
	o.statusMu.Lock()
	o.mdConnected = true
	o.statusMu.Unlock()
	if err := feed.Subscribe(o.cfg.MarketDataRequestID); err != nil {
		o.logger.Warn("market-data subscribe failed", "error", err)
	}
}

func (o *Orchestrator) onMDDisconnect(err error) {
	o.statusMu.Lock()
	o.mdConnected = false
	o.statusMu.Unlock()
	o.logger.Warn("market-data session disconnected", "error", err)
}

// runPriceLoop fuses each reference-price update into the quote engine and
// the P&L tracker's mark-to-market.
func (o *Orchestrator) runPriceLoop(priceCh <-chan mmtypes.PriceUpdate) {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case update, ok := <-priceCh:
			if !ok {
				return
			}
			o.setLastMid(update.Mid, update.BestBid, update.BestAsk)
			o.quoteEngine.OnPriceUpdate(update.Mid, update.Confidence)
			o.pnlTracker.MarkToMarket(update.Mid)
		}
	}
}

func (o *Orchestrator) runQuoteDrainLoop() {
	defer o.wg.Done()
	o.quoteEngine.RunDrainLoop(o.ctx)
}

// runQuoteFillLoop applies every maker fill to inventory and P&L, and audits
// it to the persistence adapter.
func (o *Orchestrator) runQuoteFillLoop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case fill, ok := <-o.quoteEngine.Fills():
			if !ok {
				return
			}
			mid := o.getLastMid()
			o.inv.OnFill(fill.Side, fill.Size, fill.Price, "truex", fill.ExecID)
			o.pnlTracker.OnFill(fill.Side, fill.Size, fill.Price, "truex", true, mid)
			o.audit(mmtypes.Fill{
				ExecID: fill.ExecID, ClientOrderID: fill.ClientOrderID,
				Side: fill.Side, Quantity: fill.Size, Price: fill.Price,
				Venue: "truex", Timestamp: time.Now(), Maker: true,
			})
		}
	}
}

func (o *Orchestrator) runQuoteCancelAllLoop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case evt, ok := <-o.quoteEngine.CancelAlls():
			if !ok {
				return
			}
			o.logger.Info("all quotes cancelled", "reason", evt.Reason)
		}
	}
}

// runInventoryEventLoops handles limit warnings, the emergency policy, and
// hedge signals: emergency cancels every quote and propagates the event;
// hedge signals trigger a normal (non-urgent) flatten.
func (o *Orchestrator) runInventoryEventLoops() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case w, ok := <-o.inv.LimitWarnings():
			if !ok {
				return
			}
			o.logger.Warn("inventory limit warning", "side", w.Side, "utilization", w.Utilization)
		case e, ok := <-o.inv.Emergencies():
			if !ok {
				return
			}
			o.statusMu.Lock()
			o.emergencyActive = true
			o.lastEmergencyReason = e.Reason
			o.statusMu.Unlock()
			o.quoteEngine.CancelAllQuotes(e.Reason)
			o.emitLifecycle("emergency", e.Reason)
		case s, ok := <-o.inv.HedgeSignals():
			if !ok {
				return
			}
			go o.dispatchHedge(s.Side, s.Size)
		}
	}
}

// dispatchHedge runs one hedge request to completion in its own goroutine;
// the executor's reentry guard rejects a second concurrent request rather
// than queuing it, matching hedge.ExecuteHedge's documented behavior.
func (o *Orchestrator) dispatchHedge(side mmtypes.Side, size decimal.Decimal) {
	if err := o.hedgeExec.ExecuteHedge(o.ctx, side, size, mmtypes.Normal); err != nil {
		o.logger.Warn("hedge signal execution failed", "side", side, "size", size, "error", err)
	}
}

// runHedgeEventLoops applies every hedge fill to inventory and P&L.
func (o *Orchestrator) runHedgeEventLoops() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case f, ok := <-o.hedgeExec.Filled():
			if !ok {
				return
			}
			mid := o.getLastMid()
			o.inv.OnFill(f.Side, f.Size, f.Price, "hedge", "")
			o.pnlTracker.OnFill(f.Side, f.Size, f.Price, "hedge", f.Maker, mid)
			o.audit(mmtypes.Fill{
				Side: f.Side, Quantity: f.Size, Price: f.Price,
				Venue: "hedge", Timestamp: time.Now(), Maker: f.Maker,
			})
		case <-o.hedgeExec.Failed():
			o.logger.Warn("hedge execution failed")
		case <-o.hedgeExec.Timeouts():
			o.logger.Warn("hedge limit order timed out, falling back to market")
		}
	}
}

func (o *Orchestrator) runPnLSummaryLoop() {
	defer o.wg.Done()
	ticker := time.NewTicker(o.cfg.PnLSummaryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-ticker.C:
			summary := o.pnlTracker.Snapshot()
			o.logger.Info("pnl summary",
				"realized", summary.RealizedPnL, "unrealized", summary.UnrealizedPnL,
				"fees", summary.TotalFees, "net", summary.NetPosition)
		case <-o.pnlTracker.SignificantChanges():
			o.logger.Info("significant pnl change")
		}
	}
}

func (o *Orchestrator) audit(fill mmtypes.Fill) {
	if o.persistence == nil {
		return
	}
	if err := o.persistence.AddFill(fill); err != nil {
		o.logger.Warn("persistence addFill failed", "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
