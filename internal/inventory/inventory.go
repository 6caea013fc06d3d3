// Package inventory tracks net position against configured limits and
// emits fill, limit-warning, emergency, and hedge-signal events as fills
// arrive.
package inventory

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

const eventBufferSize = 256

// Config is the inventory section of the configuration surface.
type Config struct {
	MaxPositionBase    decimal.Decimal
	HedgeThresholdBase decimal.Decimal
	EmergencyLimitBase decimal.Decimal // default 1.2 * MaxPositionBase
	MaxSkewTicks       decimal.Decimal
	SkewExponent       float64 // default 2
	TickSize           decimal.Decimal
	LimitWarningPct    float64 // default 0.8
}

// WithDefaults fills in zero-valued optional fields.
func (c Config) WithDefaults() Config {
	if c.EmergencyLimitBase.IsZero() {
		c.EmergencyLimitBase = c.MaxPositionBase.Mul(decimal.NewFromFloat(1.2))
	}
	if c.SkewExponent == 0 {
		c.SkewExponent = 2
	}
	if c.LimitWarningPct == 0 {
		c.LimitWarningPct = 0.8
	}
	return c
}

// Position is a snapshot of accumulated totals at a point in time.
type Position struct {
	BuyQty      decimal.Decimal
	BuyCost     decimal.Decimal
	SellQty     decimal.Decimal
	SellCost    decimal.Decimal
	NetPosition decimal.Decimal
	AvgEntry    decimal.Decimal
	FillCount   int
	Updated     time.Time
}

// FillEvent is published after every accepted fill.
type FillEvent struct {
	Side     mmtypes.Side
	Qty      decimal.Decimal
	Price    decimal.Decimal
	Venue    string
	ExecID   string
	Position Position
}

// EmergencyEvent is published when |net| reaches the emergency limit.
type EmergencyEvent struct {
	Reason      string
	NetPosition decimal.Decimal
}

// LimitWarningEvent is published when utilization crosses LimitWarningPct.
type LimitWarningEvent struct {
	Side string // "long" or "short"
	Utilization float64
}

// HedgeSignalEvent asks the hedge executor to flatten size on Side.
type HedgeSignalEvent struct {
	Side mmtypes.Side
	Size decimal.Decimal
}

// Manager is the single-writer owner of position state. Buy/sell totals,
// VWAP, and derived skew are all guarded by mu.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu  sync.RWMutex
	pos Position

	fillCh         chan FillEvent
	emergencyCh    chan EmergencyEvent
	limitWarningCh chan LimitWarningEvent
	hedgeSignalCh  chan HedgeSignalEvent
}

// New constructs a Manager from cfg.
func New(cfg Config, logger *slog.Logger) *Manager {
	cfg = cfg.WithDefaults()
	return &Manager{
		cfg:            cfg,
		logger:         logger.With("component", "inventory"),
		fillCh:         make(chan FillEvent, eventBufferSize),
		emergencyCh:    make(chan EmergencyEvent, eventBufferSize),
		limitWarningCh: make(chan LimitWarningEvent, eventBufferSize),
		hedgeSignalCh:  make(chan HedgeSignalEvent, eventBufferSize),
	}
}

func (m *Manager) Fills() <-chan FillEvent                 { return m.fillCh }
func (m *Manager) Emergencies() <-chan EmergencyEvent       { return m.emergencyCh }
func (m *Manager) LimitWarnings() <-chan LimitWarningEvent  { return m.limitWarningCh }
func (m *Manager) HedgeSignals() <-chan HedgeSignalEvent    { return m.hedgeSignalCh }

// Snapshot returns a copy of the current position.
func (m *Manager) Snapshot() Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos
}

// OnFill updates totals, recomputes VWAP, and emits fill/emergency/warning/
// hedge-signal events per the fixed sequencing in spec §4.3. Invalid fills
// (missing/unknown side, non-positive quantity or price) are ignored with a
// warning.
func (m *Manager) OnFill(side mmtypes.Side, qty, price decimal.Decimal, venue, execID string) {
	if !side.Valid() || qty.Sign() <= 0 || price.Sign() <= 0 {
		m.logger.Warn("ignoring invalid fill", "side", side, "qty", qty, "price", price)
		return
	}

	m.mu.Lock()
	if side == mmtypes.Buy {
		m.pos.BuyQty = m.pos.BuyQty.Add(qty)
		m.pos.BuyCost = m.pos.BuyCost.Add(qty.Mul(price))
	} else {
		m.pos.SellQty = m.pos.SellQty.Add(qty)
		m.pos.SellCost = m.pos.SellCost.Add(qty.Mul(price))
	}
	m.pos.NetPosition = m.pos.BuyQty.Sub(m.pos.SellQty)
	m.pos.AvgEntry = vwap(m.pos)
	m.pos.FillCount++
	m.pos.Updated = time.Now()
	snapshot := m.pos
	m.mu.Unlock()

	m.publishFill(FillEvent{Side: side, Qty: qty, Price: price, Venue: venue, ExecID: execID, Position: snapshot})

	net := snapshot.NetPosition
	absNet := net.Abs()

	if absNet.GreaterThanOrEqual(m.cfg.EmergencyLimitBase) {
		m.publishEmergency(EmergencyEvent{Reason: "net position at or above emergency limit", NetPosition: net})
		return
	}

	if !m.cfg.MaxPositionBase.IsZero() {
		utilization, _ := absNet.Div(m.cfg.MaxPositionBase).Float64()
		if utilization >= m.cfg.LimitWarningPct {
			side := "long"
			if net.IsNegative() {
				side = "short"
			}
			m.publishLimitWarning(LimitWarningEvent{Side: side, Utilization: utilization})
		}
	}

	if absNet.GreaterThanOrEqual(m.cfg.HedgeThresholdBase) {
		hedgeSide := mmtypes.Sell
		if net.IsNegative() {
			hedgeSide = mmtypes.Buy
		}
		m.publishHedgeSignal(HedgeSignalEvent{Side: hedgeSide, Size: absNet})
	}
}

// vwap recomputes AvgEntry: the quantity-weighted average cost of the net
// position's accumulating side (buys if net long, sells if net short).
func vwap(pos Position) decimal.Decimal {
	if pos.NetPosition.IsPositive() {
		if pos.BuyQty.IsZero() {
			return decimal.Zero
		}
		return pos.BuyCost.Div(pos.BuyQty)
	}
	if pos.NetPosition.IsNegative() {
		if pos.SellQty.IsZero() {
			return decimal.Zero
		}
		return pos.SellCost.Div(pos.SellQty)
	}
	return decimal.Zero
}

// GetSkew returns the per-tick bid/ask skew. Zero net position or a zero
// max position both produce zero skew.
func (m *Manager) GetSkew() (bidSkewTicks, askSkewTicks decimal.Decimal) {
	m.mu.RLock()
	net := m.pos.NetPosition
	m.mu.RUnlock()

	if net.IsZero() || m.cfg.MaxPositionBase.IsZero() {
		return decimal.Zero, decimal.Zero
	}

	utilization, _ := net.Abs().Div(m.cfg.MaxPositionBase).Float64()
	maxSkew, _ := m.cfg.MaxSkewTicks.Float64()
	raw := decimal.NewFromFloat(math.Pow(utilization, m.cfg.SkewExponent) * maxSkew)

	if net.IsPositive() { // long: skew asks up, bids down
		return raw.Neg(), raw
	}
	return raw, raw.Neg() // short: skew bids up, asks down
}

// CanQuote reports whether a new order on side is allowed: false only when
// the position is at or above max on the side that would grow it further.
func (m *Manager) CanQuote(side mmtypes.Side) bool {
	m.mu.RLock()
	net := m.pos.NetPosition
	m.mu.RUnlock()

	if m.cfg.MaxPositionBase.IsZero() {
		return true
	}
	if side == mmtypes.Buy && net.GreaterThanOrEqual(m.cfg.MaxPositionBase) {
		return false
	}
	if side == mmtypes.Sell && net.Neg().GreaterThanOrEqual(m.cfg.MaxPositionBase) {
		return false
	}
	return true
}

func (m *Manager) publishFill(e FillEvent) {
	select {
	case m.fillCh <- e:
	default:
		m.logger.Warn("fill channel full, dropping event")
	}
}

func (m *Manager) publishEmergency(e EmergencyEvent) {
	m.logger.Error("emergency", "reason", e.Reason, "net", e.NetPosition)
	select {
	case m.emergencyCh <- e:
	default:
		m.logger.Warn("emergency channel full, dropping event")
	}
}

func (m *Manager) publishLimitWarning(e LimitWarningEvent) {
	select {
	case m.limitWarningCh <- e:
	default:
		m.logger.Warn("limit-warning channel full, dropping event")
	}
}

func (m *Manager) publishHedgeSignal(e HedgeSignalEvent) {
	select {
	case m.hedgeSignalCh <- e:
	default:
		m.logger.Warn("hedge-signal channel full, dropping event")
	}
}
