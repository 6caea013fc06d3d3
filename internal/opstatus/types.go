// Package opstatus is a minimal operator-facing status surface: an HTTP
// server exposing a point-in-time JSON snapshot and a Server-Sent-Events
// stream of lifecycle events (started, stopped, emergency, disconnect).
// It is optional and has no effect on the trading path: nothing on the
// critical path blocks on a connected client.
package opstatus

import (
	"time"

	"github.com/shopspring/decimal"

	"truex-mm/internal/orchestrator"
)

// Provider narrows the orchestrator down to exactly what this package needs.
type Provider interface {
	GetStatus() orchestrator.Status
	Events() <-chan orchestrator.LifecycleEvent
}

// Snapshot is the payload for GET /api/snapshot and the initial SSE event.
type Snapshot struct {
	Timestamp           time.Time       `json:"timestamp"`
	Connected           bool            `json:"connected"`
	LoggedOn            bool            `json:"logged_on"`
	MarketDataConnected bool            `json:"market_data_connected"`
	NetPosition         decimal.Decimal `json:"net_position"`
	RealizedPnL         decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL       decimal.Decimal `json:"unrealized_pnl"`
	ActiveOrderCount    int             `json:"active_order_count"`
	EmergencyActive     bool            `json:"emergency_active"`
	LastEmergencyReason string          `json:"last_emergency_reason,omitempty"`
}

// BuildSnapshot converts a point-in-time orchestrator.Status into the wire
// Snapshot shape.
func BuildSnapshot(status orchestrator.Status) Snapshot {
	return Snapshot{
		Timestamp:           time.Now(),
		Connected:           status.Connected,
		LoggedOn:            status.LoggedOn,
		MarketDataConnected: status.MarketDataConnected,
		NetPosition:         status.NetPosition,
		RealizedPnL:         status.RealizedPnL,
		UnrealizedPnL:       status.UnrealizedPnL,
		ActiveOrderCount:    status.ActiveOrderCount,
		EmergencyActive:     status.EmergencyActive,
		LastEmergencyReason: status.LastEmergencyReason,
	}
}

// StreamEvent is the wrapper sent over the SSE stream: "snapshot" on
// connect, then "started"/"stopped"/"emergency"/"disconnect" as the
// orchestrator's own lifecycle events arrive, and a periodic "status" tick
// carrying the latest snapshot.
type StreamEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Reason    string      `json:"reason,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}
