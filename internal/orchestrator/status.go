package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is a point-in-time snapshot for operators and the optional SSE
// status surface.
type Status struct {
	Connected           bool
	LoggedOn            bool
	MarketDataConnected bool
	NetPosition         decimal.Decimal
	RealizedPnL         decimal.Decimal
	UnrealizedPnL       decimal.Decimal
	ActiveOrderCount    int
	EmergencyActive     bool
	LastEmergencyReason string
}

// LifecycleEvent is an operator-visible transition: started, stopped,
// emergency, or disconnect. internal/opstatus republishes these over SSE.
type LifecycleEvent struct {
	Type   string
	Reason string
	At     time.Time
}
