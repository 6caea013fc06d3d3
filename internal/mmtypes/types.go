// Package mmtypes defines shared data structures used across all packages
// of the market-making engine: order sides, fills, price levels, and the
// external collaborator interfaces (price source, hedge venue, persistence)
// that the core consumes but never implements directly.
//
// This package has no dependencies on any other internal package so it can
// be imported by every layer without import cycles.
package mmtypes

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an order or fill.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Valid reports whether s is a recognized side.
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Urgency controls whether the hedge executor skips the limit-order leg.
type Urgency string

const (
	Normal Urgency = "normal"
	Urgent Urgency = "urgent"
)

// OrderStatus is the lifecycle state of an ActiveOrder.
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusActive         OrderStatus = "active"
	StatusCancelPending  OrderStatus = "cancel-pending"
	StatusTerminal       OrderStatus = "terminal"
)

// Fill is an immutable execution event, maker or hedge venue.
type Fill struct {
	ExecID        string
	ClientOrderID string
	Side          Side
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	Venue         string
	Timestamp     time.Time
	Maker         bool
}

// ActiveOrder is a live resting order on the maker venue, mutable until Status
// reaches StatusTerminal. Identified by ClientOrderID, the join key for every
// execution report.
type ActiveOrder struct {
	ClientOrderID string
	Side          Side
	Price         decimal.Decimal
	Size          decimal.Decimal
	Level         int
	Status        OrderStatus
	PlacedAt      time.Time
}

// QuoteDesired is a transient, tick-aligned quote derived from the reference
// price on each update. It never outlives one reconciliation pass.
type QuoteDesired struct {
	Side  Side
	Level int
	Price decimal.Decimal
	Size  decimal.Decimal
}

// PriceLevel is one entry of an order book side.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// PriceUpdate is the event shape emitted by the external reference-price
// collaborator (spec §6 "Price source interface").
type PriceUpdate struct {
	Mid        decimal.Decimal
	BestBid    decimal.Decimal
	BestAsk    decimal.Decimal
	Confidence float64
	Timestamp  time.Time
}

// PriceSource is the narrow external collaborator the core consumes for a
// fused reference price. Production implementations (price aggregators) are
// out of scope; internal/pricesource ships one reference adapter.
type PriceSource interface {
	Subscribe(ctx context.Context) (<-chan PriceUpdate, error)
	Close() error
}

// HedgeOrderRequest is the payload for HedgeVenue.AddOrder.
type HedgeOrderRequest struct {
	Pair      string
	Side      Side
	OrderType string // "limit" or "market"
	Price     decimal.Decimal // zero for market orders
	Volume    decimal.Decimal
}

// HedgeOrderAck is the response to AddOrder: the venue-assigned transaction ids.
type HedgeOrderAck struct {
	TxIDs []string
}

// HedgeOrderStatusKind mirrors Kraken's queryOrders status vocabulary.
type HedgeOrderStatusKind string

const (
	HedgeOpen      HedgeOrderStatusKind = "open"
	HedgeClosed    HedgeOrderStatusKind = "closed"
	HedgeCanceled  HedgeOrderStatusKind = "canceled"
	HedgeExpired   HedgeOrderStatusKind = "expired"
)

// HedgeOrderState is one entry of HedgeVenue.QueryOrders' response map.
type HedgeOrderState struct {
	Status   HedgeOrderStatusKind
	VolExec  decimal.Decimal
	Price    decimal.Decimal
}

// HedgeVenue is the abstract hedge-venue interface from spec §6. Production
// venue clients (Kraken REST/WS) are out of scope collaborators;
// internal/hedgevenue ships one reference REST implementation.
type HedgeVenue interface {
	AddOrder(ctx context.Context, req HedgeOrderRequest) (HedgeOrderAck, error)
	QueryOrders(ctx context.Context, txIDs []string) (map[string]HedgeOrderState, error)
	CancelOrder(ctx context.Context, txID string) (int, error)
}

// PersistenceAdapter is the narrow, side-effect-only interface spec §6 calls
// "Persistence adapters (optional collaborators)". Nothing on the critical
// path blocks on it; implementations (Postgres/Redis) are out of scope.
// internal/persistence ships a JSON-file reference adapter.
type PersistenceAdapter interface {
	AddFill(fill Fill) error
	AddOrder(order ActiveOrder) error
	FlushOrders() error
	FlushFills() error
	FlushOHLC() error
}
