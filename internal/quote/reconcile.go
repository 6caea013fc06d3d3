package quote

import (
	"github.com/shopspring/decimal"

	"truex-mm/internal/mmtypes"
)

type levelKey struct {
	side  mmtypes.Side
	level int
}

type actionKind int

const (
	actionPlace actionKind = iota
	actionCancel
	actionCancelReplace
)

// action is one reconciliation outcome for a (side, level) slot.
type action struct {
	kind    actionKind
	desired *mmtypes.QuoteDesired // nil for a plain cancel
	active  *mmtypes.ActiveOrder  // nil for a plain place
}

// reconcile partitions desired and active orders by (side, level) and
// decides place/cancel/cancel-replace/no-action per spec §4.5.
func reconcile(desired []mmtypes.QuoteDesired, active map[string]*mmtypes.ActiveOrder, repriceThresholdTicks, tickSize decimal.Decimal) []action {
	desiredByKey := make(map[levelKey]mmtypes.QuoteDesired, len(desired))
	for _, d := range desired {
		desiredByKey[levelKey{d.Side, d.Level}] = d
	}

	activeByKey := make(map[levelKey]*mmtypes.ActiveOrder, len(active))
	for _, a := range active {
		activeByKey[levelKey{a.Side, a.Level}] = a
	}

	seen := make(map[levelKey]bool, len(desiredByKey)+len(activeByKey))
	var actions []action

	repriceThreshold := repriceThresholdTicks.Mul(tickSize)

	for key, d := range desiredByKey {
		seen[key] = true
		a, hasActive := activeByKey[key]
		d := d
		switch {
		case !hasActive:
			actions = append(actions, action{kind: actionPlace, desired: &d})
		case a.Price.Sub(d.Price).Abs().GreaterThanOrEqual(repriceThreshold) || !a.Size.Equal(d.Size):
			actions = append(actions, action{kind: actionCancelReplace, desired: &d, active: a})
		}
	}
	for key, a := range activeByKey {
		if seen[key] {
			continue
		}
		actions = append(actions, action{kind: actionCancel, active: a})
	}
	return actions
}
