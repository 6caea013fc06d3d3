package hedge

import "errors"

var (
	ErrInvalidSide    = errors.New("hedge: invalid side")
	ErrNonPositiveSize = errors.New("hedge: size must be positive")
	ErrBelowMinSize   = errors.New("hedge: size below minHedgeSize")
	ErrAlreadyInFlight = errors.New("hedge: a hedge is already in flight")
	ErrNoReferencePrice = errors.New("hedge: no reference price available")
)
