package types

import "errors"

// Error kinds shared across the vault core. Packages join these with
// call-site detail via errors.Join so callers can classify failures
// with errors.Is while logs keep the full story.
var (
	// ErrInvalidEntry covers caller-supplied values that violate a numeric
	// precondition: zero deposits, zero claimable balances, percentages
	// above the fixed denominator.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrInvalidState is returned when a position operation is attempted
	// against the wrong vault state.
	ErrInvalidState = errors.New("invalid vault state")

	// ErrUnauthorized is returned when the caller lacks the capability a
	// gated entry point requires.
	ErrUnauthorized = errors.New("caller lacks required capability")

	// ErrOracleUnavailable is returned when the price oracle cannot supply
	// a usable exchange rate (stale or deviating reference price).
	ErrOracleUnavailable = errors.New("price oracle unavailable")

	// ErrSlippageExceeded is returned when a conversion cannot meet the
	// caller's minimum-out floor.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")
)
