/*
This file contains the shared integer math used by the share ledger, the
deposit fee, and the tiered reward split: floor multiply-divide over
sdkmath.Int, and the fixed-denominator percentage helpers.
*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountNil      = errors.New("amount is nil")
	ErrAmountNegative = errors.New("amount is negative")
	ErrZeroDivisor    = errors.New("divisor is zero")
	ErrPctOutOfRange  = errors.New("percentage exceeds the fixed denominator")
)

// MulDivFloor computes amount * numerator / denominator rounded toward
// zero. This is the single rounding rule used for every pro-rata split in
// the vault, so remainders always stay with the pool, never with a payee.
func MulDivFloor(amount, numerator, denominator sdkmath.Int) (sdkmath.Int, error) {
	if amount.IsNil() || numerator.IsNil() || denominator.IsNil() {
		return sdkmath.ZeroInt(), ErrAmountNil
	}
	if amount.IsNegative() || numerator.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if denominator.IsZero() {
		return sdkmath.ZeroInt(), ErrZeroDivisor
	}
	return amount.Mul(numerator).Quo(denominator), nil
}

// PctCut returns amount * pct / MaxPct, floored. A pct above MaxPct is a
// validation failure, not a saturation.
func PctCut(amount sdkmath.Int, pct uint32) (sdkmath.Int, error) {
	if pct > types.MaxPct {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d > %d", ErrPctOutOfRange, pct, types.MaxPct)
	}
	return MulDivFloor(amount, sdkmath.NewInt(int64(pct)), sdkmath.NewInt(int64(types.MaxPct)))
}

// BpsCut returns amount * bps / BpsDenom, floored. Used for the deposit fee.
func BpsCut(amount sdkmath.Int, bps uint32) (sdkmath.Int, error) {
	if bps > types.BpsDenom {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d > %d", ErrPctOutOfRange, bps, types.BpsDenom)
	}
	return MulDivFloor(amount, sdkmath.NewInt(int64(bps)), sdkmath.NewInt(int64(types.BpsDenom)))
}

// ProRata returns amount * share / total, floored. Total must be positive
// and share must not exceed total.
func ProRata(amount, share, total sdkmath.Int) (sdkmath.Int, error) {
	if total.IsNil() || !total.IsPositive() {
		return sdkmath.ZeroInt(), ErrZeroDivisor
	}
	if share.IsNil() || share.IsNegative() {
		return sdkmath.ZeroInt(), ErrAmountNegative
	}
	if share.GT(total) {
		return sdkmath.ZeroInt(), fmt.Errorf("share %s exceeds total %s", share, total)
	}
	return MulDivFloor(amount, share, total)
}
