/*

Price oracle contract. The vault mints shares against the exchange rate
between the accounting asset and the paired asset at the moment of
deposit, so a stale or disagreeing rate must fail the whole call.

*/

package oracle

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

// PriceOracle returns the fixed-point exchange rate for a market.
type PriceOracle interface {
	ExchangeRate(ctx context.Context, marketID string) (sdkmath.LegacyDec, error)
}

// Static is a fixed-rate PriceOracle for sim mode and tests.
type Static struct {
	Rate sdkmath.LegacyDec
}

// ExchangeRate implements PriceOracle.
func (s Static) ExchangeRate(context.Context, string) (sdkmath.LegacyDec, error) {
	return s.Rate, nil
}
