/*

Core domain types for the concentrated-liquidity vault: accounts, tick
ranges, and the fixed-point denominators used by fee and percentage math.

*/

package types

import "fmt"

// Account identifies a party the vault settles with: depositors, the fee
// receiver, reward beneficiaries, and the vault's own custody accounts.
type Account string

// AccountNone is the null identifier. Configuring a beneficiary tier with
// AccountNone and a zero percentage disables that tier.
const AccountNone Account = ""

// IsNone reports whether the account is the null identifier.
func (a Account) IsNone() bool {
	return a == AccountNone
}

const (
	// MaxPct is the fixed denominator for beneficiary percentages.
	// 1,000,000 == 100%.
	MaxPct = uint32(1_000_000)

	// BpsDenom is the fixed denominator for the deposit fee.
	// 1,000,000 == 100%, so 100,000 == 10%.
	BpsDenom = uint32(1_000_000)
)

// TickRange is the [Lower, Upper] price-range boundary of a concentrated
// liquidity position. Lower must be strictly below Upper.
type TickRange struct {
	Lower int32 `json:"lower"`
	Upper int32 `json:"upper"`
}

// Validate checks the range ordering.
func (r TickRange) Validate() error {
	if r.Lower >= r.Upper {
		return fmt.Errorf("tick range lower bound %d must be below upper bound %d", r.Lower, r.Upper)
	}
	return nil
}

func (r TickRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Lower, r.Upper)
}
