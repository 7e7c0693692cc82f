package rewards

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvm/internal/bank"
	"github.com/elys-network/clvm/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrReserveDrained = errors.New("converter reserve cannot cover output")
)

// BankConverter is a fixed-rate converter settled against a pre-funded
// reserve account. It stands in for a real swap venue in simulation mode
// and in tests.
type BankConverter struct {
	bank     bank.Bank
	reserve  types.Account
	rate     sdkmath.LegacyDec // out per unit in
	outDenom string
}

// NewBankConverter returns a converter quoting a constant rate from the
// input asset into outDenom.
func NewBankConverter(b bank.Bank, reserve types.Account, rate sdkmath.LegacyDec, outDenom string) (*BankConverter, error) {
	if b == nil {
		return nil, errors.New("bank cannot be nil")
	}
	if reserve.IsNone() {
		return nil, errors.New("reserve account cannot be empty")
	}
	if rate.IsNil() || !rate.IsPositive() {
		return nil, errors.New("rate must be positive")
	}
	if outDenom == "" {
		return nil, errors.New("output denom cannot be empty")
	}
	return &BankConverter{bank: b, reserve: reserve, rate: rate, outDenom: outDenom}, nil
}

// Convert swaps in at the fixed rate. The reserve is checked before any
// leg settles so a drained reserve fails with no funds moved.
func (c *BankConverter) Convert(_ context.Context, from, to types.Account, in sdk.Coin, minOut sdkmath.Int) (sdk.Coin, error) {
	out := sdk.NewCoin(c.outDenom, c.rate.MulInt(in.Amount).TruncateInt())

	if !minOut.IsNil() && out.Amount.LT(minOut) {
		return sdk.Coin{}, errors.Join(types.ErrSlippageExceeded,
			fmt.Errorf("conversion output %s below minimum %s", out.Amount, minOut))
	}
	if c.bank.Balance(c.reserve, c.outDenom).LT(out.Amount) {
		return sdk.Coin{}, errors.Join(types.ErrInvalidState, ErrReserveDrained)
	}

	if err := c.bank.Transfer(from, c.reserve, sdk.NewCoins(in)); err != nil {
		return sdk.Coin{}, fmt.Errorf("conversion input leg failed: %w", err)
	}
	if out.Amount.IsPositive() {
		if err := c.bank.Transfer(c.reserve, to, sdk.NewCoins(out)); err != nil {
			return sdk.Coin{}, fmt.Errorf("conversion output leg failed: %w", err)
		}
	}
	return out, nil
}
