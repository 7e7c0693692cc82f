/*

Contract with the external concentrated-liquidity market. The vault is the
only caller and holds at most one open position at a time.

*/

package market

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvm/internal/types"
)

// Market is the two-asset liquidity market the vault invests into.
//
// OpenPosition invests amounts into the given tick range and returns the
// coins the market actually consumed; the remainder stays with the caller
// as idle dust. Opening with the same range as the live position adds to
// it. ClosePosition exits the position entirely and returns the realized
// amounts of both assets. HarvestIdle sweeps accrued market fees for the
// position without touching its principal.
type Market interface {
	OpenPosition(ctx context.Context, r types.TickRange, amounts sdk.Coins) (used sdk.Coins, positionID uint64, err error)
	ClosePosition(ctx context.Context, positionID uint64) (sdk.Coins, error)
	HarvestIdle(ctx context.Context, positionID uint64) (sdk.Coins, error)
}
