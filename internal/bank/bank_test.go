package bank

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clvm/internal/types"
)

const usdc = "uusdc"

var (
	alice = types.Account("alice")
	bob   = types.Account("bob")
)

func coins(amount int64) sdk.Coins {
	return sdk.NewCoins(sdk.NewCoin(usdc, sdkmath.NewInt(amount)))
}

func TestMintAndTransfer(t *testing.T) {
	b := NewMemory()
	require.NoError(t, b.Mint(alice, coins(1000)))

	require.NoError(t, b.Transfer(alice, bob, coins(400)))

	assert.Equal(t, sdkmath.NewInt(600), b.Balance(alice, usdc))
	assert.Equal(t, sdkmath.NewInt(400), b.Balance(bob, usdc))
}

func TestTransferInsufficientFundsLeavesBalancesUntouched(t *testing.T) {
	b := NewMemory()
	require.NoError(t, b.Mint(alice, coins(100)))

	err := b.Transfer(alice, bob, coins(101))

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, sdkmath.NewInt(100), b.Balance(alice, usdc))
	assert.True(t, b.Balance(bob, usdc).IsZero())
}

func TestTransferZeroIsNoOp(t *testing.T) {
	b := NewMemory()
	require.NoError(t, b.Transfer(alice, bob, sdk.NewCoins()))
	assert.True(t, b.Balance(bob, usdc).IsZero())
}

func TestTransferRejectsNullAccounts(t *testing.T) {
	b := NewMemory()
	assert.ErrorIs(t, b.Transfer(types.AccountNone, bob, coins(1)), ErrNoAccount)
	assert.ErrorIs(t, b.Transfer(alice, types.AccountNone, coins(1)), ErrNoAccount)
}
