package ledger

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clvm/internal/types"
)

const (
	alice = types.Account("alice")
	bob   = types.Account("bob")
	carol = types.Account("carol")
)

func TestMintAndBurnKeepSupplyInvariant(t *testing.T) {
	l := NewShareLedger()

	require.NoError(t, l.Mint(alice, sdkmath.NewInt(1000)))
	require.NoError(t, l.Mint(bob, sdkmath.NewInt(250)))
	require.NoError(t, l.Mint(alice, sdkmath.NewInt(500)))

	assert.Equal(t, sdkmath.NewInt(1500), l.BalanceOf(alice))
	assert.Equal(t, sdkmath.NewInt(250), l.BalanceOf(bob))
	assert.Equal(t, sdkmath.NewInt(1750), l.TotalShares())
	require.NoError(t, l.CheckInvariant())

	require.NoError(t, l.Burn(alice, sdkmath.NewInt(1500)))
	assert.True(t, l.BalanceOf(alice).IsZero())
	assert.Equal(t, sdkmath.NewInt(250), l.TotalShares())
	require.NoError(t, l.CheckInvariant())
}

func TestMintRejectsInvalidInput(t *testing.T) {
	l := NewShareLedger()

	assert.ErrorIs(t, l.Mint(types.AccountNone, sdkmath.NewInt(1)), ErrNoAccount)
	assert.ErrorIs(t, l.Mint(alice, sdkmath.ZeroInt()), ErrNonPositiveAmount)
	assert.ErrorIs(t, l.Mint(alice, sdkmath.NewInt(-5)), ErrNonPositiveAmount)
	assert.ErrorIs(t, l.Mint(alice, sdkmath.Int{}), ErrNilAmount)
	assert.True(t, l.TotalShares().IsZero())
}

func TestBurnRejectsOverdraw(t *testing.T) {
	l := NewShareLedger()
	require.NoError(t, l.Mint(alice, sdkmath.NewInt(100)))

	assert.ErrorIs(t, l.Burn(alice, sdkmath.NewInt(101)), ErrInsufficientShares)
	assert.ErrorIs(t, l.Burn(bob, sdkmath.NewInt(1)), ErrInsufficientShares)
	assert.Equal(t, sdkmath.NewInt(100), l.TotalShares())
}

func TestBurnToZeroRemovesHolder(t *testing.T) {
	l := NewShareLedger()
	require.NoError(t, l.Mint(alice, sdkmath.NewInt(10)))
	require.NoError(t, l.Mint(bob, sdkmath.NewInt(20)))

	require.NoError(t, l.Burn(alice, sdkmath.NewInt(10)))

	assert.Equal(t, []types.Account{bob}, l.Holders())
}

func TestHoldersAreSorted(t *testing.T) {
	l := NewShareLedger()
	require.NoError(t, l.Mint(carol, sdkmath.NewInt(1)))
	require.NoError(t, l.Mint(alice, sdkmath.NewInt(1)))
	require.NoError(t, l.Mint(bob, sdkmath.NewInt(1)))

	assert.Equal(t, []types.Account{alice, bob, carol}, l.Holders())
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	l := NewShareLedger()
	require.NoError(t, l.Mint(alice, sdkmath.NewInt(100)))

	snap := l.Snapshot()
	require.NoError(t, l.Mint(bob, sdkmath.NewInt(900)))
	require.NoError(t, l.Burn(alice, sdkmath.NewInt(50)))

	l.Restore(snap)

	assert.Equal(t, sdkmath.NewInt(100), l.BalanceOf(alice))
	assert.True(t, l.BalanceOf(bob).IsZero())
	assert.Equal(t, sdkmath.NewInt(100), l.TotalShares())
	require.NoError(t, l.CheckInvariant())
}

func TestSnapshotIsIsolatedFromLiveLedger(t *testing.T) {
	l := NewShareLedger()
	require.NoError(t, l.Mint(alice, sdkmath.NewInt(5)))

	snap := l.Snapshot()
	require.NoError(t, l.Mint(alice, sdkmath.NewInt(5)))

	assert.Equal(t, sdkmath.NewInt(5), snap.BalanceOf(alice))
	assert.Equal(t, sdkmath.NewInt(10), l.BalanceOf(alice))
}
