package vault

import (
	"context"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/clvm/internal/auth"
	"github.com/elys-network/clvm/internal/bank"
	"github.com/elys-network/clvm/internal/market"
	"github.com/elys-network/clvm/internal/oracle"
	"github.com/elys-network/clvm/internal/types"
)

const (
	usdc = "uusdc"
	atom = "uatom"

	ONE = 1_000_000
)

var (
	vaultAccount = types.Account("vault")
	feeReceiver  = types.Account("fee-receiver")
	manager      = types.Account("manager")
	admin        = types.Account("admin")
	alice        = types.Account("alice")
	bob          = types.Account("bob")
	carol        = types.Account("carol")
)

type memorySink struct {
	deposits    []types.DepositEvent
	withdrawals []types.WithdrawEvent
}

func (s *memorySink) DepositRecorded(e types.DepositEvent)               { s.deposits = append(s.deposits, e) }
func (s *memorySink) WithdrawRecorded(e types.WithdrawEvent)             { s.withdrawals = append(s.withdrawals, e) }
func (s *memorySink) RewardsDistributed(types.RewardsDistributedEvent)   {}
func (s *memorySink) RewardsCollected(types.RewardsCollectedEvent)       {}

type fixture struct {
	vault  *Vault
	bank   *bank.Memory
	market *market.Sim
	sink   *memorySink
}

// newFixture builds a vault with a unit exchange rate, no deposit fee
// unless feeBps is set, and funded depositor accounts.
func newFixture(t *testing.T, feeBps uint32) *fixture {
	return newFixtureWithMarket(t, feeBps, nil)
}

// newFixtureWithMarket lets a test interpose on the market. wrap receives
// the underlying sim and returns the Market handed to the vault.
func newFixtureWithMarket(t *testing.T, feeBps uint32, wrap func(*market.Sim) market.Market) *fixture {
	t.Helper()

	b := bank.NewMemory()
	sim := market.NewSim(usdc, atom, 0)
	// accrued fees become bank balance of the custody account, matching
	// a venue that settles fee revenue to the position owner
	sim.SetFeeCredit(func(fees sdk.Coins) error {
		return b.Mint(vaultAccount, fees)
	})
	var mkt market.Market = sim
	if wrap != nil {
		mkt = wrap(sim)
	}
	registry := auth.NewStaticRegistry()
	registry.Grant(manager, auth.CapabilityManager)
	registry.Grant(admin, auth.CapabilityAdmin)
	sink := &memorySink{}

	v, err := New(Config{
		MarketID:        "atom-usdc",
		Account:         vaultAccount,
		AccountingDenom: usdc,
		PairedDenom:     atom,
		DepositFeeBps:   feeBps,
		FeeReceiver:     feeReceiver,
	}, Deps{
		Market:     mkt,
		Oracle:     oracle.Static{Rate: sdkmath.LegacyOneDec()},
		Authorizer: registry,
		Bank:       b,
		Sink:       sink,
	})
	require.NoError(t, err)

	for _, account := range []types.Account{alice, bob, carol} {
		require.NoError(t, b.Mint(account, sdk.NewCoins(sdk.NewCoin(usdc, sdkmath.NewInt(1_000*ONE)))))
	}

	return &fixture{vault: v, bank: b, market: sim, sink: sink}
}

// faultyMarket rejects the next failOpens position adds before delegating
// to the sim.
type faultyMarket struct {
	*market.Sim
	failOpens int
}

func (m *faultyMarket) OpenPosition(ctx context.Context, r types.TickRange, amounts sdk.Coins) (sdk.Coins, uint64, error) {
	if m.failOpens > 0 {
		m.failOpens--
		return nil, 0, errors.New("venue rejected the add")
	}
	return m.Sim.OpenPosition(ctx, r, amounts)
}

func TestDepositMintsSharesAtOracleRate(t *testing.T) {
	f := newFixture(t, 0)

	minted, err := f.vault.Deposit(context.Background(), alice, sdkmath.NewInt(100*ONE))

	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(100*ONE), minted)
	assert.Equal(t, sdkmath.NewInt(100*ONE), f.vault.Shares().BalanceOf(alice))
	assert.Equal(t, sdkmath.NewInt(100*ONE), f.vault.Shares().TotalShares())
	assert.Equal(t, sdkmath.NewInt(100*ONE), f.vault.IdleBalances().AmountOf(usdc))
	assert.Equal(t, sdkmath.NewInt(100*ONE), f.bank.Balance(vaultAccount, usdc))

	require.Len(t, f.sink.deposits, 1)
	assert.Equal(t, alice, f.sink.deposits[0].Account)
	assert.Equal(t, sdkmath.NewInt(100*ONE), f.sink.deposits[0].AmountAfterFee)
}

func TestDepositChargesFee(t *testing.T) {
	// 10% fee with the 1e6 denominator
	f := newFixture(t, 100_000)

	minted, err := f.vault.Deposit(context.Background(), alice, sdkmath.NewInt(1000))

	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(100), f.bank.Balance(feeReceiver, usdc))
	// shares are minted on the 900 net of fee
	assert.Equal(t, sdkmath.NewInt(900), minted)
	assert.Equal(t, sdkmath.NewInt(900), f.vault.IdleBalances().AmountOf(usdc))
}

func TestDepositRejectsZeroAmount(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.vault.Deposit(context.Background(), alice, sdkmath.ZeroInt())
	assert.ErrorIs(t, err, types.ErrInvalidEntry)

	_, err = f.vault.Deposit(context.Background(), alice, sdkmath.NewInt(-1))
	assert.ErrorIs(t, err, types.ErrInvalidEntry)
}

type failingOracle struct{}

func (failingOracle) ExchangeRate(context.Context, string) (sdkmath.LegacyDec, error) {
	return sdkmath.LegacyDec{}, types.ErrOracleUnavailable
}

func TestDepositOracleFailureLeavesStateUntouched(t *testing.T) {
	b := bank.NewMemory()
	registry := auth.NewStaticRegistry()
	v, err := New(Config{
		MarketID:        "atom-usdc",
		Account:         vaultAccount,
		AccountingDenom: usdc,
		PairedDenom:     atom,
	}, Deps{
		Market:     market.NewSim(usdc, atom, 0),
		Oracle:     failingOracle{},
		Authorizer: registry,
		Bank:       b,
	})
	require.NoError(t, err)
	require.NoError(t, b.Mint(alice, sdk.NewCoins(sdk.NewCoin(usdc, sdkmath.NewInt(1000)))))

	_, err = v.Deposit(context.Background(), alice, sdkmath.NewInt(1000))

	assert.ErrorIs(t, err, types.ErrOracleUnavailable)
	assert.True(t, v.Shares().TotalShares().IsZero())
	assert.True(t, v.IdleBalances().IsZero())
	assert.Equal(t, sdkmath.NewInt(1000), b.Balance(alice, usdc))
}

func TestWithdrawWithoutSharesFails(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.vault.Withdraw(context.Background(), alice)
	assert.ErrorIs(t, err, types.ErrInvalidEntry)
}

func TestSoleDepositorRoundTripConservesFunds(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -100, 100))
	require.True(t, f.vault.InPosition())

	payout, err := f.vault.Withdraw(ctx, alice)

	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(100*ONE), payout.AmountOf(usdc))
	assert.True(t, f.vault.Shares().TotalShares().IsZero())
	assert.False(t, f.vault.InPosition())
	assert.True(t, f.vault.IdleBalances().IsZero())
	assert.Equal(t, sdkmath.NewInt(1000*ONE), f.bank.Balance(alice, usdc))
}

func TestWithdrawReopensSameRangeForRemainingHolders(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(300*ONE))
	require.NoError(t, err)
	_, err = f.vault.Deposit(ctx, bob, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -500, 500))

	payout, err := f.vault.Withdraw(ctx, bob)

	require.NoError(t, err)
	// bob held a quarter of the shares
	assert.Equal(t, sdkmath.NewInt(100*ONE), payout.AmountOf(usdc))
	assert.True(t, f.vault.InPosition())
	require.NotNil(t, f.vault.TickRange())
	assert.Equal(t, types.TickRange{Lower: -500, Upper: 500}, *f.vault.TickRange())
	assert.Equal(t, sdkmath.NewInt(300*ONE), f.vault.Shares().TotalShares())
}

func TestSequentialWithdrawalsNeverStrandThePosition(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	depositors := []types.Account{alice, bob, carol}
	for _, d := range depositors {
		_, err := f.vault.Deposit(ctx, d, sdkmath.NewInt(100*ONE))
		require.NoError(t, err)
	}
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -100, 100))

	for _, d := range depositors {
		_, err := f.vault.Withdraw(ctx, d)
		require.NoError(t, err, "withdrawal for %s must not fail", d)
	}

	assert.True(t, f.vault.Shares().TotalShares().IsZero())
	assert.False(t, f.vault.InPosition())
	assert.True(t, f.vault.IdleBalances().IsZero())

	// All value settled back to the depositors.
	totalBack := sdkmath.ZeroInt()
	for _, d := range depositors {
		totalBack = totalBack.Add(f.bank.Balance(d, usdc))
	}
	assert.Equal(t, sdkmath.NewInt(3*1000*ONE), totalBack)
}

func TestShareSupplyInvariantAcrossOperations(t *testing.T) {
	f := newFixture(t, 50_000)
	ctx := context.Background()

	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(123_457))
	require.NoError(t, err)
	_, err = f.vault.Deposit(ctx, bob, sdkmath.NewInt(987_651))
	require.NoError(t, err)
	require.NoError(t, f.vault.Shares().CheckInvariant())

	_, err = f.vault.Withdraw(ctx, alice)
	require.NoError(t, err)
	require.NoError(t, f.vault.Shares().CheckInvariant())
}

func TestAddLiquidityRequiresManagerCapability(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(ONE))
	require.NoError(t, err)

	err = f.vault.AddLiquidity(ctx, alice, -100, 100)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestAddLiquidityTwiceIsInvalidState(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -100, 100))

	err = f.vault.AddLiquidity(ctx, manager, -200, 200)
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestPositionOperationsRequireOpenPosition(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	assert.ErrorIs(t, f.vault.UpdatePosition(ctx, manager, -10, 10), types.ErrInvalidState)
	assert.ErrorIs(t, f.vault.ReAddLiquidity(ctx, manager), types.ErrInvalidState)
	assert.ErrorIs(t, f.vault.RemoveLiquidity(ctx, manager), types.ErrInvalidState)
}

func TestAddLiquidityOutOfRangeIsSingleSided(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)

	// price tick 0 sits below [100, 200]; accepted, not an error
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, 100, 200))
	assert.True(t, f.vault.InPosition())
}

func TestUpdatePositionMovesRange(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -100, 100))

	require.NoError(t, f.vault.UpdatePosition(ctx, manager, -300, 300))

	require.NotNil(t, f.vault.TickRange())
	assert.Equal(t, types.TickRange{Lower: -300, Upper: 300}, *f.vault.TickRange())
	assert.True(t, f.vault.InPosition())
}

func TestReAddLiquidityShrinksIdleDust(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -100, 100))

	for i := 0; i < 8; i++ {
		idleBefore := f.vault.IdleBalances().AmountOf(usdc)
		if idleBefore.IsZero() {
			break
		}
		require.NoError(t, f.vault.ReAddLiquidity(ctx, manager))
		idleAfter := f.vault.IdleBalances().AmountOf(usdc)
		assert.True(t, idleAfter.LT(idleBefore), "idle %s did not shrink from %s", idleAfter, idleBefore)
	}

	assert.True(t, f.vault.IdleBalances().AmountOf(usdc).LTE(sdkmath.NewInt(1)))
}

func TestReAddLiquiditySweepsHarvestedFees(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -100, 100))

	// burn the deposit dust down first so only fees remain to sweep
	for i := 0; i < 8; i++ {
		if f.vault.IdleBalances().IsZero() {
			break
		}
		require.NoError(t, f.vault.ReAddLiquidity(ctx, manager))
	}

	fees := sdk.NewCoins(sdk.NewCoin(usdc, sdkmath.NewInt(5000)))
	require.NoError(t, f.market.AccrueFees(1, fees))
	// the fee-credit hook keeps the custody account in step
	assert.Equal(t, sdkmath.NewInt(100*ONE+5000), f.bank.Balance(vaultAccount, usdc))

	heldBefore := f.market.Held(1).AmountOf(usdc)
	require.NoError(t, f.vault.ReAddLiquidity(ctx, manager))

	assert.True(t, f.market.Held(1).AmountOf(usdc).GT(heldBefore))
}

func TestRemoveLiquidityReturnsFundsToIdle(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -100, 100))

	require.NoError(t, f.vault.RemoveLiquidity(ctx, manager))

	assert.False(t, f.vault.InPosition())
	assert.Equal(t, sdkmath.NewInt(100*ONE), f.vault.IdleBalances().AmountOf(usdc))
}

func TestSetFeeValidation(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	// admin can move the fee up to the cap
	require.NoError(t, f.vault.SetFee(ctx, admin, 100_000, feeReceiver))

	err := f.vault.SetFee(ctx, admin, 100_001, feeReceiver)
	assert.ErrorIs(t, err, types.ErrInvalidEntry)

	err = f.vault.SetFee(ctx, admin, 1000, types.AccountNone)
	assert.ErrorIs(t, err, types.ErrInvalidEntry)

	err = f.vault.SetFee(ctx, alice, 1000, feeReceiver)
	assert.ErrorIs(t, err, types.ErrUnauthorized)
}

func TestUpdatePositionToUninvestableRangeRestoresState(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -100, 100))
	idleBefore := f.vault.IdleBalances()

	// The vault holds only the base asset; a range entirely below the
	// price wants only the quote asset, so the fresh open cannot invest.
	err = f.vault.UpdatePosition(ctx, manager, -200, -100)

	require.Error(t, err)
	assert.True(t, f.vault.InPosition(), "failed move must not leave the vault out of position")
	require.NotNil(t, f.vault.TickRange())
	assert.Equal(t, types.TickRange{Lower: -100, Upper: 100}, *f.vault.TickRange())
	assert.Equal(t, sdkmath.NewInt(100*ONE), f.vault.Shares().TotalShares())
	assert.Equal(t, idleBefore, f.vault.IdleBalances())
	assert.Equal(t, sdkmath.NewInt(90*ONE), f.market.Held(f.vault.PositionID()).AmountOf(usdc))
}

func TestWithdrawReopenFailureRestoresPosition(t *testing.T) {
	var faulty *faultyMarket
	f := newFixtureWithMarket(t, 0, func(s *market.Sim) market.Market {
		faulty = &faultyMarket{Sim: s}
		return faulty
	})
	ctx := context.Background()

	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(300*ONE))
	require.NoError(t, err)
	_, err = f.vault.Deposit(ctx, bob, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -500, 500))

	faulty.failOpens = 1
	_, err = f.vault.Withdraw(ctx, bob)

	require.Error(t, err)
	// nothing paid, nothing burned, the position back in its range
	assert.True(t, f.vault.InPosition())
	require.NotNil(t, f.vault.TickRange())
	assert.Equal(t, types.TickRange{Lower: -500, Upper: 500}, *f.vault.TickRange())
	assert.Equal(t, sdkmath.NewInt(100*ONE), f.vault.Shares().BalanceOf(bob))
	assert.Equal(t, sdkmath.NewInt(900*ONE), f.bank.Balance(bob, usdc))
	assert.Equal(t, sdkmath.NewInt(400*ONE), f.bank.Balance(vaultAccount, usdc))

	// with the venue healthy again the withdrawal settles normally
	payout, err := f.vault.Withdraw(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(100*ONE), payout.AmountOf(usdc))
	assert.Equal(t, sdkmath.NewInt(1000*ONE), f.bank.Balance(bob, usdc))
}

func TestWithdrawReopenFailureParksFundsWhenRestoreFails(t *testing.T) {
	var faulty *faultyMarket
	f := newFixtureWithMarket(t, 0, func(s *market.Sim) market.Market {
		faulty = &faultyMarket{Sim: s}
		return faulty
	})
	ctx := context.Background()

	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(300*ONE))
	require.NoError(t, err)
	_, err = f.vault.Deposit(ctx, bob, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -500, 500))

	// both the re-open and the compensating restore are rejected
	faulty.failOpens = 2
	_, err = f.vault.Withdraw(ctx, bob)

	require.Error(t, err)
	// shares and bank balances untouched; all value parked idle
	assert.Equal(t, sdkmath.NewInt(100*ONE), f.vault.Shares().BalanceOf(bob))
	assert.Equal(t, sdkmath.NewInt(400*ONE), f.vault.Shares().TotalShares())
	assert.Equal(t, sdkmath.NewInt(900*ONE), f.bank.Balance(bob, usdc))
	assert.False(t, f.vault.InPosition())
	assert.Equal(t, sdkmath.NewInt(400*ONE), f.vault.IdleBalances().AmountOf(usdc))

	// the parked funds stay withdrawable
	payout, err := f.vault.Withdraw(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(100*ONE), payout.AmountOf(usdc))
	assert.Equal(t, sdkmath.NewInt(1000*ONE), f.bank.Balance(bob, usdc))
}

func TestReAddLiquidityOpenFailureKeepsRangeAndShares(t *testing.T) {
	var faulty *faultyMarket
	f := newFixtureWithMarket(t, 0, func(s *market.Sim) market.Market {
		faulty = &faultyMarket{Sim: s}
		return faulty
	})
	ctx := context.Background()

	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(100*ONE))
	require.NoError(t, err)
	require.NoError(t, f.vault.AddLiquidity(ctx, manager, -100, 100))

	fees := sdk.NewCoins(sdk.NewCoin(usdc, sdkmath.NewInt(5000)))
	require.NoError(t, f.market.AccrueFees(f.vault.PositionID(), fees))

	faulty.failOpens = 1
	err = f.vault.ReAddLiquidity(ctx, manager)

	require.Error(t, err)
	assert.True(t, f.vault.InPosition())
	require.NotNil(t, f.vault.TickRange())
	assert.Equal(t, types.TickRange{Lower: -100, Upper: 100}, *f.vault.TickRange())
	assert.Equal(t, sdkmath.NewInt(100*ONE), f.vault.Shares().TotalShares())
	// harvested coins are real custody and stay accounted idle
	assert.Equal(t, sdkmath.NewInt(10*ONE+5000), f.vault.IdleBalances().AmountOf(usdc))
	assert.Equal(t, sdkmath.NewInt(100*ONE+5000), f.bank.Balance(vaultAccount, usdc))
}

func TestReadAccessorsSafeDuringOperations(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = f.vault.Summarize()
			_ = f.vault.IdleBalances()
			_ = f.vault.InPosition()
			_ = f.vault.Shares().TotalShares()
		}
	}()

	for i := 0; i < 50; i++ {
		_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(ONE))
		require.NoError(t, err)
	}
	<-done

	assert.Equal(t, sdkmath.NewInt(50*ONE), f.vault.Shares().BalanceOf(alice))
}

func TestWithdrawEventCarriesBurnedShares(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	_, err := f.vault.Deposit(ctx, alice, sdkmath.NewInt(42*ONE))
	require.NoError(t, err)

	_, err = f.vault.Withdraw(ctx, alice)
	require.NoError(t, err)

	require.Len(t, f.sink.withdrawals, 1)
	assert.Equal(t, alice, f.sink.withdrawals[0].Account)
	assert.Equal(t, sdkmath.NewInt(42*ONE), f.sink.withdrawals[0].Shares)
}
