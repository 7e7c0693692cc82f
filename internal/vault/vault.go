/*

The vault owns one concentrated-liquidity position in an external market,
a share ledger for its depositors, and the deposit-fee configuration.
Every entry point is serialized behind an in-progress guard; a failed call
leaves the share ledger, idle balances, and tick range unchanged.

*/

package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/clvm/internal/auth"
	"github.com/elys-network/clvm/internal/bank"
	"github.com/elys-network/clvm/internal/ledger"
	"github.com/elys-network/clvm/internal/logger"
	"github.com/elys-network/clvm/internal/market"
	"github.com/elys-network/clvm/internal/oracle"
	"github.com/elys-network/clvm/internal/types"
	"github.com/elys-network/clvm/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrOperationInProgress = errors.New("another operation is in progress")
	ErrNothingToInvest     = errors.New("no idle balance to invest")
	ErrDepositTooSmall     = errors.New("deposit too small to mint shares")
	ErrFeeAboveCap         = errors.New("deposit fee exceeds the configured cap")
)

// DefaultMaxDepositFeeBps caps the deposit fee at 10% unless configuration
// overrides it.
const DefaultMaxDepositFeeBps = uint32(100_000)

// Config holds the static configuration of a vault instance.
type Config struct {
	MarketID         string
	Account          types.Account // the vault's custody account
	AccountingDenom  string
	PairedDenom      string
	DepositFeeBps    uint32
	FeeReceiver      types.Account
	MaxDepositFeeBps uint32 // zero means DefaultMaxDepositFeeBps
}

// Deps are the external collaborators injected into the vault.
type Deps struct {
	Market     market.Market
	Oracle     oracle.PriceOracle
	Authorizer auth.Authorizer
	Bank       bank.Bank
	Sink       types.EventSink // optional, defaults to NopSink
}

// Vault is the position state machine and share ledger for one market.
type Vault struct {
	mu         sync.Mutex
	inProgress bool

	marketID  string
	account   types.Account
	denom0    string
	denom1    string
	feeBps    uint32
	feeTo     types.Account
	maxFeeBps uint32

	shares     *ledger.ShareLedger
	idle       sdk.Coins
	tickRange  *types.TickRange
	positionID uint64

	market market.Market
	oracle oracle.PriceOracle
	authz  auth.Authorizer
	bank   bank.Bank
	sink   types.EventSink
	logger zerolog.Logger
}

// New validates the configuration and collaborators and returns an empty
// vault (no position, zero shares).
func New(cfg Config, deps Deps) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("vault configuration validation failed: %w", err)
	}
	if err := validateDeps(deps); err != nil {
		return nil, fmt.Errorf("vault dependency validation failed: %w", err)
	}

	maxFee := cfg.MaxDepositFeeBps
	if maxFee == 0 {
		maxFee = DefaultMaxDepositFeeBps
	}
	if cfg.DepositFeeBps > maxFee {
		return nil, fmt.Errorf("%w: %d > %d", ErrFeeAboveCap, cfg.DepositFeeBps, maxFee)
	}

	sink := deps.Sink
	if sink == nil {
		sink = types.NopSink{}
	}

	v := &Vault{
		marketID:  cfg.MarketID,
		account:   cfg.Account,
		denom0:    cfg.AccountingDenom,
		denom1:    cfg.PairedDenom,
		feeBps:    cfg.DepositFeeBps,
		feeTo:     cfg.FeeReceiver,
		maxFeeBps: maxFee,
		shares:    ledger.NewShareLedger(),
		idle:      sdk.NewCoins(),
		market:    deps.Market,
		oracle:    deps.Oracle,
		authz:     deps.Authorizer,
		bank:      deps.Bank,
		sink:      sink,
		logger:    logger.GetForComponent("vault_core"),
	}

	v.logger.Info().
		Str("marketId", cfg.MarketID).
		Str("account", string(cfg.Account)).
		Uint32("depositFeeBps", cfg.DepositFeeBps).
		Msg("Vault initialized")

	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.MarketID == "" {
		return errors.New("market ID cannot be empty")
	}
	if cfg.Account.IsNone() {
		return errors.New("vault account cannot be empty")
	}
	if cfg.AccountingDenom == "" || cfg.PairedDenom == "" {
		return errors.New("asset denoms cannot be empty")
	}
	if cfg.AccountingDenom == cfg.PairedDenom {
		return errors.New("asset denoms must differ")
	}
	if cfg.DepositFeeBps > 0 && cfg.FeeReceiver.IsNone() {
		return errors.New("fee receiver required when deposit fee is set")
	}
	return nil
}

func validateDeps(deps Deps) error {
	if deps.Market == nil {
		return errors.New("market cannot be nil")
	}
	if deps.Oracle == nil {
		return errors.New("oracle cannot be nil")
	}
	if deps.Authorizer == nil {
		return errors.New("authorizer cannot be nil")
	}
	if deps.Bank == nil {
		return errors.New("bank cannot be nil")
	}
	return nil
}

// begin takes the operation guard. Every entry point pairs it with a
// deferred end so the guard is released on all exit paths.
func (v *Vault) begin() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.inProgress {
		return errors.Join(types.ErrInvalidState, ErrOperationInProgress)
	}
	v.inProgress = true
	return nil
}

func (v *Vault) end() {
	v.mu.Lock()
	v.inProgress = false
	v.mu.Unlock()
}

// setState runs fn under the state lock. Mutators are already serialized
// by the in-progress guard; this orders field writes against the read
// accessors the snapshot runner and web handlers call from other
// goroutines.
func (v *Vault) setState(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fn()
}

// restorePosition re-invests pool into the range the vault held before a
// failed move. The coins just came out of that range, so a conforming
// market accepts them back; if even this open fails the funds stay
// accounted idle.
func (v *Vault) restorePosition(ctx context.Context, r types.TickRange, pool sdk.Coins) error {
	used, pid, err := v.market.OpenPosition(ctx, r, pool)
	if err != nil {
		v.logger.Error().Err(err).
			Str("range", r.String()).
			Msg("Failed to restore prior position, funds parked idle")
		return err
	}

	v.setState(func() {
		v.idle = pool.Sub(used...)
		restored := r
		v.tickRange = &restored
		v.positionID = pid
	})

	v.logger.Warn().
		Str("range", r.String()).
		Str("reinvested", used.String()).
		Msg("Prior position restored after failed move")
	return nil
}

// Deposit transfers amount of the accounting asset from caller, pays the
// configured fee to the fee receiver, and mints shares at the oracle
// exchange rate against the amount net of fee.
func (v *Vault) Deposit(ctx context.Context, caller types.Account, amount sdkmath.Int) (sdkmath.Int, error) {
	if err := v.begin(); err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer v.end()

	if caller.IsNone() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidEntry, errors.New("caller account is empty"))
	}
	if amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidEntry, errors.New("deposit amount must be positive"))
	}
	if v.bank.Balance(caller, v.denom0).LT(amount) {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidEntry, errors.New("caller balance below deposit amount"))
	}

	fee, err := utils.BpsCut(amount, v.feeBps)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	net := amount.Sub(fee)

	// The oracle is the only fallible collaborator here; query it before
	// any funds move.
	price, err := v.oracle.ExchangeRate(ctx, v.marketID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if price.IsNil() || !price.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrOracleUnavailable, errors.New("exchange rate must be positive"))
	}

	minted := price.MulInt(net).TruncateInt()
	if !minted.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidEntry, ErrDepositTooSmall)
	}

	if fee.IsPositive() {
		if err := v.bank.Transfer(caller, v.feeTo, sdk.NewCoins(sdk.NewCoin(v.denom0, fee))); err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("fee transfer failed: %w", err)
		}
	}
	if err := v.bank.Transfer(caller, v.account, sdk.NewCoins(sdk.NewCoin(v.denom0, net))); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("principal transfer failed: %w", err)
	}

	if err := v.shares.Mint(caller, minted); err != nil {
		return sdkmath.ZeroInt(), err
	}
	v.setState(func() {
		v.idle = v.idle.Add(sdk.NewCoin(v.denom0, net))
	})

	event := types.DepositEvent{
		OpID:           uuid.New().String(),
		Account:        caller,
		Shares:         minted,
		AmountAfterFee: net,
		FeePaid:        fee,
		Timestamp:      time.Now().UTC(),
	}
	v.sink.DepositRecorded(event)

	v.logger.Info().
		Str("opId", event.OpID).
		Str("account", string(caller)).
		Str("shares", minted.String()).
		Str("amountAfterFee", net.String()).
		Msg("Deposit settled")

	return minted, nil
}

// Withdraw pays the caller their pro-rata entitlement of both assets and
// burns their full share balance. If a position is open it is exited
// first and the remainder is re-invested into the same tick range, unless
// the caller was the last holder.
func (v *Vault) Withdraw(ctx context.Context, caller types.Account) (sdk.Coins, error) {
	if err := v.begin(); err != nil {
		return nil, err
	}
	defer v.end()

	burned := v.shares.BalanceOf(caller)
	if !burned.IsPositive() {
		return nil, errors.Join(types.ErrInvalidEntry, errors.New("caller holds no shares"))
	}
	total := v.shares.TotalShares()

	// A position cannot be split by share fraction; exit it entirely and
	// settle from idle balances.
	oldRange := v.tickRange
	if oldRange != nil {
		closed, err := v.market.ClosePosition(ctx, v.positionID)
		if err != nil {
			return nil, fmt.Errorf("failed to exit position: %w", err)
		}
		v.setState(func() {
			v.idle = v.idle.Add(closed...)
			v.tickRange = nil
			v.positionID = 0
		})
	}

	payout := sdk.NewCoins()
	for _, held := range v.idle {
		cut, err := utils.ProRata(held.Amount, burned, total)
		if err != nil {
			return nil, err
		}
		if cut.IsPositive() {
			payout = payout.Add(sdk.NewCoin(held.Denom, cut))
		}
	}

	remainder := v.idle.Sub(payout...)
	remaining := total.Sub(burned)

	// Re-open the position for the remaining holders in the same range.
	if remaining.IsPositive() && oldRange != nil && !remainder.IsZero() {
		used, pid, err := v.market.OpenPosition(ctx, *oldRange, remainder)
		if err != nil {
			// Nothing has been paid or burned yet. Put the position back
			// the way it was so the failed call leaves no trace.
			if restoreErr := v.restorePosition(ctx, *oldRange, v.idle); restoreErr != nil {
				return nil, fmt.Errorf("failed to re-open position (funds parked idle): %w", err)
			}
			return nil, fmt.Errorf("failed to re-open position: %w", err)
		}
		v.setState(func() {
			v.idle = v.idle.Sub(used...)
			v.tickRange = oldRange
			v.positionID = pid
		})
	}

	if err := v.bank.Transfer(v.account, caller, payout); err != nil {
		return nil, fmt.Errorf("payout transfer failed: %w", err)
	}
	v.setState(func() {
		v.idle = v.idle.Sub(payout...)
	})

	if err := v.shares.Burn(caller, burned); err != nil {
		return nil, err
	}

	event := types.WithdrawEvent{
		OpID:      uuid.New().String(),
		Account:   caller,
		Shares:    burned,
		Payout:    payout,
		Timestamp: time.Now().UTC(),
	}
	v.sink.WithdrawRecorded(event)

	v.logger.Info().
		Str("opId", event.OpID).
		Str("account", string(caller)).
		Str("shares", burned.String()).
		Str("payout", payout.String()).
		Msg("Withdrawal settled")

	return payout, nil
}

// AddLiquidity invests the entire idle balance into the market across the
// given tick range. Valid only while no position is open.
func (v *Vault) AddLiquidity(ctx context.Context, caller types.Account, lower, upper int32) error {
	if err := v.requireManager(caller); err != nil {
		return err
	}
	if err := v.begin(); err != nil {
		return err
	}
	defer v.end()

	if v.tickRange != nil {
		return errors.Join(types.ErrInvalidState, fmt.Errorf("position already open in range %s", v.tickRange))
	}
	r := types.TickRange{Lower: lower, Upper: upper}
	if err := r.Validate(); err != nil {
		return errors.Join(types.ErrInvalidEntry, err)
	}
	if v.idle.IsZero() {
		return errors.Join(types.ErrInvalidEntry, ErrNothingToInvest)
	}

	used, pid, err := v.market.OpenPosition(ctx, r, v.idle)
	if err != nil {
		return fmt.Errorf("failed to open position: %w", err)
	}

	v.setState(func() {
		v.idle = v.idle.Sub(used...)
		v.tickRange = &r
		v.positionID = pid
	})

	v.logger.Info().
		Str("range", r.String()).
		Str("invested", used.String()).
		Str("idleRemainder", v.idle.String()).
		Msg("Liquidity added")

	return nil
}

// UpdatePosition atomically moves the full position into a new tick range.
// Valid only while a position is open.
func (v *Vault) UpdatePosition(ctx context.Context, caller types.Account, lower, upper int32) error {
	if err := v.requireManager(caller); err != nil {
		return err
	}
	if err := v.begin(); err != nil {
		return err
	}
	defer v.end()

	if v.tickRange == nil {
		return errors.Join(types.ErrInvalidState, errors.New("no open position to update"))
	}
	r := types.TickRange{Lower: lower, Upper: upper}
	if err := r.Validate(); err != nil {
		return errors.Join(types.ErrInvalidEntry, err)
	}

	oldRange := *v.tickRange

	closed, err := v.market.ClosePosition(ctx, v.positionID)
	if err != nil {
		return fmt.Errorf("failed to exit position: %w", err)
	}
	pool := v.idle.Add(closed...)
	v.setState(func() {
		v.idle = pool
		v.tickRange = nil
		v.positionID = 0
	})

	used, pid, err := v.market.OpenPosition(ctx, r, pool)
	if err != nil {
		// The move failed before anything settled; put the position back
		// into its prior range so the failed call leaves no trace.
		if restoreErr := v.restorePosition(ctx, oldRange, pool); restoreErr != nil {
			return fmt.Errorf("failed to open new range (funds parked idle): %w", err)
		}
		return fmt.Errorf("failed to open new range: %w", err)
	}

	v.setState(func() {
		v.idle = pool.Sub(used...)
		v.tickRange = &r
		v.positionID = pid
	})

	v.logger.Info().
		Str("range", r.String()).
		Str("invested", used.String()).
		Msg("Position range updated")

	return nil
}

// ReAddLiquidity harvests accrued market dust and re-invests it, together
// with any idle remainder, into the existing tick range. Valid only while
// a position is open.
func (v *Vault) ReAddLiquidity(ctx context.Context, caller types.Account) error {
	if err := v.requireManager(caller); err != nil {
		return err
	}
	if err := v.begin(); err != nil {
		return err
	}
	defer v.end()

	if v.tickRange == nil {
		return errors.Join(types.ErrInvalidState, errors.New("no open position to top up"))
	}

	harvested, err := v.market.HarvestIdle(ctx, v.positionID)
	if err != nil {
		return fmt.Errorf("failed to harvest idle dust: %w", err)
	}
	pool := v.idle.Add(harvested...)
	if pool.IsZero() {
		return errors.Join(types.ErrInvalidEntry, ErrNothingToInvest)
	}
	v.setState(func() {
		v.idle = pool
	})

	used, _, err := v.market.OpenPosition(ctx, *v.tickRange, pool)
	if err != nil {
		// The position stays open; harvested coins stay accounted as idle.
		return fmt.Errorf("failed to re-invest into range %s: %w", v.tickRange, err)
	}
	v.setState(func() {
		v.idle = pool.Sub(used...)
	})

	v.logger.Info().
		Str("range", v.tickRange.String()).
		Str("invested", used.String()).
		Str("idleRemainder", v.idle.String()).
		Msg("Idle dust re-invested")

	return nil
}

// RemoveLiquidity exits the entire position into idle balances. Valid
// only while a position is open.
func (v *Vault) RemoveLiquidity(ctx context.Context, caller types.Account) error {
	if err := v.requireManager(caller); err != nil {
		return err
	}
	if err := v.begin(); err != nil {
		return err
	}
	defer v.end()

	if v.tickRange == nil {
		return errors.Join(types.ErrInvalidState, errors.New("no open position to remove"))
	}

	closed, err := v.market.ClosePosition(ctx, v.positionID)
	if err != nil {
		return fmt.Errorf("failed to exit position: %w", err)
	}

	v.setState(func() {
		v.idle = v.idle.Add(closed...)
		v.tickRange = nil
		v.positionID = 0
	})

	v.logger.Info().Str("returned", closed.String()).Msg("Liquidity removed")
	return nil
}

// SetFee updates the deposit fee and its receiver. Admin capability
// required; the fee is bounded by the configured policy cap.
func (v *Vault) SetFee(_ context.Context, caller types.Account, feeBps uint32, receiver types.Account) error {
	if !v.authz.HasCapability(caller, auth.CapabilityAdmin) {
		return errors.Join(types.ErrUnauthorized, fmt.Errorf("account %s lacks %s", caller, auth.CapabilityAdmin))
	}
	if err := v.begin(); err != nil {
		return err
	}
	defer v.end()

	if feeBps > v.maxFeeBps {
		return errors.Join(types.ErrInvalidEntry, fmt.Errorf("%w: %d > %d", ErrFeeAboveCap, feeBps, v.maxFeeBps))
	}
	if feeBps > 0 && receiver.IsNone() {
		return errors.Join(types.ErrInvalidEntry, errors.New("fee receiver required when fee is set"))
	}

	v.setState(func() {
		v.feeBps = feeBps
		v.feeTo = receiver
	})

	v.logger.Info().
		Uint32("depositFeeBps", feeBps).
		Str("feeReceiver", string(receiver)).
		Msg("Deposit fee updated")

	return nil
}

func (v *Vault) requireManager(caller types.Account) error {
	if !v.authz.HasCapability(caller, auth.CapabilityManager) {
		return errors.Join(types.ErrUnauthorized, fmt.Errorf("account %s lacks %s", caller, auth.CapabilityManager))
	}
	return nil
}

// Shares exposes the share ledger for read-side collaborators (the reward
// engine computes pro-rata weights from it).
func (v *Vault) Shares() *ledger.ShareLedger {
	return v.shares
}

// PositionID returns the market's identifier for the open position, zero
// when out of position.
func (v *Vault) PositionID() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tickRange == nil {
		return 0
	}
	return v.positionID
}

// InPosition reports whether a market position is currently open.
func (v *Vault) InPosition() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tickRange != nil
}

// TickRange returns a copy of the active range, nil when out of position.
func (v *Vault) TickRange() *types.TickRange {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tickRange == nil {
		return nil
	}
	cp := *v.tickRange
	return &cp
}

// IdleBalances returns a copy of the balances held outside the position.
func (v *Vault) IdleBalances() sdk.Coins {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(sdk.Coins, len(v.idle))
	copy(out, v.idle)
	return out
}

// Summary is the read model served by the web API.
type Summary struct {
	MarketID      string           `json:"market_id"`
	TotalShares   sdkmath.Int      `json:"total_shares"`
	Holders       int              `json:"holders"`
	InPosition    bool             `json:"in_position"`
	TickRange     *types.TickRange `json:"tick_range,omitempty"`
	IdleBalances  sdk.Coins        `json:"idle_balances"`
	DepositFeeBps uint32           `json:"deposit_fee_bps"`
	FeeReceiver   types.Account    `json:"fee_receiver"`
}

// Summarize returns a point-in-time view of the vault. An operation in
// flight may be observed between its external call and its commit; the
// view is consistent, not transactional.
func (v *Vault) Summarize() Summary {
	v.mu.Lock()
	defer v.mu.Unlock()

	var tickRange *types.TickRange
	if v.tickRange != nil {
		cp := *v.tickRange
		tickRange = &cp
	}
	idle := make(sdk.Coins, len(v.idle))
	copy(idle, v.idle)

	return Summary{
		MarketID:      v.marketID,
		TotalShares:   v.shares.TotalShares(),
		Holders:       len(v.shares.Holders()),
		InPosition:    tickRange != nil,
		TickRange:     tickRange,
		IdleBalances:  idle,
		DepositFeeBps: v.feeBps,
		FeeReceiver:   v.feeTo,
	}
}
