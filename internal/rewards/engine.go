/*

The reward engine splits harvested revenue across a fixed hierarchy: an
exclusive-manager cut off the top, a receiver cut converted to the
reference payout asset, and the rest credited pro-rata to shareholders as
pending balances. Every distribution is a one-shot sweep of the engine's
current balance; integer-division dust stays in the pool and rolls into
the next sweep.

*/

package rewards

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
	"github.com/elys-network/clvm/internal/logger"
	"github.com/elys-network/clvm/internal/types"
	"github.com/elys-network/clvm/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrNothingToDistribute = errors.New("no distributable balance")
	ErrNothingToCollect    = errors.New("no pending rewards")
	ErrPctAboveMax         = errors.New("percentage exceeds MaxPct")
	ErrAccountRequired     = errors.New("account required for a non-zero percentage")
)

// ShareSource is the read side of the vault share ledger the engine
// computes pro-rata weights from.
type ShareSource interface {
	TotalShares() sdkmath.Int
	BalanceOf(account types.Account) sdkmath.Int
	Holders() []types.Account
}

// Converter swaps the receiver cut into the reference payout asset. in is
// debited from the from account; the converted amount is credited to the
// to account. A result below minOut must fail the conversion with
// types.ErrSlippageExceeded and no funds moved.
type Converter interface {
	Convert(ctx context.Context, from, to types.Account, in sdk.Coin, minOut sdkmath.Int) (sdk.Coin, error)
}

// Config holds the static configuration of the engine.
type Config struct {
	Account         types.Account // the engine's revenue pool account
	AccountingDenom string
}

// Deps are the collaborators injected into the engine.
type Deps struct {
	Bank       bank.Bank
	Authorizer auth.Authorizer
	Shares     ShareSource
	Converter  Converter
	Sink       types.EventSink // optional, defaults to NopSink
}

// tier is one configured beneficiary.
type tier struct {
	account types.Account
	pct     uint32
}

// Engine owns the pending-balance ledger and the tiered split.
type Engine struct {
	mu sync.Mutex

	account types.Account
	denom   string

	exclusiveManager tier
	receiver         tier

	// pending balances remain bank-held in the engine account until
	// collected; pendingTotal keeps the owed sum out of the next sweep.
	pending      map[types.Account]sdkmath.Int
	pendingTotal sdkmath.Int

	bank      bank.Bank
	authz     auth.Authorizer
	shares    ShareSource
	converter Converter
	sink      types.EventSink
	logger    zerolog.Logger
}

// New validates configuration and collaborators and returns an engine
// with both tiers disabled.
func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.Account.IsNone() {
		return nil, errors.New("engine account cannot be empty")
	}
	if cfg.AccountingDenom == "" {
		return nil, errors.New("accounting denom cannot be empty")
	}
	if deps.Bank == nil {
		return nil, errors.New("bank cannot be nil")
	}
	if deps.Authorizer == nil {
		return nil, errors.New("authorizer cannot be nil")
	}
	if deps.Shares == nil {
		return nil, errors.New("share source cannot be nil")
	}
	if deps.Converter == nil {
		return nil, errors.New("converter cannot be nil")
	}

	sink := deps.Sink
	if sink == nil {
		sink = types.NopSink{}
	}

	return &Engine{
		account:      cfg.Account,
		denom:        cfg.AccountingDenom,
		pending:      make(map[types.Account]sdkmath.Int),
		pendingTotal: sdkmath.ZeroInt(),
		bank:         deps.Bank,
		authz:        deps.Authorizer,
		shares:       deps.Shares,
		converter:    deps.Converter,
		sink:         sink,
		logger:       logger.GetForComponent("reward_engine"),
	}, nil
}

// SetExclusiveManagerData configures the off-the-top manager tier. Admin
// capability required. AccountNone with pct zero disables the tier.
func (e *Engine) SetExclusiveManagerData(_ context.Context, caller, account types.Account, pct uint32) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := validateTier(account, pct); err != nil {
		return err
	}

	e.mu.Lock()
	e.exclusiveManager = tier{account: account, pct: pct}
	e.mu.Unlock()

	e.logger.Info().
		Str("account", string(account)).
		Uint32("pct", pct).
		Msg("Exclusive manager tier updated")
	return nil
}

// SetReceiverData configures the converted receiver tier. Admin
// capability required. AccountNone with pct zero disables the tier.
func (e *Engine) SetReceiverData(_ context.Context, caller, account types.Account, pct uint32) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := validateTier(account, pct); err != nil {
		return err
	}

	e.mu.Lock()
	e.receiver = tier{account: account, pct: pct}
	e.mu.Unlock()

	e.logger.Info().
		Str("account", string(account)).
		Uint32("pct", pct).
		Msg("Receiver tier updated")
	return nil
}

func validateTier(account types.Account, pct uint32) error {
	if pct > types.MaxPct {
		return errors.Join(types.ErrInvalidEntry, fmt.Errorf("%w: %d > %d", ErrPctAboveMax, pct, types.MaxPct))
	}
	if account.IsNone() && pct > 0 {
		return errors.Join(types.ErrInvalidEntry, ErrAccountRequired)
	}
	return nil
}

// DistributeRewards sweeps the engine's entire accounting-asset balance
// through the tier hierarchy. Manager capability required. minReceiverOut
// is the slippage floor for the receiver conversion; an unmet floor fails
// the whole call with nothing paid.
func (e *Engine) DistributeRewards(ctx context.Context, caller types.Account, minReceiverOut sdkmath.Int) error {
	if !e.authz.HasCapability(caller, auth.CapabilityManager) {
		return errors.Join(types.ErrUnauthorized, fmt.Errorf("account %s lacks %s", caller, auth.CapabilityManager))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	total := e.bank.Balance(e.account, e.denom).Sub(e.pendingTotal)
	if !total.IsPositive() {
		return errors.Join(types.ErrInvalidEntry, ErrNothingToDistribute)
	}

	exclusiveCut := sdkmath.ZeroInt()
	if !e.exclusiveManager.account.IsNone() {
		var err error
		exclusiveCut, err = utils.PctCut(total, e.exclusiveManager.pct)
		if err != nil {
			return err
		}
	}
	afterExclusive := total.Sub(exclusiveCut)

	receiverCut := sdkmath.ZeroInt()
	if !e.receiver.account.IsNone() {
		var err error
		receiverCut, err = utils.PctCut(afterExclusive, e.receiver.pct)
		if err != nil {
			return err
		}
	}
	forShareholders := afterExclusive.Sub(receiverCut)

	// Compute every shareholder credit before any funds move so a failure
	// below cannot leave a partial split behind.
	credits, credited, err := e.shareholderCredits(forShareholders)
	if err != nil {
		return err
	}

	// The conversion is the only fallible settlement step; run it first.
	if receiverCut.IsPositive() {
		in := sdk.NewCoin(e.denom, receiverCut)
		out, err := e.converter.Convert(ctx, e.account, e.receiver.account, in, minReceiverOut)
		if err != nil {
			return fmt.Errorf("receiver conversion failed: %w", err)
		}
		e.logger.Debug().
			Str("in", in.String()).
			Str("out", out.String()).
			Msg("Receiver cut converted")
	}

	if exclusiveCut.IsPositive() {
		coin := sdk.NewCoins(sdk.NewCoin(e.denom, exclusiveCut))
		if err := e.bank.Transfer(e.account, e.exclusiveManager.account, coin); err != nil {
			return fmt.Errorf("exclusive manager payout failed: %w", err)
		}
	}

	for account, credit := range credits {
		if current, ok := e.pending[account]; ok {
			e.pending[account] = current.Add(credit)
		} else {
			e.pending[account] = credit
		}
	}
	e.pendingTotal = e.pendingTotal.Add(credited)

	event := types.RewardsDistributedEvent{
		OpID:            uuid.New().String(),
		Total:           total,
		ExclusiveCut:    exclusiveCut,
		ReceiverCut:     receiverCut,
		ForShareholders: forShareholders,
		Timestamp:       time.Now().UTC(),
	}
	e.sink.RewardsDistributed(event)

	e.logger.Info().
		Str("opId", event.OpID).
		Str("total", total.String()).
		Str("exclusiveCut", exclusiveCut.String()).
		Str("receiverCut", receiverCut.String()).
		Str("forShareholders", forShareholders.String()).
		Str("dust", forShareholders.Sub(credited).String()).
		Msg("Rewards distributed")

	return nil
}

// shareholderCredits splits amount pro-rata over the current share
// snapshot. The floor rule leaves a remainder strictly below the total
// share count; it stays in the engine balance for the next sweep.
func (e *Engine) shareholderCredits(amount sdkmath.Int) (map[types.Account]sdkmath.Int, sdkmath.Int, error) {
	credits := make(map[types.Account]sdkmath.Int)
	credited := sdkmath.ZeroInt()

	totalShares := e.shares.TotalShares()
	if !totalShares.IsPositive() || !amount.IsPositive() {
		return credits, credited, nil
	}

	for _, holder := range e.shares.Holders() {
		cut, err := utils.ProRata(amount, e.shares.BalanceOf(holder), totalShares)
		if err != nil {
			return nil, sdkmath.ZeroInt(), err
		}
		if cut.IsPositive() {
			credits[holder] = cut
			credited = credited.Add(cut)
		}
	}
	return credits, credited, nil
}

// CollectRewards drains the caller's pending balance. A zero balance
// fails with ErrInvalidEntry rather than no-op succeeding.
func (e *Engine) CollectRewards(_ context.Context, caller types.Account) (sdkmath.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	amount, ok := e.pending[caller]
	if !ok || !amount.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(types.ErrInvalidEntry, ErrNothingToCollect)
	}

	coin := sdk.NewCoins(sdk.NewCoin(e.denom, amount))
	if err := e.bank.Transfer(e.account, caller, coin); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("reward payout failed: %w", err)
	}
	delete(e.pending, caller)
	e.pendingTotal = e.pendingTotal.Sub(amount)

	event := types.RewardsCollectedEvent{
		OpID:      uuid.New().String(),
		Account:   caller,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	}
	e.sink.RewardsCollected(event)

	e.logger.Info().
		Str("opId", event.OpID).
		Str("account", string(caller)).
		Str("amount", amount.String()).
		Msg("Rewards collected")

	return amount, nil
}

// PendingOf returns the unclaimed credited balance of an account.
func (e *Engine) PendingOf(account types.Account) sdkmath.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if amount, ok := e.pending[account]; ok {
		return amount
	}
	return sdkmath.ZeroInt()
}

func (e *Engine) requireAdmin(caller types.Account) error {
	if !e.authz.HasCapability(caller, auth.CapabilityAdmin) {
		return errors.Join(types.ErrUnauthorized, fmt.Errorf("account %s lacks %s", caller, auth.CapabilityAdmin))
	}
	return nil
}

// Summary is the read model served by the web API.
type Summary struct {
	ExclusiveManager    types.Account `json:"exclusive_manager"`
	ExclusiveManagerPct uint32        `json:"exclusive_manager_pct"`
	Receiver            types.Account `json:"receiver"`
	ReceiverPct         uint32        `json:"receiver_pct"`
	PoolBalance         sdkmath.Int   `json:"pool_balance"`
	PendingTotal        sdkmath.Int   `json:"pending_total"`
	PendingAccounts     int           `json:"pending_accounts"`
}

// Summarize returns a point-in-time view of the engine.
func (e *Engine) Summarize() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Summary{
		ExclusiveManager:    e.exclusiveManager.account,
		ExclusiveManagerPct: e.exclusiveManager.pct,
		Receiver:            e.receiver.account,
		ReceiverPct:         e.receiver.pct,
		PoolBalance:         e.bank.Balance(e.account, e.denom),
		PendingTotal:        e.pendingTotal,
		PendingAccounts:     len(e.pending),
	}
}
