/*

Deterministic in-memory market used by sim mode and the test suites. The
model keeps the behavior that matters to the vault: tick-range math cannot
invest 100% of arbitrary amounts, so every in-range add leaves a bounded
un-invested remainder that shrinks by an order of magnitude per re-add,
and a price outside the range degenerates to single-sided liquidity.

*/

package market

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvm/internal/logger"
	"github.com/elys-network/clvm/internal/types"
)

var (
	ErrUnknownPosition = errors.New("position does not exist")
	ErrRangeMismatch   = errors.New("tick range does not match the open position")
	ErrNoAmounts       = errors.New("no amounts to invest")
)

// residualDivisor controls the un-invested remainder of an in-range add:
// each asset leaves floor(amount/residualDivisor) behind.
const residualDivisor = 10

var simLogger = logger.GetForComponent("sim_market")

type simPosition struct {
	tickRange types.TickRange
	held      sdk.Coins
	accrued   sdk.Coins
}

// Sim implements Market for a single two-asset pool.
type Sim struct {
	denom0 string
	denom1 string

	currentTick int32
	nextID      uint64
	positions   map[uint64]*simPosition
	feeCredit   func(fees sdk.Coins) error
}

// NewSim returns a simulated market for the given asset pair with the
// price sitting at startTick.
func NewSim(denom0, denom1 string, startTick int32) *Sim {
	return &Sim{
		denom0:      denom0,
		denom1:      denom1,
		currentTick: startTick,
		nextID:      1,
		positions:   make(map[uint64]*simPosition),
	}
}

// SetTick moves the market price to a new tick.
func (s *Sim) SetTick(tick int32) {
	s.currentTick = tick
}

// SetFeeCredit registers a callback invoked with every fee accrual so the
// custody layer can credit the same coins to the position owner's account.
// Without it, AccrueFees only grows the position's accrued balance and the
// caller must keep the bank in step itself.
func (s *Sim) SetFeeCredit(credit func(fees sdk.Coins) error) {
	s.feeCredit = credit
}

// AccrueFees credits trading-fee revenue to an open position. It becomes
// visible to the vault through HarvestIdle or ClosePosition. The coins are
// also pushed through the SetFeeCredit callback when one is registered, so
// the owner's bank balance covers them once they settle.
func (s *Sim) AccrueFees(positionID uint64, fees sdk.Coins) error {
	pos, ok := s.positions[positionID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownPosition, positionID)
	}
	if s.feeCredit != nil {
		if err := s.feeCredit(fees); err != nil {
			return fmt.Errorf("fee credit failed: %w", err)
		}
	}
	pos.accrued = pos.accrued.Add(fees...)
	return nil
}

// OpenPosition implements Market.
func (s *Sim) OpenPosition(_ context.Context, r types.TickRange, amounts sdk.Coins) (sdk.Coins, uint64, error) {
	if err := r.Validate(); err != nil {
		return nil, 0, err
	}
	if amounts.IsZero() {
		return nil, 0, ErrNoAmounts
	}

	// At most one position exists; an add with the live range merges.
	for id, pos := range s.positions {
		if pos.tickRange != r {
			return nil, 0, fmt.Errorf("%w: open %s, requested %s", ErrRangeMismatch, pos.tickRange, r)
		}
		used := s.investable(r, amounts)
		pos.held = pos.held.Add(used...)
		return used, id, nil
	}

	used := s.investable(r, amounts)
	if used.IsZero() {
		return nil, 0, ErrNoAmounts
	}
	id := s.nextID
	s.nextID++
	s.positions[id] = &simPosition{tickRange: r, held: used}

	simLogger.Debug().
		Uint64("positionId", id).
		Str("range", r.String()).
		Str("used", used.String()).
		Msg("Opened simulated position")

	return used, id, nil
}

// investable computes how much of amounts the pool consumes for a range
// given the current tick.
func (s *Sim) investable(r types.TickRange, amounts sdk.Coins) sdk.Coins {
	amount0 := amounts.AmountOf(s.denom0)
	amount1 := amounts.AmountOf(s.denom1)

	switch {
	case s.currentTick < r.Lower:
		// Price below the range: single-sided, all base asset.
		return newCoins(s.denom0, amount0)
	case s.currentTick >= r.Upper:
		// Price above the range: single-sided, all quote asset.
		return newCoins(s.denom1, amount1)
	default:
		used0 := amount0.Sub(amount0.Quo(sdkmath.NewInt(residualDivisor)))
		used1 := amount1.Sub(amount1.Quo(sdkmath.NewInt(residualDivisor)))
		return newCoins(s.denom0, used0).Add(newCoins(s.denom1, used1)...)
	}
}

// ClosePosition implements Market.
func (s *Sim) ClosePosition(_ context.Context, positionID uint64) (sdk.Coins, error) {
	pos, ok := s.positions[positionID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownPosition, positionID)
	}
	out := pos.held.Add(pos.accrued...)
	delete(s.positions, positionID)

	simLogger.Debug().
		Uint64("positionId", positionID).
		Str("returned", out.String()).
		Msg("Closed simulated position")

	return out, nil
}

// HarvestIdle implements Market.
func (s *Sim) HarvestIdle(_ context.Context, positionID uint64) (sdk.Coins, error) {
	pos, ok := s.positions[positionID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownPosition, positionID)
	}
	out := pos.accrued
	pos.accrued = sdk.NewCoins()
	return out, nil
}

// Held returns the principal the position currently holds. Test hook.
func (s *Sim) Held(positionID uint64) sdk.Coins {
	if pos, ok := s.positions[positionID]; ok {
		return pos.held
	}
	return sdk.NewCoins()
}

func newCoins(denom string, amount sdkmath.Int) sdk.Coins {
	if amount.IsNil() || !amount.IsPositive() {
		return sdk.NewCoins()
	}
	return sdk.NewCoins(sdk.NewCoin(denom, amount))
}
