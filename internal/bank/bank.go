/*

Coin custody for the vault core. Bank is the collaborator through which
every settlement moves: deposit principal into the vault account, fees to
the fee receiver, reward payouts to beneficiaries and shareholders. The
in-memory implementation backs sim mode and the test suites.

*/

package bank

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/clvm/internal/types"
)

var (
	ErrNoAccount         = errors.New("account identifier is empty")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidCoins      = errors.New("coin set is invalid")
)

// Bank moves coins between accounts and reports balances.
type Bank interface {
	Transfer(from, to types.Account, coins sdk.Coins) error
	Balance(account types.Account, denom string) sdkmath.Int
	Balances(account types.Account) sdk.Coins
}

// Memory is an in-process Bank keeping balances in a map. Safe for
// concurrent use; the web read side queries balances while the vault and
// reward engine settle transfers.
type Memory struct {
	mu       sync.RWMutex
	balances map[types.Account]sdk.Coins
}

// NewMemory returns an empty in-memory bank.
func NewMemory() *Memory {
	return &Memory{balances: make(map[types.Account]sdk.Coins)}
}

// Mint credits coins to an account out of thin air. Wiring and test setup
// only; the vault core never mints.
func (m *Memory) Mint(account types.Account, coins sdk.Coins) error {
	if account.IsNone() {
		return ErrNoAccount
	}
	if err := coins.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCoins, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = m.balances[account].Add(coins...)
	return nil
}

// Transfer moves coins from one account to another, failing without any
// mutation when the source balance does not cover the amount.
func (m *Memory) Transfer(from, to types.Account, coins sdk.Coins) error {
	if from.IsNone() || to.IsNone() {
		return ErrNoAccount
	}
	if err := coins.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCoins, err)
	}
	if coins.IsZero() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.balances[from]
	if !held.IsAllGTE(coins) {
		return fmt.Errorf("%w: account %s holds %s, requested %s", ErrInsufficientFunds, from, held, coins)
	}

	m.balances[from] = held.Sub(coins...)
	m.balances[to] = m.balances[to].Add(coins...)
	return nil
}

// Balance returns the balance of a single denom, zero if unknown.
func (m *Memory) Balance(account types.Account, denom string) sdkmath.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[account].AmountOf(denom)
}

// Balances returns a copy of the full balance set of an account.
func (m *Memory) Balances(account types.Account) sdk.Coins {
	m.mu.RLock()
	defer m.mu.RUnlock()
	held := m.balances[account]
	out := make(sdk.Coins, len(held))
	copy(out, held)
	return out
}
