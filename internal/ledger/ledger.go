/*

The share ledger maps accounts to minted vault shares and maintains the
total supply. The sum of all balances equals the total supply at all
times; Mint and Burn are the only mutation paths.

*/

package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clvm/internal/types"
)

var (
	ErrNilAmount          = errors.New("share amount is nil")
	ErrNonPositiveAmount  = errors.New("share amount must be positive")
	ErrInsufficientShares = errors.New("account holds fewer shares than requested")
	ErrNoAccount          = errors.New("account identifier is empty")
)

// ShareLedger tracks per-account share balances and the total supply.
// Safe for concurrent use; the reward engine and the web read side share
// the instance with the vault.
type ShareLedger struct {
	mu     sync.RWMutex
	total  sdkmath.Int
	shares map[types.Account]sdkmath.Int
}

// NewShareLedger returns an empty ledger.
func NewShareLedger() *ShareLedger {
	return &ShareLedger{
		total:  sdkmath.ZeroInt(),
		shares: make(map[types.Account]sdkmath.Int),
	}
}

// Mint credits amount shares to account and grows the total supply.
func (l *ShareLedger) Mint(account types.Account, amount sdkmath.Int) error {
	if account.IsNone() {
		return ErrNoAccount
	}
	if amount.IsNil() {
		return ErrNilAmount
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrNonPositiveAmount, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.shares[account]; ok {
		l.shares[account] = current.Add(amount)
	} else {
		l.shares[account] = amount
	}
	l.total = l.total.Add(amount)
	return nil
}

// Burn debits amount shares from account and shrinks the total supply.
// Accounts that reach zero are removed from the ledger.
func (l *ShareLedger) Burn(account types.Account, amount sdkmath.Int) error {
	if account.IsNone() {
		return ErrNoAccount
	}
	if amount.IsNil() {
		return ErrNilAmount
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrNonPositiveAmount, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.shares[account]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	if current.LT(amount) {
		return fmt.Errorf("%w: account %s holds %s, requested %s",
			ErrInsufficientShares, account, current, amount)
	}

	remaining := current.Sub(amount)
	if remaining.IsZero() {
		delete(l.shares, account)
	} else {
		l.shares[account] = remaining
	}
	l.total = l.total.Sub(amount)
	return nil
}

// BalanceOf returns the share balance of account, zero if unknown.
func (l *ShareLedger) BalanceOf(account types.Account) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if balance, ok := l.shares[account]; ok {
		return balance
	}
	return sdkmath.ZeroInt()
}

// TotalShares returns the total share supply.
func (l *ShareLedger) TotalShares() sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Holders returns every account with a positive balance, sorted for
// deterministic iteration during pro-rata splits.
func (l *ShareLedger) Holders() []types.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	holders := make([]types.Account, 0, len(l.shares))
	for account := range l.shares {
		holders = append(holders, account)
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i] < holders[j] })
	return holders
}

// Snapshot returns a deep copy of the ledger for rollback purposes.
func (l *ShareLedger) Snapshot() *ShareLedger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	copied := make(map[types.Account]sdkmath.Int, len(l.shares))
	for account, balance := range l.shares {
		copied[account] = balance
	}
	return &ShareLedger{total: l.total, shares: copied}
}

// Restore replaces the ledger contents with a previously taken snapshot.
func (l *ShareLedger) Restore(snapshot *ShareLedger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = snapshot.total
	l.shares = snapshot.shares
}

// CheckInvariant verifies that the sum of balances equals the total supply.
func (l *ShareLedger) CheckInvariant() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sum := sdkmath.ZeroInt()
	for account, balance := range l.shares {
		if balance.IsNil() || !balance.IsPositive() {
			return fmt.Errorf("account %s holds non-positive balance %s", account, balance)
		}
		sum = sum.Add(balance)
	}
	if !sum.Equal(l.total) {
		return fmt.Errorf("balance sum %s does not match total supply %s", sum, l.total)
	}
	return nil
}
