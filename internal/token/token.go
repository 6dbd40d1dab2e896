// Package token is a reference mint capability: an in-memory balance sheet
// whose total supply can never exceed a fixed maximum.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// ErrMaxSupplyExceeded is returned when a mint would pass the maximum supply.
var ErrMaxSupplyExceeded = errors.New("max supply exceeded")

// Ledger holds token balances.
type Ledger struct {
	mu        sync.RWMutex
	maxSupply sdkmath.Int
	supply    sdkmath.Int
	balances  map[common.Address]sdkmath.Int
}

// NewLedger creates an empty ledger capped at maxSupply.
func NewLedger(maxSupply sdkmath.Int) *Ledger {
	return &Ledger{
		maxSupply: maxSupply,
		supply:    sdkmath.ZeroInt(),
		balances:  make(map[common.Address]sdkmath.Int),
	}
}

// Mint credits amount to account.
func (l *Ledger) Mint(_ context.Context, account common.Address, amount sdkmath.Int) error {
	if !amount.IsPositive() {
		return fmt.Errorf("mint %s: amount must be positive", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.supply.Add(amount)
	if next.GT(l.maxSupply) {
		return fmt.Errorf("%w: minting %s onto %s", ErrMaxSupplyExceeded, amount, l.supply)
	}
	l.supply = next
	l.balances[account] = l.balanceLocked(account).Add(amount)
	return nil
}

// MaxSupply returns the supply ceiling.
func (l *Ledger) MaxSupply() sdkmath.Int {
	return l.maxSupply
}

// TotalSupply returns the amount minted so far.
func (l *Ledger) TotalSupply() sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply
}

// BalanceOf returns the balance of account.
func (l *Ledger) BalanceOf(account common.Address) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceLocked(account)
}

func (l *Ledger) balanceLocked(account common.Address) sdkmath.Int {
	b, ok := l.balances[account]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return b
}
