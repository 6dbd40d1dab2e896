// Package ledger records claimed amounts and computes the payable delta of
// each claim. Reads and the commit for one ledger entry are serialized by a
// per-entry lock; different pools and different accounts proceed in parallel.
package ledger

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// Commit is the outcome of a successful claim.
type Commit struct {
	Delta        sdkmath.Int // amount released by this claim
	AccountTotal sdkmath.Int // entry claimed total after the claim
	PoolTotal    sdkmath.Int // pool-wide claimed total after the claim
}

// Ledger serializes claims per entry over a storage.LedgerStore.
type Ledger struct {
	store storage.LedgerStore
	locks *keyedMutex
	caps  capEnforcer
}

// New creates a ledger backed by store.
func New(store storage.LedgerStore) *Ledger {
	return &Ledger{
		store: store,
		locks: newKeyedMutex(),
		caps:  capEnforcer{store: store},
	}
}

// Payer delivers a committed delta. It runs while the entry lock is held; an
// error reverts the commit so the claim leaves no trace.
type Payer func(ctx context.Context, delta sdkmath.Int) error

// conflictRetries bounds re-reads after a compare-and-swap conflict. The
// entry lock only serializes this process; another writer on a shared store
// can still move the counter between read and commit.
const conflictRetries = 1

// ClaimFixed pays the difference between unlocked and what the pool already
// claimed. Returns domain.ErrNoClaimable when nothing new has unlocked.
// A nil pay commits without a payout.
func (l *Ledger) ClaimFixed(ctx context.Context, pool domain.Pool, unlocked sdkmath.Int, pay Payer) (Commit, error) {
	unlock := l.locks.Lock(fixedKey(pool))
	defer unlock()

	var (
		claimed sdkmath.Int
		err     error
	)
	for attempt := 0; ; attempt++ {
		claimed, err = l.store.PoolClaimed(ctx, pool)
		if err != nil {
			return Commit{}, fmt.Errorf("read %s claimed: %w", pool, err)
		}
		if !unlocked.Sub(claimed).IsPositive() {
			return Commit{}, domain.ErrNoClaimable
		}

		err = l.store.CommitPool(ctx, pool, claimed, unlocked)
		if errors.Is(err, storage.ErrConflict) && attempt < conflictRetries {
			continue
		}
		if err != nil {
			return Commit{}, fmt.Errorf("commit %s claim: %w", pool, err)
		}
		break
	}

	delta := unlocked.Sub(claimed)
	if pay != nil {
		if err := pay(ctx, delta); err != nil {
			if rerr := l.store.RevertPool(ctx, pool, unlocked, claimed); rerr != nil {
				return Commit{}, fmt.Errorf("%w (revert %s claim: %v)", err, pool, rerr)
			}
			return Commit{}, err
		}
	}

	return Commit{Delta: delta, AccountTotal: unlocked, PoolTotal: unlocked}, nil
}

// ClaimAccount pays an account the difference between its unlocked share and
// what it already claimed, bounded by the pool-wide cap. Returns
// domain.ErrNoClaimable or domain.ErrPoolExhausted without mutating anything.
// A nil pay commits without a payout.
func (l *Ledger) ClaimAccount(ctx context.Context, pool domain.Pool, account common.Address, unlocked, poolCap sdkmath.Int, pay Payer) (Commit, error) {
	unlock := l.locks.Lock(accountKey(pool, account))
	defer unlock()

	var (
		delta sdkmath.Int
		total sdkmath.Int
	)
	for attempt := 0; ; attempt++ {
		claimed, err := l.store.AccountClaimed(ctx, pool, account)
		if err != nil {
			return Commit{}, fmt.Errorf("read %s claimed for %s: %w", pool, account.Hex(), err)
		}

		delta = unlocked.Sub(claimed)
		if !delta.IsPositive() {
			return Commit{}, domain.ErrNoClaimable
		}

		if err := l.caps.check(ctx, pool, delta, poolCap); err != nil {
			return Commit{}, err
		}

		total, err = l.store.CommitAccount(ctx, pool, account, claimed, delta, poolCap)
		if errors.Is(err, storage.ErrConflict) && attempt < conflictRetries {
			continue
		}
		if err != nil {
			// Another account may have taken the remaining headroom since check.
			if errors.Is(err, storage.ErrCapExceeded) {
				return Commit{}, domain.ErrPoolExhausted
			}
			return Commit{}, fmt.Errorf("commit %s claim for %s: %w", pool, account.Hex(), err)
		}
		break
	}

	if pay != nil {
		if err := pay(ctx, delta); err != nil {
			if rerr := l.store.RevertAccount(ctx, pool, account, unlocked, delta); rerr != nil {
				return Commit{}, fmt.Errorf("%w (revert %s claim for %s: %v)", err, pool, account.Hex(), rerr)
			}
			return Commit{}, err
		}
	}

	return Commit{Delta: delta, AccountTotal: unlocked, PoolTotal: total}, nil
}

// Pending returns what a claim would pay right now without committing.
// Zero means the claim would fail with domain.ErrNoClaimable.
func (l *Ledger) Pending(ctx context.Context, pool domain.Pool, account *common.Address, unlocked sdkmath.Int) (sdkmath.Int, error) {
	var (
		claimed sdkmath.Int
		err     error
	)
	if account == nil {
		claimed, err = l.store.PoolClaimed(ctx, pool)
	} else {
		claimed, err = l.store.AccountClaimed(ctx, pool, *account)
	}
	if err != nil {
		return sdkmath.Int{}, err
	}

	delta := unlocked.Sub(claimed)
	if !delta.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	return delta, nil
}

// PoolClaimed returns the pool-wide claimed total.
func (l *Ledger) PoolClaimed(ctx context.Context, pool domain.Pool) (sdkmath.Int, error) {
	return l.store.PoolClaimed(ctx, pool)
}

// AccountClaimed returns what an account has claimed from a sale pool.
func (l *Ledger) AccountClaimed(ctx context.Context, pool domain.Pool, account common.Address) (sdkmath.Int, error) {
	return l.store.AccountClaimed(ctx, pool, account)
}

func fixedKey(pool domain.Pool) string {
	return string(pool)
}

func accountKey(pool domain.Pool, account common.Address) string {
	return string(pool) + "/" + account.Hex()
}
