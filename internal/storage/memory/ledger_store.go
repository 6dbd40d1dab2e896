package memory

import (
	"context"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

type accountKey struct {
	pool    domain.Pool
	account common.Address
}

// LedgerStore is an in-memory implementation of storage.LedgerStore.
// sdkmath.Int values are immutable, so stored values are safe to hand out.
type LedgerStore struct {
	mu       sync.RWMutex
	pools    map[domain.Pool]sdkmath.Int
	accounts map[accountKey]sdkmath.Int
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		pools:    make(map[domain.Pool]sdkmath.Int),
		accounts: make(map[accountKey]sdkmath.Int),
	}
}

var _ storage.LedgerStore = (*LedgerStore)(nil)

// PoolClaimed returns the claimed total of a pool.
func (s *LedgerStore) PoolClaimed(_ context.Context, pool domain.Pool) (sdkmath.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.poolLocked(pool), nil
}

// AccountClaimed returns the amount an account has claimed from a sale pool.
func (s *LedgerStore) AccountClaimed(_ context.Context, pool domain.Pool, account common.Address) (sdkmath.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.accounts[accountKey{pool, account}]
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	return v, nil
}

// CommitPool moves a fixed pool counter from prev to next.
func (s *LedgerStore) CommitPool(_ context.Context, pool domain.Pool, prev, next sdkmath.Int) error {
	if next.LT(prev) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.poolLocked(pool).Equal(prev) {
		return storage.ErrConflict
	}
	s.pools[pool] = next
	return nil
}

// CommitAccount adds delta to an account counter and to the pool total.
func (s *LedgerStore) CommitAccount(_ context.Context, pool domain.Pool, account common.Address, prev, delta, poolCap sdkmath.Int) (sdkmath.Int, error) {
	if !delta.IsPositive() {
		return sdkmath.Int{}, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey{pool, account}
	current, ok := s.accounts[key]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	if !current.Equal(prev) {
		return sdkmath.Int{}, storage.ErrConflict
	}

	total := s.poolLocked(pool).Add(delta)
	if total.GT(poolCap) {
		return sdkmath.Int{}, storage.ErrCapExceeded
	}

	s.accounts[key] = current.Add(delta)
	s.pools[pool] = total
	return total, nil
}

// RevertPool moves a fixed pool counter back from committed to prev.
func (s *LedgerStore) RevertPool(_ context.Context, pool domain.Pool, committed, prev sdkmath.Int) error {
	if !prev.LT(committed) || prev.IsNegative() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.poolLocked(pool).Equal(committed) {
		return storage.ErrConflict
	}
	s.pools[pool] = prev
	return nil
}

// RevertAccount takes delta back from an account counter and the pool total.
func (s *LedgerStore) RevertAccount(_ context.Context, pool domain.Pool, account common.Address, committed, delta sdkmath.Int) error {
	if !delta.IsPositive() || delta.GT(committed) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey{pool, account}
	current, ok := s.accounts[key]
	if !ok || !current.Equal(committed) {
		return storage.ErrConflict
	}
	total := s.poolLocked(pool)
	if total.LT(delta) {
		return storage.ErrConflict
	}

	s.accounts[key] = current.Sub(delta)
	s.pools[pool] = total.Sub(delta)
	return nil
}

// AccountsByPool returns every account counter of a sale pool.
func (s *LedgerStore) AccountsByPool(_ context.Context, pool domain.Pool) (map[common.Address]sdkmath.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[common.Address]sdkmath.Int)
	for k, v := range s.accounts {
		if k.pool == pool {
			out[k.account] = v
		}
	}
	return out, nil
}

func (s *LedgerStore) poolLocked(pool domain.Pool) sdkmath.Int {
	v, ok := s.pools[pool]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return v
}
