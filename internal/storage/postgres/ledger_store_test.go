package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

func TestLedgerStore_CommitPool(t *testing.T) {
	pool := setupTestDB(t)

	store := NewLedgerStore(pool)
	ctx := context.Background()

	claimed, err := store.PoolClaimed(ctx, domain.PoolTeam)
	require.NoError(t, err)
	assert.True(t, claimed.IsZero())

	first := domain.Tokens(2_777_778)
	require.NoError(t, store.CommitPool(ctx, domain.PoolTeam, sdkmath.ZeroInt(), first))
	assert.ErrorIs(t, store.CommitPool(ctx, domain.PoolTeam, sdkmath.ZeroInt(), first), storage.ErrConflict)

	second := first.MulRaw(2)
	require.NoError(t, store.CommitPool(ctx, domain.PoolTeam, first, second))
	assert.ErrorIs(t, store.CommitPool(ctx, domain.PoolTeam, first, second.MulRaw(2)), storage.ErrConflict)

	claimed, err = store.PoolClaimed(ctx, domain.PoolTeam)
	require.NoError(t, err)
	assert.True(t, claimed.Equal(second), "claimed %s", claimed)
}

func TestLedgerStore_CommitAccount(t *testing.T) {
	pool := setupTestDB(t)

	store := NewLedgerStore(pool)
	ctx := context.Background()
	alice := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	poolCap := domain.Tokens(1_000)

	total, err := store.CommitAccount(ctx, domain.PoolPrivateSale, alice, sdkmath.ZeroInt(), domain.Tokens(600), poolCap)
	require.NoError(t, err)
	assert.True(t, total.Equal(domain.Tokens(600)))

	_, err = store.CommitAccount(ctx, domain.PoolPrivateSale, alice, sdkmath.ZeroInt(), domain.Tokens(1), poolCap)
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = store.CommitAccount(ctx, domain.PoolPrivateSale, bob, sdkmath.ZeroInt(), domain.Tokens(401), poolCap)
	assert.ErrorIs(t, err, storage.ErrCapExceeded)

	// The rolled-back transaction must not leave bob's row behind
	bobClaimed, err := store.AccountClaimed(ctx, domain.PoolPrivateSale, bob)
	require.NoError(t, err)
	assert.True(t, bobClaimed.IsZero())

	total, err = store.CommitAccount(ctx, domain.PoolPrivateSale, bob, sdkmath.ZeroInt(), domain.Tokens(400), poolCap)
	require.NoError(t, err)
	assert.True(t, total.Equal(poolCap))

	total, err = store.CommitAccount(ctx, domain.PoolPrivateSale, alice, domain.Tokens(600), domain.Tokens(1), domain.Tokens(1_001))
	require.NoError(t, err)
	assert.True(t, total.Equal(domain.Tokens(1_001)))

	accounts, err := store.AccountsByPool(ctx, domain.PoolPrivateSale)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.True(t, accounts[alice].Equal(domain.Tokens(601)))
	assert.True(t, accounts[bob].Equal(domain.Tokens(400)))
}

func TestLedgerStore_ConcurrentWritersNeverExceedCap(t *testing.T) {
	pool := setupTestDB(t)

	store := NewLedgerStore(pool)
	ctx := context.Background()
	poolCap := sdkmath.NewInt(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account := common.BigToAddress(sdkmath.NewInt(int64(i + 1)).BigInt())
			_, err := store.CommitAccount(ctx, domain.PoolStrategicSale2, account, sdkmath.ZeroInt(), sdkmath.NewInt(1), poolCap)
			if err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
				return
			}
			if !errors.Is(err, storage.ErrCapExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, committed)
	total, err := store.PoolClaimed(ctx, domain.PoolStrategicSale2)
	require.NoError(t, err)
	assert.True(t, total.Equal(poolCap))
}

func TestLedgerStore_Revert(t *testing.T) {
	store := NewLedgerStore(setupTestDB(t))
	ctx := context.Background()
	alice := common.HexToAddress("0xa11ce")
	bob := common.HexToAddress("0xb0b")
	poolCap := sdkmath.NewInt(100)

	// Fixed pool: back to zero, then the same commit succeeds again.
	require.NoError(t, store.CommitPool(ctx, domain.PoolAirdrop, sdkmath.ZeroInt(), sdkmath.NewInt(40)))
	assert.ErrorIs(t, store.RevertPool(ctx, domain.PoolAirdrop, sdkmath.NewInt(39), sdkmath.ZeroInt()), storage.ErrConflict)
	assert.ErrorIs(t, store.RevertPool(ctx, domain.PoolAirdrop, sdkmath.NewInt(40), sdkmath.NewInt(40)), storage.ErrInvalidInput)
	require.NoError(t, store.RevertPool(ctx, domain.PoolAirdrop, sdkmath.NewInt(40), sdkmath.ZeroInt()))
	require.NoError(t, store.CommitPool(ctx, domain.PoolAirdrop, sdkmath.ZeroInt(), sdkmath.NewInt(40)))

	// Sale pool: the revert gives the headroom back to other accounts.
	_, err := store.CommitAccount(ctx, domain.PoolPrivateSale, alice, sdkmath.ZeroInt(), sdkmath.NewInt(30), poolCap)
	require.NoError(t, err)
	_, err = store.CommitAccount(ctx, domain.PoolPrivateSale, bob, sdkmath.ZeroInt(), sdkmath.NewInt(70), poolCap)
	require.NoError(t, err)

	assert.ErrorIs(t, store.RevertAccount(ctx, domain.PoolPrivateSale, bob, sdkmath.NewInt(60), sdkmath.NewInt(70)), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.RevertAccount(ctx, domain.PoolPrivateSale, bob, sdkmath.NewInt(80), sdkmath.NewInt(70)), storage.ErrConflict)
	require.NoError(t, store.RevertAccount(ctx, domain.PoolPrivateSale, bob, sdkmath.NewInt(70), sdkmath.NewInt(70)))

	claimed, err := store.AccountClaimed(ctx, domain.PoolPrivateSale, bob)
	require.NoError(t, err)
	assert.True(t, claimed.IsZero(), "bob claimed %s", claimed)
	total, err := store.PoolClaimed(ctx, domain.PoolPrivateSale)
	require.NoError(t, err)
	assert.True(t, total.Equal(sdkmath.NewInt(30)), "pool total %s", total)

	total, err = store.CommitAccount(ctx, domain.PoolPrivateSale, bob, sdkmath.ZeroInt(), sdkmath.NewInt(70), poolCap)
	require.NoError(t, err)
	assert.True(t, total.Equal(poolCap))
}
