package storage

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
)

// StateStore persists the rarely-written distributor configuration.
type StateStore interface {
	// SetTGE stores the TGE timestamp once. Storing the same value again is a
	// no-op; a different value returns ErrAlreadySet.
	SetTGE(ctx context.Context, ts int64) error

	// GetTGE returns the TGE timestamp. Returns ErrNotFound if unset.
	GetTGE(ctx context.Context) (int64, error)

	// SetRoot replaces the Merkle root of a sale pool.
	SetRoot(ctx context.Context, pool domain.Pool, root common.Hash) error

	// GetRoot returns the Merkle root of a sale pool. Returns ErrNotFound if unset.
	GetRoot(ctx context.Context, pool domain.Pool) (common.Hash, error)
}

// LedgerStore persists claimed counters. Commits are compare-and-swap on the
// previously read value so that two writers never both commit from the same
// stale read.
type LedgerStore interface {
	// PoolClaimed returns the claimed total of a pool, zero if nothing was claimed.
	PoolClaimed(ctx context.Context, pool domain.Pool) (sdkmath.Int, error)

	// AccountClaimed returns the amount an account has claimed from a sale pool.
	AccountClaimed(ctx context.Context, pool domain.Pool, account common.Address) (sdkmath.Int, error)

	// CommitPool moves a fixed pool counter from prev to next.
	// Returns ErrConflict if the stored value is not prev.
	CommitPool(ctx context.Context, pool domain.Pool, prev, next sdkmath.Int) error

	// CommitAccount adds delta to an account counter (expected at prev) and to
	// the pool total in one transaction. Returns ErrConflict on a stale prev and
	// ErrCapExceeded if the pool total would pass poolCap. Returns the new pool total.
	CommitAccount(ctx context.Context, pool domain.Pool, account common.Address, prev, delta, poolCap sdkmath.Int) (sdkmath.Int, error)

	// RevertPool moves a fixed pool counter back from committed to prev after
	// a failed payout. Returns ErrConflict if the stored value is not committed.
	RevertPool(ctx context.Context, pool domain.Pool, committed, prev sdkmath.Int) error

	// RevertAccount takes delta back from an account counter (expected at
	// committed) and from the pool total in one transaction.
	// Returns ErrConflict if the account counter is not committed.
	RevertAccount(ctx context.Context, pool domain.Pool, account common.Address, committed, delta sdkmath.Int) error

	// AccountsByPool returns every account counter of a sale pool.
	AccountsByPool(ctx context.Context, pool domain.Pool) (map[common.Address]sdkmath.Int, error)
}

// ClaimEventStore provides access to the append-only claim history.
type ClaimEventStore interface {
	// Insert adds a claim record. Returns ErrDuplicateKey if claim_id exists.
	Insert(ctx context.Context, r *domain.ClaimRecord) error

	// GetByID retrieves a claim by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, claimID string) (*domain.ClaimRecord, error)

	// GetByPool retrieves all claims of a pool, ordered by claimed_at ASC.
	GetByPool(ctx context.Context, pool domain.Pool) ([]*domain.ClaimRecord, error)

	// GetByAccount retrieves all claims paid to an account, ordered by claimed_at ASC.
	GetByAccount(ctx context.Context, account common.Address) ([]*domain.ClaimRecord, error)
}

// SnapshotStore provides access to periodic pool snapshots.
type SnapshotStore interface {
	// InsertBulk adds multiple snapshots. Fails entire batch on duplicate (pool, taken_at).
	InsertBulk(ctx context.Context, snapshots []*domain.PoolSnapshot) error

	// GetByTimeRange retrieves snapshots of a pool within [start, end] (inclusive), ordered by taken_at ASC.
	GetByTimeRange(ctx context.Context, pool domain.Pool, start, end int64) ([]*domain.PoolSnapshot, error)
}
