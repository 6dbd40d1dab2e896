package postgres

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// LedgerStore is a PostgreSQL implementation of storage.LedgerStore.
// Every commit is guarded by a WHERE clause on the previously read value,
// so concurrent writers from different processes cannot both succeed.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new PostgreSQL ledger store.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

var _ storage.LedgerStore = (*LedgerStore)(nil)

// PoolClaimed returns the claimed total of a pool.
func (s *LedgerStore) PoolClaimed(ctx context.Context, pool domain.Pool) (sdkmath.Int, error) {
	return s.scanAmount(ctx, `SELECT claimed::text FROM pool_claims WHERE pool = $1`, string(pool))
}

// AccountClaimed returns the amount an account has claimed from a sale pool.
func (s *LedgerStore) AccountClaimed(ctx context.Context, pool domain.Pool, account common.Address) (sdkmath.Int, error) {
	return s.scanAmount(ctx, `
		SELECT claimed::text FROM account_claims WHERE pool = $1 AND account = $2
	`, string(pool), account.Bytes())
}

// CommitPool moves a fixed pool counter from prev to next.
func (s *LedgerStore) CommitPool(ctx context.Context, pool domain.Pool, prev, next sdkmath.Int) error {
	if next.LT(prev) {
		return storage.ErrInvalidInput
	}

	var (
		query string
		args  []any
	)
	if prev.IsZero() {
		query = `
			INSERT INTO pool_claims (pool, claimed, updated_at)
			VALUES ($1, $2::numeric, NOW())
			ON CONFLICT (pool) DO UPDATE
			SET claimed = EXCLUDED.claimed,
			    updated_at = NOW()
			WHERE pool_claims.claimed = 0
		`
		args = []any{string(pool), next.String()}
	} else {
		query = `
			UPDATE pool_claims
			SET claimed = $2::numeric, updated_at = NOW()
			WHERE pool = $1 AND claimed = $3::numeric
		`
		args = []any{string(pool), next.String(), prev.String()}
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("commit pool claim: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return storage.ErrConflict
	}
	return nil
}

// CommitAccount adds delta to an account counter and to the pool total in
// one transaction. The pool row is updated with a conditional increment, so
// the cap holds across processes.
func (s *LedgerStore) CommitAccount(ctx context.Context, pool domain.Pool, account common.Address, prev, delta, poolCap sdkmath.Int) (sdkmath.Int, error) {
	if !delta.IsPositive() {
		return sdkmath.Int{}, storage.ErrInvalidInput
	}
	if delta.GT(poolCap) {
		return sdkmath.Int{}, storage.ErrCapExceeded
	}

	var total sdkmath.Int
	err := s.pool.inTx(ctx, func(tx pgx.Tx) error {
		next := prev.Add(delta)

		var tag pgconn.CommandTag
		var err error
		if prev.IsZero() {
			tag, err = tx.Exec(ctx, `
				INSERT INTO account_claims (pool, account, claimed, updated_at)
				VALUES ($1, $2, $3::numeric, NOW())
				ON CONFLICT (pool, account) DO UPDATE
				SET claimed = EXCLUDED.claimed,
				    updated_at = NOW()
				WHERE account_claims.claimed = 0
			`, string(pool), account.Bytes(), next.String())
		} else {
			tag, err = tx.Exec(ctx, `
				UPDATE account_claims
				SET claimed = $3::numeric, updated_at = NOW()
				WHERE pool = $1 AND account = $2 AND claimed = $4::numeric
			`, string(pool), account.Bytes(), next.String(), prev.String())
		}
		if err != nil {
			return fmt.Errorf("commit account claim: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return storage.ErrConflict
		}

		var raw string
		err = tx.QueryRow(ctx, `
			INSERT INTO pool_claims (pool, claimed, updated_at)
			VALUES ($1, $2::numeric, NOW())
			ON CONFLICT (pool) DO UPDATE
			SET claimed = pool_claims.claimed + EXCLUDED.claimed,
			    updated_at = NOW()
			WHERE pool_claims.claimed + EXCLUDED.claimed <= $3::numeric
			RETURNING claimed::text
		`, string(pool), delta.String(), poolCap.String()).Scan(&raw)
		if err != nil {
			if isNotFoundError(err) {
				return storage.ErrCapExceeded
			}
			return fmt.Errorf("increment pool total: %w", err)
		}

		total, err = parseNumeric(raw)
		return err
	})
	if err != nil {
		return sdkmath.Int{}, err
	}
	return total, nil
}

// RevertPool moves a fixed pool counter back from committed to prev.
func (s *LedgerStore) RevertPool(ctx context.Context, pool domain.Pool, committed, prev sdkmath.Int) error {
	if !prev.LT(committed) || prev.IsNegative() {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE pool_claims
		SET claimed = $2::numeric, updated_at = NOW()
		WHERE pool = $1 AND claimed = $3::numeric
	`, string(pool), prev.String(), committed.String())
	if err != nil {
		return fmt.Errorf("revert pool claim: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return storage.ErrConflict
	}
	return nil
}

// RevertAccount takes delta back from an account counter and the pool total
// in one transaction.
func (s *LedgerStore) RevertAccount(ctx context.Context, pool domain.Pool, account common.Address, committed, delta sdkmath.Int) error {
	if !delta.IsPositive() || delta.GT(committed) {
		return storage.ErrInvalidInput
	}

	return s.pool.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE account_claims
			SET claimed = $3::numeric, updated_at = NOW()
			WHERE pool = $1 AND account = $2 AND claimed = $4::numeric
		`, string(pool), account.Bytes(), committed.Sub(delta).String(), committed.String())
		if err != nil {
			return fmt.Errorf("revert account claim: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return storage.ErrConflict
		}

		tag, err = tx.Exec(ctx, `
			UPDATE pool_claims
			SET claimed = claimed - $2::numeric, updated_at = NOW()
			WHERE pool = $1 AND claimed >= $2::numeric
		`, string(pool), delta.String())
		if err != nil {
			return fmt.Errorf("decrement pool total: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return storage.ErrConflict
		}
		return nil
	})
}

// AccountsByPool returns every account counter of a sale pool.
func (s *LedgerStore) AccountsByPool(ctx context.Context, pool domain.Pool) (map[common.Address]sdkmath.Int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account, claimed::text FROM account_claims WHERE pool = $1
	`, string(pool))
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	out := make(map[common.Address]sdkmath.Int)
	for rows.Next() {
		var (
			account []byte
			raw     string
		)
		if err := rows.Scan(&account, &raw); err != nil {
			return nil, err
		}
		v, err := parseNumeric(raw)
		if err != nil {
			return nil, err
		}
		out[common.BytesToAddress(account)] = v
	}
	return out, rows.Err()
}

func (s *LedgerStore) scanAmount(ctx context.Context, query string, args ...any) (sdkmath.Int, error) {
	var raw string
	err := s.pool.QueryRow(ctx, query, args...).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return sdkmath.ZeroInt(), nil
		}
		return sdkmath.Int{}, fmt.Errorf("select claimed: %w", err)
	}
	return parseNumeric(raw)
}
