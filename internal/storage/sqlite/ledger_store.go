package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// LedgerStore is a SQLite implementation of storage.LedgerStore. Amounts are
// canonical decimal text, so the compare-and-swap is a text equality.
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a new SQLite ledger store.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

var _ storage.LedgerStore = (*LedgerStore)(nil)

// PoolClaimed returns the claimed total of a pool.
func (s *LedgerStore) PoolClaimed(ctx context.Context, pool domain.Pool) (sdkmath.Int, error) {
	return readAmount(ctx, s.db.DB, `SELECT claimed FROM pool_claims WHERE pool = ?`, string(pool))
}

// AccountClaimed returns the amount an account has claimed from a sale pool.
func (s *LedgerStore) AccountClaimed(ctx context.Context, pool domain.Pool, account common.Address) (sdkmath.Int, error) {
	return readAmount(ctx, s.db.DB, `SELECT claimed FROM account_claims WHERE pool = ? AND account = ?`, string(pool), account.Hex())
}

// CommitPool moves a fixed pool counter from prev to next.
func (s *LedgerStore) CommitPool(ctx context.Context, pool domain.Pool, prev, next sdkmath.Int) error {
	if next.LT(prev) {
		return storage.ErrInvalidInput
	}
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		return casPool(ctx, tx, pool, prev, next)
	})
}

// CommitAccount adds delta to an account counter and to the pool total.
func (s *LedgerStore) CommitAccount(ctx context.Context, pool domain.Pool, account common.Address, prev, delta, poolCap sdkmath.Int) (sdkmath.Int, error) {
	if !delta.IsPositive() {
		return sdkmath.Int{}, storage.ErrInvalidInput
	}

	var total sdkmath.Int
	err := s.db.inTx(ctx, func(tx *sql.Tx) error {
		current, err := readAmount(ctx, tx, `SELECT claimed FROM pool_claims WHERE pool = ?`, string(pool))
		if err != nil {
			return err
		}
		total = current.Add(delta)
		if total.GT(poolCap) {
			return storage.ErrCapExceeded
		}

		var res sql.Result
		if prev.IsZero() {
			res, err = tx.ExecContext(ctx, `
				INSERT INTO account_claims (pool, account, claimed) VALUES (?, ?, ?)
				ON CONFLICT (pool, account) DO UPDATE SET claimed = excluded.claimed
				WHERE account_claims.claimed = '0'
			`, string(pool), account.Hex(), delta.String())
		} else {
			res, err = tx.ExecContext(ctx, `
				UPDATE account_claims SET claimed = ?
				WHERE pool = ? AND account = ? AND claimed = ?
			`, prev.Add(delta).String(), string(pool), account.Hex(), prev.String())
		}
		if err != nil {
			return fmt.Errorf("commit account claim: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return storage.ErrConflict
		}

		return casPool(ctx, tx, pool, current, total)
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
	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		return casPool(ctx, tx, pool, committed, prev)
	})
}

// RevertAccount takes delta back from an account counter and the pool total.
func (s *LedgerStore) RevertAccount(ctx context.Context, pool domain.Pool, account common.Address, committed, delta sdkmath.Int) error {
	if !delta.IsPositive() || delta.GT(committed) {
		return storage.ErrInvalidInput
	}

	return s.db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE account_claims SET claimed = ?
			WHERE pool = ? AND account = ? AND claimed = ?
		`, committed.Sub(delta).String(), string(pool), account.Hex(), committed.String())
		if err != nil {
			return fmt.Errorf("revert account claim: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return storage.ErrConflict
		}

		current, err := readAmount(ctx, tx, `SELECT claimed FROM pool_claims WHERE pool = ?`, string(pool))
		if err != nil {
			return err
		}
		if current.LT(delta) {
			return storage.ErrConflict
		}
		return casPool(ctx, tx, pool, current, current.Sub(delta))
	})
}

// AccountsByPool returns every account counter of a sale pool.
func (s *LedgerStore) AccountsByPool(ctx context.Context, pool domain.Pool) (map[common.Address]sdkmath.Int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account, claimed FROM account_claims WHERE pool = ?`, string(pool))
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	out := make(map[common.Address]sdkmath.Int)
	for rows.Next() {
		var account, raw string
		if err := rows.Scan(&account, &raw); err != nil {
			return nil, err
		}
		v, err := parseAmount(raw)
		if err != nil {
			return nil, err
		}
		out[common.HexToAddress(account)] = v
	}
	return out, rows.Err()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readAmount(ctx context.Context, q querier, query string, args ...any) (sdkmath.Int, error) {
	var raw string
	err := q.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return sdkmath.ZeroInt(), nil
		}
		return sdkmath.Int{}, fmt.Errorf("select claimed: %w", err)
	}
	return parseAmount(raw)
}

func casPool(ctx context.Context, tx *sql.Tx, pool domain.Pool, prev, next sdkmath.Int) error {
	var (
		res sql.Result
		err error
	)
	if prev.IsZero() {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO pool_claims (pool, claimed) VALUES (?, ?)
			ON CONFLICT (pool) DO UPDATE SET claimed = excluded.claimed
			WHERE pool_claims.claimed = '0'
		`, string(pool), next.String())
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE pool_claims SET claimed = ? WHERE pool = ? AND claimed = ?
		`, next.String(), string(pool), prev.String())
	}
	if err != nil {
		return fmt.Errorf("commit pool claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return storage.ErrConflict
	}
	return nil
}
