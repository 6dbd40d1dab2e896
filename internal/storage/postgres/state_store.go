package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// StateStore is a PostgreSQL implementation of storage.StateStore.
// Uses two tables:
//   - distributor_state: single row holding the TGE timestamp
//   - merkle_roots: one row per sale pool
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new PostgreSQL state store.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

var _ storage.StateStore = (*StateStore)(nil)

// SetTGE stores the TGE timestamp once.
func (s *StateStore) SetTGE(ctx context.Context, ts int64) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO distributor_state (id, tge_at)
		VALUES (1, $1)
		ON CONFLICT (id) DO NOTHING
	`, ts)
	if err != nil {
		return fmt.Errorf("insert tge: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	existing, err := s.GetTGE(ctx)
	if err != nil {
		return err
	}
	if existing != ts {
		return storage.ErrAlreadySet
	}
	return nil
}

// GetTGE returns the TGE timestamp.
func (s *StateStore) GetTGE(ctx context.Context) (int64, error) {
	var ts int64
	err := s.pool.QueryRow(ctx, `SELECT tge_at FROM distributor_state WHERE id = 1`).Scan(&ts)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("select tge: %w", err)
	}
	return ts, nil
}

// SetRoot replaces the Merkle root of a sale pool.
func (s *StateStore) SetRoot(ctx context.Context, pool domain.Pool, root common.Hash) error {
	if !pool.IsSale() {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO merkle_roots (pool, root, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (pool) DO UPDATE
		SET root = EXCLUDED.root,
		    updated_at = NOW()
	`, string(pool), root.Bytes())
	if err != nil {
		return fmt.Errorf("upsert root: %w", err)
	}
	return nil
}

// GetRoot returns the Merkle root of a sale pool.
func (s *StateStore) GetRoot(ctx context.Context, pool domain.Pool) (common.Hash, error) {
	var b []byte
	err := s.pool.QueryRow(ctx, `SELECT root FROM merkle_roots WHERE pool = $1`, string(pool)).Scan(&b)
	if err != nil {
		if isNotFoundError(err) {
			return common.Hash{}, storage.ErrNotFound
		}
		return common.Hash{}, fmt.Errorf("select root: %w", err)
	}
	return common.BytesToHash(b), nil
}
