package sqlite

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// StateStore is a SQLite implementation of storage.StateStore.
type StateStore struct {
	db *DB
}

// NewStateStore creates a new SQLite state store.
func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

var _ storage.StateStore = (*StateStore)(nil)

// SetTGE stores the TGE timestamp once.
func (s *StateStore) SetTGE(ctx context.Context, ts int64) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO distributor_state (id, tge_at) VALUES (1, ?)
		ON CONFLICT (id) DO NOTHING
	`, ts)
	if err != nil {
		return fmt.Errorf("insert tge: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
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
	err := s.db.QueryRowContext(ctx, `SELECT tge_at FROM distributor_state WHERE id = 1`).Scan(&ts)
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merkle_roots (pool, root) VALUES (?, ?)
		ON CONFLICT (pool) DO UPDATE SET root = excluded.root
	`, string(pool), root.Hex())
	if err != nil {
		return fmt.Errorf("upsert root: %w", err)
	}
	return nil
}

// GetRoot returns the Merkle root of a sale pool.
func (s *StateStore) GetRoot(ctx context.Context, pool domain.Pool) (common.Hash, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT root FROM merkle_roots WHERE pool = ?`, string(pool)).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return common.Hash{}, storage.ErrNotFound
		}
		return common.Hash{}, fmt.Errorf("select root: %w", err)
	}
	return common.HexToHash(raw), nil
}
