package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	type key struct {
		pool    domain.Pool
		takenAt int64
	}
	seen := make(map[key]struct{})
	for _, p := range snapshots {
		if p == nil || !p.Pool.IsValid() {
			return storage.ErrInvalidInput
		}
		k := key{p.Pool, p.TakenAt}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, p := range snapshots {
		exists, err := s.exists(ctx, p.Pool, p.TakenAt)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_snapshots (
			pool, taken_at, elapsed_months,
			unlocked, claimed, cap
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range snapshots {
		err = batch.Append(
			string(p.Pool), p.TakenAt, p.ElapsedMonths,
			toUInt256(p.Unlocked), toUInt256(p.Claimed), toUInt256(p.Cap),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves snapshots of a pool within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, pool domain.Pool, start, end int64) ([]*domain.PoolSnapshot, error) {
	query := `
		SELECT
			pool, taken_at, elapsed_months,
			unlocked, claimed, cap
		FROM pool_snapshots
		WHERE pool = ? AND taken_at >= ? AND taken_at <= ?
		ORDER BY taken_at ASC
	`

	rows, err := s.conn.Query(ctx, query, string(pool), start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	var result []*domain.PoolSnapshot
	for rows.Next() {
		var (
			p                        domain.PoolSnapshot
			name                     string
			unlocked, claimed, limit big.Int
		)
		if err := rows.Scan(&name, &p.TakenAt, &p.ElapsedMonths, &unlocked, &claimed, &limit); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		p.Pool = domain.Pool(name)
		p.Unlocked = fromUInt256(&unlocked)
		p.Claimed = fromUInt256(&claimed)
		p.Cap = fromUInt256(&limit)
		result = append(result, &p)
	}
	return result, rows.Err()
}

func (s *SnapshotStore) exists(ctx context.Context, pool domain.Pool, takenAt int64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM pool_snapshots
		WHERE pool = ? AND taken_at = ?
	`, string(pool), takenAt).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
