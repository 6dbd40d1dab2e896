package sqlite

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// ClaimEventStore is a SQLite implementation of storage.ClaimEventStore.
type ClaimEventStore struct {
	db *DB
}

// NewClaimEventStore creates a new SQLite claim event store.
func NewClaimEventStore(db *DB) *ClaimEventStore {
	return &ClaimEventStore{db: db}
}

var _ storage.ClaimEventStore = (*ClaimEventStore)(nil)

const claimEventSelect = `
	SELECT claim_id, pool, account, amount, account_total, pool_total, elapsed_months, claimed_at
	FROM claim_events
`

// Insert adds a claim record. Returns ErrDuplicateKey if claim_id exists.
func (s *ClaimEventStore) Insert(ctx context.Context, r *domain.ClaimRecord) error {
	if r == nil || r.ClaimID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO claim_events (
			claim_id, pool, account, amount, account_total, pool_total, elapsed_months, claimed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ClaimID, string(r.Pool), r.Account.Hex(),
		r.Amount.String(), r.AccountTotal.String(), r.PoolTotal.String(),
		r.ElapsedMonths, r.ClaimedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert claim event: %w", err)
	}
	return nil
}

// GetByID retrieves a claim by its ID.
func (s *ClaimEventStore) GetByID(ctx context.Context, claimID string) (*domain.ClaimRecord, error) {
	records, err := s.query(ctx, claimEventSelect+` WHERE claim_id = ?`, claimID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// GetByPool retrieves all claims of a pool, ordered by claimed_at ASC.
func (s *ClaimEventStore) GetByPool(ctx context.Context, pool domain.Pool) ([]*domain.ClaimRecord, error) {
	return s.query(ctx, claimEventSelect+` WHERE pool = ? ORDER BY claimed_at, seq`, string(pool))
}

// GetByAccount retrieves all claims paid to an account, ordered by claimed_at ASC.
func (s *ClaimEventStore) GetByAccount(ctx context.Context, account common.Address) ([]*domain.ClaimRecord, error) {
	return s.query(ctx, claimEventSelect+` WHERE account = ? ORDER BY claimed_at, seq`, account.Hex())
}

func (s *ClaimEventStore) query(ctx context.Context, query string, args ...any) ([]*domain.ClaimRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query claim events: %w", err)
	}
	defer rows.Close()

	var result []*domain.ClaimRecord
	for rows.Next() {
		var (
			r                       domain.ClaimRecord
			pool, account           string
			amount, accTot, poolTot string
		)
		if err := rows.Scan(&r.ClaimID, &pool, &account, &amount, &accTot, &poolTot, &r.ElapsedMonths, &r.ClaimedAt); err != nil {
			return nil, err
		}
		r.Pool = domain.Pool(pool)
		r.Account = common.HexToAddress(account)
		if r.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if r.AccountTotal, err = parseAmount(accTot); err != nil {
			return nil, err
		}
		if r.PoolTotal, err = parseAmount(poolTot); err != nil {
			return nil, err
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}
