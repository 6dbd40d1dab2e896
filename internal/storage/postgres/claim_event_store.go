package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// ClaimEventStore is a PostgreSQL implementation of storage.ClaimEventStore.
type ClaimEventStore struct {
	pool *Pool
}

// NewClaimEventStore creates a new PostgreSQL claim event store.
func NewClaimEventStore(pool *Pool) *ClaimEventStore {
	return &ClaimEventStore{pool: pool}
}

var _ storage.ClaimEventStore = (*ClaimEventStore)(nil)

const claimEventColumns = `
	claim_id, pool, account, amount::text, account_total::text, pool_total::text,
	elapsed_months, claimed_at
`

// Insert adds a claim record. Returns ErrDuplicateKey if claim_id exists.
func (s *ClaimEventStore) Insert(ctx context.Context, r *domain.ClaimRecord) error {
	if r == nil || r.ClaimID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO claim_events (
			claim_id, pool, account, amount, account_total, pool_total,
			elapsed_months, claimed_at
		) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8)
	`,
		r.ClaimID, string(r.Pool), r.Account.Bytes(),
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
	row := s.pool.QueryRow(ctx, `SELECT `+claimEventColumns+` FROM claim_events WHERE claim_id = $1`, claimID)
	r, err := scanClaimRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// GetByPool retrieves all claims of a pool, ordered by claimed_at ASC.
func (s *ClaimEventStore) GetByPool(ctx context.Context, pool domain.Pool) ([]*domain.ClaimRecord, error) {
	return s.query(ctx, `
		SELECT `+claimEventColumns+` FROM claim_events
		WHERE pool = $1
		ORDER BY claimed_at, seq
	`, string(pool))
}

// GetByAccount retrieves all claims paid to an account, ordered by claimed_at ASC.
func (s *ClaimEventStore) GetByAccount(ctx context.Context, account common.Address) ([]*domain.ClaimRecord, error) {
	return s.query(ctx, `
		SELECT `+claimEventColumns+` FROM claim_events
		WHERE account = $1
		ORDER BY claimed_at, seq
	`, account.Bytes())
}

func (s *ClaimEventStore) query(ctx context.Context, query string, args ...any) ([]*domain.ClaimRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query claim events: %w", err)
	}
	defer rows.Close()

	var result []*domain.ClaimRecord
	for rows.Next() {
		r, err := scanClaimRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanClaimRecord(row pgx.Row) (*domain.ClaimRecord, error) {
	var (
		r       domain.ClaimRecord
		pool    string
		account []byte
		amount  string
		accTot  string
		poolTot string
	)
	err := row.Scan(&r.ClaimID, &pool, &account, &amount, &accTot, &poolTot, &r.ElapsedMonths, &r.ClaimedAt)
	if err != nil {
		return nil, err
	}

	r.Pool = domain.Pool(pool)
	r.Account = common.BytesToAddress(account)
	if r.Amount, err = parseNumeric(amount); err != nil {
		return nil, err
	}
	if r.AccountTotal, err = parseNumeric(accTot); err != nil {
		return nil, err
	}
	if r.PoolTotal, err = parseNumeric(poolTot); err != nil {
		return nil, err
	}
	return &r, nil
}
