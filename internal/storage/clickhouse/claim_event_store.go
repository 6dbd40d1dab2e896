package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
)

// ClaimEventStore implements storage.ClaimEventStore using ClickHouse.
type ClaimEventStore struct {
	conn *Conn
}

// NewClaimEventStore creates a new ClaimEventStore.
func NewClaimEventStore(conn *Conn) *ClaimEventStore {
	return &ClaimEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ClaimEventStore = (*ClaimEventStore)(nil)

const claimEventSelect = `
	SELECT
		claim_id, pool, account,
		amount, account_total, pool_total,
		elapsed_months, claimed_at
	FROM claim_events FINAL
`

// Insert adds a claim record. Returns ErrDuplicateKey if claim_id exists.
func (s *ClaimEventStore) Insert(ctx context.Context, r *domain.ClaimRecord) error {
	if r == nil || r.ClaimID == "" {
		return storage.ErrInvalidInput
	}

	// ReplacingMergeTree would collapse a duplicate; keep append-only semantics.
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM claim_events WHERE claim_id = ?`, r.ClaimID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO claim_events (
			claim_id, pool, account,
			amount, account_total, pool_total,
			elapsed_months, claimed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ClaimID, string(r.Pool), r.Account.Hex(),
		toUInt256(r.Amount), toUInt256(r.AccountTotal), toUInt256(r.PoolTotal),
		r.ElapsedMonths, r.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("insert claim event: %w", err)
	}
	return nil
}

// GetByID retrieves a claim by its ID.
func (s *ClaimEventStore) GetByID(ctx context.Context, claimID string) (*domain.ClaimRecord, error) {
	rows, err := s.conn.Query(ctx, claimEventSelect+` WHERE claim_id = ?`, claimID)
	if err != nil {
		return nil, fmt.Errorf("query by id: %w", err)
	}
	defer rows.Close()

	records, err := scanClaimRecords(rows)
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
	rows, err := s.conn.Query(ctx, claimEventSelect+` WHERE pool = ? ORDER BY claimed_at ASC, claim_id ASC`, string(pool))
	if err != nil {
		return nil, fmt.Errorf("query by pool: %w", err)
	}
	defer rows.Close()

	return scanClaimRecords(rows)
}

// GetByAccount retrieves all claims paid to an account, ordered by claimed_at ASC.
func (s *ClaimEventStore) GetByAccount(ctx context.Context, account common.Address) ([]*domain.ClaimRecord, error) {
	rows, err := s.conn.Query(ctx, claimEventSelect+` WHERE account = ? ORDER BY claimed_at ASC, claim_id ASC`, account.Hex())
	if err != nil {
		return nil, fmt.Errorf("query by account: %w", err)
	}
	defer rows.Close()

	return scanClaimRecords(rows)
}

func scanClaimRecords(rows driver.Rows) ([]*domain.ClaimRecord, error) {
	var result []*domain.ClaimRecord
	for rows.Next() {
		var (
			r             domain.ClaimRecord
			pool, account string
			amount        big.Int
			accTot        big.Int
			poolTot       big.Int
		)
		if err := rows.Scan(&r.ClaimID, &pool, &account, &amount, &accTot, &poolTot, &r.ElapsedMonths, &r.ClaimedAt); err != nil {
			return nil, fmt.Errorf("scan claim event: %w", err)
		}
		r.Pool = domain.Pool(pool)
		r.Account = common.HexToAddress(account)
		r.Amount = fromUInt256(&amount)
		r.AccountTotal = fromUInt256(&accTot)
		r.PoolTotal = fromUInt256(&poolTot)
		result = append(result, &r)
	}
	return result, rows.Err()
}
