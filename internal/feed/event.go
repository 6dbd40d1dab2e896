// Package feed streams committed claims to websocket subscribers.
package feed

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
)

// Event is the wire form of a claim record. Amounts are base-unit decimal
// strings.
type Event struct {
	ClaimID       string `json:"claim_id"`
	Pool          string `json:"pool"`
	Account       string `json:"account"`
	Amount        string `json:"amount"`
	AccountTotal  string `json:"account_total"`
	PoolTotal     string `json:"pool_total"`
	ElapsedMonths int64  `json:"elapsed_months"`
	ClaimedAt     int64  `json:"claimed_at"`
}

// EventFromRecord converts a claim record to its wire form.
func EventFromRecord(r *domain.ClaimRecord) Event {
	return Event{
		ClaimID:       r.ClaimID,
		Pool:          string(r.Pool),
		Account:       r.Account.Hex(),
		Amount:        r.Amount.String(),
		AccountTotal:  r.AccountTotal.String(),
		PoolTotal:     r.PoolTotal.String(),
		ElapsedMonths: r.ElapsedMonths,
		ClaimedAt:     r.ClaimedAt,
	}
}

// Record parses the event back into a claim record.
func (e Event) Record() (*domain.ClaimRecord, error) {
	pool, err := domain.ParsePool(e.Pool)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(e.Account) {
		return nil, fmt.Errorf("invalid account %q", e.Account)
	}

	amount, err := domain.ParseAmount(e.Amount)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	accountTotal, err := domain.ParseAmount(e.AccountTotal)
	if err != nil {
		return nil, fmt.Errorf("account_total: %w", err)
	}
	poolTotal, err := domain.ParseAmount(e.PoolTotal)
	if err != nil {
		return nil, fmt.Errorf("pool_total: %w", err)
	}

	return &domain.ClaimRecord{
		ClaimID:       e.ClaimID,
		Pool:          pool,
		Account:       common.HexToAddress(e.Account),
		Amount:        amount,
		AccountTotal:  accountTotal,
		PoolTotal:     poolTotal,
		ElapsedMonths: e.ElapsedMonths,
		ClaimedAt:     e.ClaimedAt,
	}, nil
}

// Filter selects which events a subscriber receives. Zero values match all.
type Filter struct {
	Pool    domain.Pool
	Account *common.Address
}

// Match reports whether r passes the filter.
func (f Filter) Match(r *domain.ClaimRecord) bool {
	if f.Pool != "" && r.Pool != f.Pool {
		return false
	}
	if f.Account != nil && r.Account != *f.Account {
		return false
	}
	return true
}
