// Package verification replays the claim history against the ledger.
// Every committed claim writes one ClaimRecord, so the history must
// reproduce the ledger counters exactly; anything else means a lost event,
// a failed revert or a tampered record.
package verification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/idhash"
	"y8u-distributor/internal/storage"
	"y8u-distributor/internal/vesting"
)

// Divergence represents a mismatch between the replayed history and the
// stored value.
type Divergence struct {
	Field    string `json:"field"`
	ClaimID  string `json:"claim_id,omitempty"`
	Account  string `json:"account,omitempty"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// PoolResult contains the result of auditing a single pool.
type PoolResult struct {
	Pool        domain.Pool  `json:"pool"`
	Claims      int          `json:"claims"`
	Claimed     string       `json:"claimed"` // ledger pool total, base units
	Match       bool         `json:"match"`
	Divergences []Divergence `json:"divergences,omitempty"`
}

// Report contains results for every pool.
type Report struct {
	TotalPools     int          `json:"total_pools"`
	MatchedPools   int          `json:"matched_pools"`
	DivergentPools int          `json:"divergent_pools"`
	Results        []PoolResult `json:"results"`
}

// Auditor replays claim records against ledger counters.
type Auditor struct {
	table  *vesting.Table
	ledger storage.LedgerStore
	events storage.ClaimEventStore
}

// AuditorOptions contains configuration for creating an Auditor.
type AuditorOptions struct {
	Table  *vesting.Table // Default: vesting.DefaultTable()
	Ledger storage.LedgerStore
	Events storage.ClaimEventStore
}

// NewAuditor creates a new Auditor.
func NewAuditor(opts AuditorOptions) (*Auditor, error) {
	if opts.Ledger == nil || opts.Events == nil {
		return nil, errors.New("verification: ledger and events are required")
	}
	table := opts.Table
	if table == nil {
		table = vesting.DefaultTable()
	}
	return &Auditor{table: table, ledger: opts.Ledger, events: opts.Events}, nil
}

// VerifyPool audits one pool.
func (a *Auditor) VerifyPool(ctx context.Context, pool domain.Pool) (*PoolResult, error) {
	if !pool.IsValid() {
		return nil, fmt.Errorf("verification: unknown pool %q", pool)
	}

	records, err := a.events.GetByPool(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("load claims of %s: %w", pool, err)
	}
	claimed, err := a.ledger.PoolClaimed(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("load ledger of %s: %w", pool, err)
	}

	// Pool totals strictly increase in commit order, which claimed_at cannot
	// guarantee for claims within the same second.
	sorted := make([]*domain.ClaimRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PoolTotal.LT(sorted[j].PoolTotal)
	})

	var divs []Divergence
	if pool.IsSale() {
		divs, err = a.replaySale(ctx, pool, sorted, claimed)
	} else {
		divs, err = a.replayFixed(pool, sorted, claimed)
	}
	if err != nil {
		return nil, err
	}

	return &PoolResult{
		Pool:        pool,
		Claims:      len(records),
		Claimed:     claimed.String(),
		Match:       len(divs) == 0,
		Divergences: divs,
	}, nil
}

// VerifyAll audits every pool.
func (a *Auditor) VerifyAll(ctx context.Context) (*Report, error) {
	report := &Report{
		TotalPools: len(domain.AllPools),
		Results:    make([]PoolResult, 0, len(domain.AllPools)),
	}

	for _, pool := range domain.AllPools {
		result, err := a.VerifyPool(ctx, pool)
		if err != nil {
			return nil, err
		}
		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedPools++
		} else {
			report.DivergentPools++
		}
	}

	return report, nil
}

// replay walks records in commit order and checks the per-record invariants
// shared by both pool kinds. It returns the replayed pool total.
func replay(pool domain.Pool, records []*domain.ClaimRecord, check func(r *domain.ClaimRecord) []Divergence) (sdkmath.Int, []Divergence) {
	var divs []Divergence
	total := sdkmath.ZeroInt()

	for _, r := range records {
		if r.Pool != pool {
			divs = append(divs, recordDivergence(r, "Pool", string(pool), string(r.Pool)))
		}
		if !r.Amount.IsPositive() {
			divs = append(divs, recordDivergence(r, "Amount", "> 0", r.Amount.String()))
		}
		if id := idhash.ComputeClaimID(r.Pool, r.Account, r.AccountTotal, r.ElapsedMonths); id != r.ClaimID {
			divs = append(divs, recordDivergence(r, "ClaimID", id, r.ClaimID))
		}

		total = total.Add(r.Amount)
		if !r.PoolTotal.Equal(total) {
			divs = append(divs, recordDivergence(r, "PoolTotal", total.String(), r.PoolTotal.String()))
		}
		divs = append(divs, check(r)...)
	}

	return total, divs
}

func (a *Auditor) replayFixed(pool domain.Pool, records []*domain.ClaimRecord, claimed sdkmath.Int) ([]Divergence, error) {
	sched, err := a.table.Schedule(pool)
	if err != nil {
		return nil, err
	}

	total, divs := replay(pool, records, func(r *domain.ClaimRecord) []Divergence {
		var out []Divergence
		if !r.AccountTotal.Equal(r.PoolTotal) {
			out = append(out, recordDivergence(r, "AccountTotal", r.PoolTotal.String(), r.AccountTotal.String()))
		}
		if unlocked := vesting.Unlocked(sched, r.ElapsedMonths); r.PoolTotal.GT(unlocked) {
			out = append(out, recordDivergence(r, "Unlocked", "<= "+unlocked.String(), r.PoolTotal.String()))
		}
		return out
	})

	if !claimed.Equal(total) {
		divs = append(divs, Divergence{Field: "PoolClaimed", Expected: total.String(), Actual: claimed.String()})
	}
	return divs, nil
}

func (a *Auditor) replaySale(ctx context.Context, pool domain.Pool, records []*domain.ClaimRecord, claimed sdkmath.Int) ([]Divergence, error) {
	poolCap, err := a.table.Cap(pool)
	if err != nil {
		return nil, err
	}
	stored, err := a.ledger.AccountsByPool(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("load accounts of %s: %w", pool, err)
	}

	accounts := make(map[common.Address]sdkmath.Int)
	total, divs := replay(pool, records, func(r *domain.ClaimRecord) []Divergence {
		var out []Divergence
		sum, ok := accounts[r.Account]
		if !ok {
			sum = sdkmath.ZeroInt()
		}
		sum = sum.Add(r.Amount)
		accounts[r.Account] = sum

		if !r.AccountTotal.Equal(sum) {
			out = append(out, recordDivergence(r, "AccountTotal", sum.String(), r.AccountTotal.String()))
		}
		if r.PoolTotal.GT(poolCap) {
			out = append(out, recordDivergence(r, "Cap", "<= "+poolCap.String(), r.PoolTotal.String()))
		}
		return out
	})

	if !claimed.Equal(total) {
		divs = append(divs, Divergence{Field: "PoolClaimed", Expected: total.String(), Actual: claimed.String()})
	}

	for _, account := range sortedAccounts(accounts, stored) {
		want, ok := accounts[account]
		if !ok {
			want = sdkmath.ZeroInt()
		}
		got, ok := stored[account]
		if !ok {
			got = sdkmath.ZeroInt()
		}
		if !want.Equal(got) {
			divs = append(divs, Divergence{
				Field:    "AccountClaimed",
				Account:  account.Hex(),
				Expected: want.String(),
				Actual:   got.String(),
			})
		}
	}

	return divs, nil
}

func recordDivergence(r *domain.ClaimRecord, field, expected, actual string) Divergence {
	return Divergence{
		Field:    field,
		ClaimID:  r.ClaimID,
		Account:  r.Account.Hex(),
		Expected: expected,
		Actual:   actual,
	}
}

// sortedAccounts returns the union of both key sets in address order.
func sortedAccounts(a, b map[common.Address]sdkmath.Int) []common.Address {
	seen := make(map[common.Address]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	out := make([]common.Address, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
