// Package simulation replays the vesting schedules month by month against a
// throwaway in-memory distributor, claiming everything claimable each month.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"y8u-distributor/internal/distributor"
	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/merkle"
	"y8u-distributor/internal/storage/memory"
	"y8u-distributor/internal/token"
	"y8u-distributor/internal/vesting"
)

// Owner is the account that claims fixed pools during a simulation.
var Owner = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// Step is one pool's state at the end of a simulated month.
type Step struct {
	Month     int64
	Pool      domain.Pool
	Unlocked  sdkmath.Int // cumulative; sale pools sum the enrolled allocations (or the cap share without a tree)
	Delta     sdkmath.Int // claimed during this month
	Claimed   sdkmath.Int // cumulative
	Claims    int         // successful claims this month
	Exhausted int         // claims rejected by the pool cap this month
}

// Result holds every step of a run, ordered by month then pool.
type Result struct {
	Start  time.Time
	Months int64
	Steps  []Step
	Minted sdkmath.Int
}

// Month returns the steps of month m.
func (r *Result) Month(m int64) []Step {
	var out []Step
	for _, s := range r.Steps {
		if s.Month == m {
			out = append(out, s)
		}
	}
	return out
}

// Final returns the last step recorded for pool.
func (r *Result) Final(pool domain.Pool) (Step, bool) {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		if r.Steps[i].Pool == pool {
			return r.Steps[i], true
		}
	}
	return Step{}, false
}

// Options configures a run.
type Options struct {
	Table  *vesting.Table               // Default: vesting.DefaultTable()
	Months int64                        // last simulated month. Default: Horizon(Table)
	Start  time.Time                    // TGE. Default: 2025-01-01 UTC
	Trees  map[domain.Pool]*merkle.Tree // enrolled sale allocations; pools without a tree make no claims
	Logger *log.Logger
}

// Horizon is the first elapsed month at which every schedule in t is fully
// unlocked.
func Horizon(t *vesting.Table) int64 {
	var h int64
	for _, s := range t.Fixed {
		h = max(h, s.Months())
	}
	for _, s := range t.Sales {
		h = max(h, s.Months())
	}
	return h
}

// Run simulates months 0 through opts.Months.
func Run(ctx context.Context, opts Options) (*Result, error) {
	table := opts.Table
	if table == nil {
		table = vesting.DefaultTable()
	}
	months := opts.Months
	if months <= 0 {
		months = Horizon(table)
	}
	start := opts.Start
	if start.IsZero() {
		start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	for pool := range opts.Trees {
		if !pool.IsSale() {
			return nil, fmt.Errorf("%w: %s has no Merkle tree", domain.ErrUnknownPool, pool)
		}
	}

	clock := vesting.NewManualTime(start)
	tok := token.NewLedger(table.MaxSupply())
	d, err := distributor.New(distributor.Options{
		Owner:  Owner,
		Table:  table,
		Time:   clock,
		State:  memory.NewStateStore(),
		Ledger: memory.NewLedgerStore(),
		Minter: tok,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	if _, err := d.SetTGE(ctx, Owner); err != nil {
		return nil, err
	}
	for pool, tree := range opts.Trees {
		if err := d.SetMerkleRoot(ctx, Owner, pool, tree.Root()); err != nil {
			return nil, err
		}
	}

	res := &Result{Start: start, Months: months}
	for m := int64(0); m <= months; m++ {
		if m > 0 {
			clock.AdvanceMonths(1, 0)
		}
		for _, pool := range domain.AllPools {
			step, err := simulateMonth(ctx, d, table, opts.Trees[pool], pool, m)
			if err != nil {
				return nil, fmt.Errorf("month %d %s: %w", m, pool, err)
			}
			res.Steps = append(res.Steps, step)
		}
	}

	res.Minted = tok.TotalSupply()
	logger.Printf("simulated %d months, minted %s tokens", months+1, domain.FormatTokens(res.Minted))
	return res, nil
}

func simulateMonth(ctx context.Context, d *distributor.Distributor, table *vesting.Table, tree *merkle.Tree, pool domain.Pool, m int64) (Step, error) {
	step := Step{Month: m, Pool: pool, Delta: sdkmath.ZeroInt()}

	if !pool.IsSale() {
		sched, err := table.Schedule(pool)
		if err != nil {
			return Step{}, err
		}
		step.Unlocked = vesting.Unlocked(sched, m)

		rec, err := d.ClaimPool(ctx, Owner, pool)
		switch {
		case err == nil:
			step.Delta = rec.Amount
			step.Claims = 1
		case errors.Is(err, domain.ErrNoClaimable):
		default:
			return Step{}, err
		}
	} else {
		sched, err := table.SaleSchedule(pool)
		if err != nil {
			return Step{}, err
		}
		if tree == nil {
			step.Unlocked = vesting.UnlockedFor(sched, m, sched.Cap)
		} else {
			step.Unlocked = sdkmath.ZeroInt()
			for _, alloc := range tree.Allocations() {
				step.Unlocked = step.Unlocked.Add(vesting.UnlockedFor(sched, m, alloc.Amount))
				if err := claimSale(ctx, d, tree, pool, alloc.Account, &step); err != nil {
					return Step{}, err
				}
			}
		}
	}

	claimed, err := d.TotalClaimed(ctx, pool)
	if err != nil {
		return Step{}, err
	}
	step.Claimed = claimed
	return step, nil
}

func claimSale(ctx context.Context, d *distributor.Distributor, tree *merkle.Tree, pool domain.Pool, account common.Address, step *Step) error {
	alloc, proof, err := tree.Proof(account)
	if err != nil {
		return err
	}
	rec, err := d.ClaimSale(ctx, account, pool, alloc.Amount, proof)
	switch {
	case err == nil:
		step.Delta = step.Delta.Add(rec.Amount)
		step.Claims++
	case errors.Is(err, domain.ErrNoClaimable):
	case errors.Is(err, domain.ErrPoolExhausted):
		step.Exhausted++
	default:
		return err
	}
	return nil
}
