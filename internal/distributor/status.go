package distributor

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/storage"
	"y8u-distributor/internal/vesting"
)

// Status is a point-in-time view of every pool.
type Status struct {
	Started       bool
	TGE           int64
	ElapsedMonths int64
	Pools         []domain.PoolStatus
}

// Status reports unlocked and claimed amounts per pool. Before TGE every
// pool reports nothing unlocked.
func (d *Distributor) Status(ctx context.Context) (*Status, error) {
	st := &Status{}

	tge, err := d.tge(ctx)
	switch {
	case err == nil:
		st.Started = true
		st.TGE = tge
		st.ElapsedMonths = vesting.ElapsedMonths(tge, d.time.Now().Unix())
	case errors.Is(err, domain.ErrTgeNotStarted):
	default:
		return nil, err
	}

	for _, pool := range domain.AllPools {
		ps, err := d.poolStatus(ctx, pool, st)
		if err != nil {
			return nil, err
		}
		st.Pools = append(st.Pools, ps)
	}
	return st, nil
}

func (d *Distributor) poolStatus(ctx context.Context, pool domain.Pool, st *Status) (domain.PoolStatus, error) {
	claimed, err := d.ledger.PoolClaimed(ctx, pool)
	if err != nil {
		return domain.PoolStatus{}, fmt.Errorf("%s claimed: %w", pool, err)
	}
	ps := domain.PoolStatus{Pool: pool, Sale: pool.IsSale(), Claimed: claimed}

	if !pool.IsSale() {
		sched, err := d.table.Schedule(pool)
		if err != nil {
			return domain.PoolStatus{}, err
		}
		unlocked := sdkmath.ZeroInt()
		if st.Started {
			unlocked = vesting.Unlocked(sched, st.ElapsedMonths)
		}
		ps.Unlocked = &unlocked
		ps.Cap = sched.Total
		return ps, nil
	}

	sched, err := d.table.SaleSchedule(pool)
	if err != nil {
		return domain.PoolStatus{}, err
	}
	var frac int64
	if st.Started {
		frac = vesting.UnlockedFraction(sched, st.ElapsedMonths)
	}
	ps.Fraction = &frac
	ps.Denom = sched.Denominator
	ps.Cap = sched.Cap

	root, err := d.state.GetRoot(ctx, pool)
	switch {
	case err == nil:
		ps.Root = &root
	case errors.Is(err, storage.ErrNotFound):
	default:
		return domain.PoolStatus{}, fmt.Errorf("%s root: %w", pool, err)
	}
	return ps, nil
}

// Snapshot captures the vesting progress of every pool at the current time.
// Sale pools report the unlocked share of their cap.
func (d *Distributor) Snapshot(ctx context.Context) ([]*domain.PoolSnapshot, error) {
	tge, err := d.tge(ctx)
	if err != nil {
		return nil, err
	}
	now := d.time.Now().Unix()
	elapsed := vesting.ElapsedMonths(tge, now)

	out := make([]*domain.PoolSnapshot, 0, len(domain.AllPools))
	for _, pool := range domain.AllPools {
		claimed, err := d.ledger.PoolClaimed(ctx, pool)
		if err != nil {
			return nil, fmt.Errorf("%s claimed: %w", pool, err)
		}

		snap := &domain.PoolSnapshot{
			Pool:          pool,
			TakenAt:       now,
			ElapsedMonths: elapsed,
			Claimed:       claimed,
		}
		if pool.IsSale() {
			sched, err := d.table.SaleSchedule(pool)
			if err != nil {
				return nil, err
			}
			snap.Cap = sched.Cap
			snap.Unlocked = vesting.UnlockedFor(sched, elapsed, sched.Cap)
		} else {
			sched, err := d.table.Schedule(pool)
			if err != nil {
				return nil, err
			}
			snap.Cap = sched.Total
			snap.Unlocked = vesting.Unlocked(sched, elapsed)
		}
		out = append(out, snap)
	}
	return out, nil
}
