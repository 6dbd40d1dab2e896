package vesting

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"y8u-distributor/internal/domain"
)

// SaleDenominator is the fixed-point base of sale schedule fractions
// (100,000 = 1%).
const SaleDenominator int64 = 10_000_000

// Table is the complete set of schedules, one per pool.
type Table struct {
	Fixed map[domain.Pool]domain.Schedule
	Sales map[domain.Pool]domain.SaleSchedule
}

func cliff(months int64) domain.Phase {
	return domain.Phase{Months: months, PerMonth: sdkmath.ZeroInt()}
}

func monthly(months, tokens int64) domain.Phase {
	return domain.Phase{Months: months, PerMonth: domain.Tokens(tokens)}
}

// DefaultTable returns the production schedules.
func DefaultTable() *Table {
	fixed := []domain.Schedule{
		{
			Pool:          domain.PoolTeam,
			InitialUnlock: sdkmath.ZeroInt(),
			Phases:        []domain.Phase{cliff(10), monthly(36, 2_777_778)},
			Total:         domain.Tokens(100_000_000),
		},
		{
			Pool:          domain.PoolTreasury,
			InitialUnlock: sdkmath.ZeroInt(),
			Phases:        []domain.Phase{cliff(12), monthly(24, 4_166_667)},
			Total:         domain.Tokens(100_000_000),
		},
		{
			Pool:          domain.PoolMarketing,
			InitialUnlock: sdkmath.ZeroInt(),
			Phases:        []domain.Phase{cliff(6), monthly(36, 2_638_889)},
			Total:         domain.Tokens(95_000_000),
		},
		{
			Pool:          domain.PoolDevelopment,
			InitialUnlock: sdkmath.ZeroInt(),
			Phases:        []domain.Phase{cliff(1), monthly(48, 2_083_333)},
			Total:         domain.Tokens(100_000_000),
		},
		{
			Pool:          domain.PoolEcosystem,
			InitialUnlock: domain.Tokens(7_200_000),
			Phases:        []domain.Phase{cliff(4), monthly(36, 9_800_000)},
			Total:         domain.Tokens(360_000_000),
		},
		{
			Pool:          domain.PoolAIMining,
			InitialUnlock: sdkmath.ZeroInt(),
			Phases:        []domain.Phase{cliff(3), monthly(36, 2_777_778)},
			Total:         domain.Tokens(100_000_000),
		},
		{
			Pool:          domain.PoolAirdrop,
			InitialUnlock: sdkmath.ZeroInt(),
			Phases:        []domain.Phase{monthly(5, 1_000_000)},
			Total:         domain.Tokens(5_000_000),
		},
	}

	sales := []domain.SaleSchedule{
		{
			Pool: domain.PoolPrivateSale,
			Phases: []domain.SalePhase{
				{Months: 6, Numerator: 100_000},
				{Months: 24, Numerator: 391_667},
			},
			Denominator: SaleDenominator,
			Cap:         domain.Tokens(130_000_000),
		},
		{
			Pool: domain.PoolStrategicSale2,
			Phases: []domain.SalePhase{
				{Months: 3, Numerator: 100_000},
				{Months: 20, Numerator: 485_000},
			},
			Denominator: SaleDenominator,
			Cap:         domain.Tokens(10_000_000),
		},
	}

	t := &Table{
		Fixed: make(map[domain.Pool]domain.Schedule, len(fixed)),
		Sales: make(map[domain.Pool]domain.SaleSchedule, len(sales)),
	}
	for _, s := range fixed {
		t.Fixed[s.Pool] = s
	}
	for _, s := range sales {
		t.Sales[s.Pool] = s
	}
	return t
}

// Validate checks every schedule and that each known pool has exactly one.
func (t *Table) Validate() error {
	var errs []error
	for _, p := range domain.FixedPools {
		s, ok := t.Fixed[p]
		if !ok {
			errs = append(errs, fmt.Errorf("missing schedule for %s", p))
			continue
		}
		errs = append(errs, s.Validate())
	}
	for _, p := range domain.SalePools {
		s, ok := t.Sales[p]
		if !ok {
			errs = append(errs, fmt.Errorf("missing sale schedule for %s", p))
			continue
		}
		errs = append(errs, s.Validate())
	}
	return errors.Join(errs...)
}

// Schedule returns the fixed schedule for pool.
func (t *Table) Schedule(pool domain.Pool) (domain.Schedule, error) {
	s, ok := t.Fixed[pool]
	if !ok {
		return domain.Schedule{}, fmt.Errorf("%w: %s is not a fixed pool", domain.ErrUnknownPool, pool)
	}
	return s, nil
}

// SaleSchedule returns the proportional schedule for pool.
func (t *Table) SaleSchedule(pool domain.Pool) (domain.SaleSchedule, error) {
	s, ok := t.Sales[pool]
	if !ok {
		return domain.SaleSchedule{}, fmt.Errorf("%w: %s is not a sale pool", domain.ErrUnknownPool, pool)
	}
	return s, nil
}

// Cap returns the hard ceiling of a pool.
func (t *Table) Cap(pool domain.Pool) (sdkmath.Int, error) {
	if s, ok := t.Fixed[pool]; ok {
		return s.Total, nil
	}
	if s, ok := t.Sales[pool]; ok {
		return s.Cap, nil
	}
	return sdkmath.Int{}, fmt.Errorf("%w: %s", domain.ErrUnknownPool, pool)
}

// MaxSupply is the sum of every pool cap.
func (t *Table) MaxSupply() sdkmath.Int {
	sum := sdkmath.ZeroInt()
	for _, s := range t.Fixed {
		sum = sum.Add(s.Total)
	}
	for _, s := range t.Sales {
		sum = sum.Add(s.Cap)
	}
	return sum
}
