package domain

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Phase is a run of equal monthly tranches.
type Phase struct {
	Months   int64       // number of months in the run
	PerMonth sdkmath.Int // base units unlocked at the start of each month (zero for a cliff)
}

// Schedule describes a fixed pool: an initial unlock released in the TGE
// month followed by ordered phases, capped at Total.
type Schedule struct {
	Pool          Pool
	InitialUnlock sdkmath.Int
	Phases        []Phase
	Total         sdkmath.Int
}

// Months returns the number of months covered by all phases.
func (s Schedule) Months() int64 {
	var n int64
	for _, p := range s.Phases {
		n += p.Months
	}
	return n
}

// Nominal returns the undamped sum of the initial unlock and every tranche.
// It may differ from Total by integer-division dust.
func (s Schedule) Nominal() sdkmath.Int {
	sum := s.InitialUnlock
	for _, p := range s.Phases {
		sum = sum.Add(p.PerMonth.MulRaw(p.Months))
	}
	return sum
}

// Validate checks the schedule is well-formed.
func (s Schedule) Validate() error {
	if !s.Total.IsPositive() {
		return fmt.Errorf("schedule %s: total must be positive", s.Pool)
	}
	if s.InitialUnlock.IsNegative() {
		return fmt.Errorf("schedule %s: negative initial unlock", s.Pool)
	}
	if len(s.Phases) == 0 {
		return fmt.Errorf("schedule %s: no phases", s.Pool)
	}
	largest := sdkmath.ZeroInt()
	for i, p := range s.Phases {
		if p.Months <= 0 {
			return fmt.Errorf("schedule %s: phase %d has %d months", s.Pool, i, p.Months)
		}
		if p.PerMonth.IsNegative() {
			return fmt.Errorf("schedule %s: phase %d has negative tranche", s.Pool, i)
		}
		if p.PerMonth.GT(largest) {
			largest = p.PerMonth
		}
	}
	// Rounding dust must stay below one tranche, otherwise the final
	// boundary would release a lump the schedule never described.
	if s.Total.Sub(s.Nominal()).GT(largest) {
		return fmt.Errorf("schedule %s: tranches sum to %s, short of total %s", s.Pool, s.Nominal(), s.Total)
	}
	return nil
}

// SalePhase is a run of equal monthly fractions of an account allocation.
type SalePhase struct {
	Months    int64
	Numerator int64 // over SaleSchedule.Denominator
}

// SaleSchedule describes a Merkle pool. Each account unlocks the same
// fraction of its own allocation; Cap bounds the pool-wide claimed total.
type SaleSchedule struct {
	Pool        Pool
	Initial     int64 // numerator released in the TGE month
	Phases      []SalePhase
	Denominator int64
	Cap         sdkmath.Int
}

// Months returns the number of months covered by all phases.
func (s SaleSchedule) Months() int64 {
	var n int64
	for _, p := range s.Phases {
		n += p.Months
	}
	return n
}

// Validate checks the schedule is well-formed.
func (s SaleSchedule) Validate() error {
	if s.Denominator <= 0 {
		return fmt.Errorf("sale schedule %s: denominator must be positive", s.Pool)
	}
	if !s.Cap.IsPositive() {
		return fmt.Errorf("sale schedule %s: cap must be positive", s.Pool)
	}
	if s.Initial < 0 {
		return fmt.Errorf("sale schedule %s: negative initial numerator", s.Pool)
	}
	if len(s.Phases) == 0 {
		return errors.New("sale schedule " + s.Pool.String() + ": no phases")
	}
	sum := s.Initial
	var largest int64
	for i, p := range s.Phases {
		if p.Months <= 0 || p.Numerator < 0 {
			return fmt.Errorf("sale schedule %s: invalid phase %d", s.Pool, i)
		}
		sum += p.Months * p.Numerator
		if p.Numerator > largest {
			largest = p.Numerator
		}
	}
	if s.Denominator-sum > largest {
		return fmt.Errorf("sale schedule %s: fractions sum to %d/%d", s.Pool, sum, s.Denominator)
	}
	return nil
}
