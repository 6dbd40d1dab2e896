package vesting

import (
	sdkmath "cosmossdk.io/math"

	"y8u-distributor/internal/domain"
)

// activeMonths is the number of schedule months reached after elapsed whole
// months: the TGE month is month one.
func activeMonths(elapsedMonths int64) int64 {
	return elapsedMonths + 1
}

// Unlocked returns the cumulative amount unlocked for a fixed schedule.
// The result never exceeds s.Total, and equals it once the final phase
// boundary has passed.
func Unlocked(s domain.Schedule, elapsedMonths int64) sdkmath.Int {
	if elapsedMonths < 0 {
		return sdkmath.ZeroInt()
	}

	active := activeMonths(elapsedMonths)
	if active > s.Months() {
		return s.Total
	}

	sum := s.InitialUnlock
	remaining := active
	for _, p := range s.Phases {
		if remaining <= 0 {
			break
		}
		n := min(remaining, p.Months)
		sum = sum.Add(p.PerMonth.MulRaw(n))
		remaining -= n
	}

	return sdkmath.MinInt(sum, s.Total)
}

// UnlockedFraction returns the unlocked numerator over s.Denominator,
// clamped to the denominator.
func UnlockedFraction(s domain.SaleSchedule, elapsedMonths int64) int64 {
	if elapsedMonths < 0 {
		return 0
	}

	active := activeMonths(elapsedMonths)
	if active > s.Months() {
		return s.Denominator
	}

	sum := s.Initial
	remaining := active
	for _, p := range s.Phases {
		if remaining <= 0 {
			break
		}
		n := min(remaining, p.Months)
		sum += n * p.Numerator
		remaining -= n
	}

	return min(sum, s.Denominator)
}

// UnlockedFor returns the unlocked share of an account allocation. The
// multiplication happens before the single truncating division.
func UnlockedFor(s domain.SaleSchedule, elapsedMonths int64, allocation sdkmath.Int) sdkmath.Int {
	if !allocation.IsPositive() {
		return sdkmath.ZeroInt()
	}
	frac := UnlockedFraction(s, elapsedMonths)
	if frac == s.Denominator {
		return allocation
	}
	return allocation.MulRaw(frac).QuoRaw(s.Denominator)
}
