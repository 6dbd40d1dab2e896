// Package vesting evaluates per-pool unlock schedules relative to a single
// token generation event (TGE).
package vesting

import (
	"sync/atomic"
	"time"

	"y8u-distributor/internal/domain"
)

// SecondsPerMonth is the fixed month length used by every schedule.
const SecondsPerMonth int64 = 30 * 24 * 60 * 60

// Clock holds the TGE timestamp. It is written once and never reset.
type Clock struct {
	tge atomic.Pointer[int64]
}

// NewClock returns an unset clock.
func NewClock() *Clock {
	return &Clock{}
}

// Set records now as the TGE. Returns domain.ErrAlreadySet on a second call.
func (c *Clock) Set(now time.Time) error {
	ts := now.Unix()
	if !c.tge.CompareAndSwap(nil, &ts) {
		return domain.ErrAlreadySet
	}
	return nil
}

// Restore installs a previously persisted TGE timestamp.
func (c *Clock) Restore(ts int64) error {
	if !c.tge.CompareAndSwap(nil, &ts) {
		if *c.tge.Load() == ts {
			return nil
		}
		return domain.ErrAlreadySet
	}
	return nil
}

// TGE returns the timestamp and whether it is set.
func (c *Clock) TGE() (int64, bool) {
	p := c.tge.Load()
	if p == nil {
		return 0, false
	}
	return *p, true
}

// ElapsedMonths returns whole months since TGE, floor((now-tge)/month).
// Returns domain.ErrTgeNotStarted while unset.
func (c *Clock) ElapsedMonths(now time.Time) (int64, error) {
	tge, ok := c.TGE()
	if !ok {
		return 0, domain.ErrTgeNotStarted
	}
	return ElapsedMonths(tge, now.Unix()), nil
}

// ElapsedMonths returns whole months between tge and now. A now before tge
// counts as the TGE month.
func ElapsedMonths(tge, now int64) int64 {
	if now < tge {
		return 0
	}
	return (now - tge) / SecondsPerMonth
}
