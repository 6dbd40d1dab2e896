package vesting

import (
	"sync"
	"time"
)

// TimeSource supplies the current time.
type TimeSource interface {
	Now() time.Time
}

// SystemTime reads the wall clock.
type SystemTime struct{}

// Now returns time.Now().
func (SystemTime) Now() time.Time {
	return time.Now()
}

// ManualTime is a settable time source for simulations and tests.
type ManualTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualTime creates a manual time source starting at start.
func NewManualTime(start time.Time) *ManualTime {
	return &ManualTime{now: start}
}

// Now returns the current manual time.
func (m *ManualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves time forward by d.
func (m *ManualTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// AdvanceMonths moves time forward by n vesting months plus slack seconds.
func (m *ManualTime) AdvanceMonths(n int64, slack time.Duration) {
	m.Advance(time.Duration(n*SecondsPerMonth)*time.Second + slack)
}
