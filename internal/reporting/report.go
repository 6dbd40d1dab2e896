package reporting

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/simulation"
)

// Report is the rendered view of the schedule table and, optionally, a
// simulation run.
type Report struct {
	GeneratedAt time.Time
	MaxSupply   sdkmath.Int
	Schedules   []ScheduleRow
	Simulation  *simulation.Result // nil when only schedules are reported
	PoolTotals  []PoolTotalRow
}

// ScheduleRow summarises one pool schedule.
type ScheduleRow struct {
	Pool    domain.Pool
	Name    string
	Kind    string // "fixed" or "sale"
	Initial string
	Phases  string
	Cap     sdkmath.Int
	Months  int64
}

// PoolTotalRow is a pool's state at the end of a simulation.
type PoolTotalRow struct {
	Pool      domain.Pool
	Unlocked  sdkmath.Int
	Claimed   sdkmath.Int
	Remaining sdkmath.Int // cap minus claimed
	Exhausted int         // claims rejected by the cap over the whole run
}
