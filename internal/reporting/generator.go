package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/simulation"
	"y8u-distributor/internal/vesting"
)

// Generator builds reports from a schedule table.
type Generator struct {
	table *vesting.Table
	now   func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator. A nil table uses the default.
func NewGenerator(table *vesting.Table) *Generator {
	if table == nil {
		table = vesting.DefaultTable()
	}
	return &Generator{
		table: table,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a report. res may be nil.
func (g *Generator) Generate(res *simulation.Result) (*Report, error) {
	r := &Report{
		GeneratedAt: g.now(),
		MaxSupply:   g.table.MaxSupply(),
		Simulation:  res,
	}

	for _, pool := range domain.AllPools {
		row, err := g.scheduleRow(pool)
		if err != nil {
			return nil, err
		}
		r.Schedules = append(r.Schedules, row)
	}

	if res != nil {
		totals, err := g.poolTotals(res)
		if err != nil {
			return nil, err
		}
		r.PoolTotals = totals
	}
	return r, nil
}

func (g *Generator) scheduleRow(pool domain.Pool) (ScheduleRow, error) {
	row := ScheduleRow{Pool: pool, Name: pool.DisplayName()}

	if pool.IsSale() {
		s, err := g.table.SaleSchedule(pool)
		if err != nil {
			return ScheduleRow{}, err
		}
		row.Kind = "sale"
		row.Initial = percent(s.Initial, s.Denominator)
		parts := make([]string, len(s.Phases))
		for i, p := range s.Phases {
			parts[i] = fmt.Sprintf("%d×%s", p.Months, percent(p.Numerator, s.Denominator))
		}
		row.Phases = strings.Join(parts, ", ")
		row.Cap = s.Cap
		row.Months = s.Months()
		return row, nil
	}

	s, err := g.table.Schedule(pool)
	if err != nil {
		return ScheduleRow{}, err
	}
	row.Kind = "fixed"
	row.Initial = domain.FormatTokens(s.InitialUnlock)
	parts := make([]string, len(s.Phases))
	for i, p := range s.Phases {
		parts[i] = fmt.Sprintf("%d×%s", p.Months, domain.FormatTokens(p.PerMonth))
	}
	row.Phases = strings.Join(parts, ", ")
	row.Cap = s.Total
	row.Months = s.Months()
	return row, nil
}

func (g *Generator) poolTotals(res *simulation.Result) ([]PoolTotalRow, error) {
	exhausted := make(map[domain.Pool]int)
	for _, s := range res.Steps {
		exhausted[s.Pool] += s.Exhausted
	}

	var rows []PoolTotalRow
	for _, pool := range domain.AllPools {
		final, ok := res.Final(pool)
		if !ok {
			continue
		}
		poolCap, err := g.table.Cap(pool)
		if err != nil {
			return nil, err
		}
		rows = append(rows, PoolTotalRow{
			Pool:      pool,
			Unlocked:  final.Unlocked,
			Claimed:   final.Claimed,
			Remaining: sdkmath.MaxInt(poolCap.Sub(final.Claimed), sdkmath.ZeroInt()),
			Exhausted: exhausted[pool],
		})
	}
	return rows, nil
}

// percent renders num/den as a percentage without trailing zeros.
func percent(num, den int64) string {
	return strconv.FormatFloat(float64(num)*100/float64(den), 'f', -1, 64) + "%"
}
