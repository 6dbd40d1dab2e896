package reporting

import (
	"fmt"
	"strings"

	"y8u-distributor/internal/simulation"
)

// RenderScheduleCSV renders schedule rows as CSV string. Caps are base units;
// initial and phases keep their display form.
func RenderScheduleCSV(rows []ScheduleRow) string {
	var sb strings.Builder

	sb.WriteString("pool,kind,initial,phases,cap,months\n")
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%q,%s,%d\n",
			r.Pool, r.Kind, r.Initial, r.Phases, r.Cap, r.Months))
	}

	return sb.String()
}

// RenderSimulationCSV renders every simulation step as CSV string. Amounts
// are base units.
func RenderSimulationCSV(res *simulation.Result) string {
	var sb strings.Builder

	sb.WriteString("month,pool,unlocked,delta,claimed,claims,exhausted\n")
	for _, s := range res.Steps {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%s,%d,%d\n",
			s.Month, s.Pool, s.Unlocked, s.Delta, s.Claimed, s.Claims, s.Exhausted))
	}

	return sb.String()
}
