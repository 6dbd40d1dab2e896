package reporting

import (
	"fmt"
	"strings"
	"time"

	"y8u-distributor/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Token Distribution Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Max supply: %s\n\n", domain.FormatTokens(r.MaxSupply)))

	// Schedules
	sb.WriteString("## Schedules\n\n")
	sb.WriteString("| Pool | Kind | Initial | Phases (months × tranche) | Cap | Months |\n")
	sb.WriteString("|------|------|---------|---------------------------|-----|--------|\n")
	for _, s := range r.Schedules {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d |\n",
			s.Name, s.Kind, s.Initial, s.Phases, domain.FormatTokens(s.Cap), s.Months))
	}
	sb.WriteString("\n")

	if r.Simulation == nil {
		return sb.String()
	}
	res := r.Simulation

	sb.WriteString("## Simulation\n\n")
	sb.WriteString(fmt.Sprintf("TGE: %s | Months: 0-%d | Minted: %s\n\n",
		res.Start.Format(time.RFC3339), res.Months, domain.FormatTokens(res.Minted)))

	// Pool totals
	sb.WriteString("### Pool Totals\n\n")
	sb.WriteString("| Pool | Unlocked | Claimed | Remaining | Rejected by cap |\n")
	sb.WriteString("|------|----------|---------|-----------|-----------------|\n")
	for _, p := range r.PoolTotals {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d |\n",
			p.Pool.DisplayName(), domain.FormatTokens(p.Unlocked), domain.FormatTokens(p.Claimed),
			domain.FormatTokens(p.Remaining), p.Exhausted))
	}
	sb.WriteString("\n")

	// Cumulative claimed per month, one column per pool
	sb.WriteString("### Claimed by Month\n\n")
	sb.WriteString("| Month |")
	for _, pool := range domain.AllPools {
		sb.WriteString(" " + pool.DisplayName() + " |")
	}
	sb.WriteString("\n|-------|")
	for range domain.AllPools {
		sb.WriteString("------|")
	}
	sb.WriteString("\n")
	for m := int64(0); m <= res.Months; m++ {
		sb.WriteString(fmt.Sprintf("| %d |", m))
		for _, s := range res.Month(m) {
			sb.WriteString(" " + domain.FormatTokens(s.Claimed) + " |")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
