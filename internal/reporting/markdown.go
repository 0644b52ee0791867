package reporting

import (
	"fmt"
	"strings"
	"time"

	"stock-backtest-lab/internal/domain"
)

// RenderMarkdown renders a search report as Markdown.
func RenderMarkdown(r *SearchReport) string {
	var sb strings.Builder

	sb.WriteString("# Optimizer Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Search: `%s` | Trials: %d\n\n", r.SearchID, r.TrialCount))

	if r.Best == nil {
		sb.WriteString("No trials recorded.\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("Window: %s to %s\n\n", domain.FormatDate(r.StartDate), domain.FormatDate(r.EndDate)))

	sb.WriteString("## Best Parameters\n\n")
	sb.WriteString("| Param | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| top_k | %d |\n", r.Best.Params.TopK))
	sb.WriteString(fmt.Sprintf("| hold_days | %d |\n", r.Best.Params.HoldDays))
	sb.WriteString(fmt.Sprintf("| position_fraction | %.2f |\n", r.Best.Params.PositionFraction))
	sb.WriteString(fmt.Sprintf("| min_score_pct | %.2f |\n", r.Best.Params.MinScorePercentile))
	sb.WriteString(fmt.Sprintf("| ending_cash | %.2f |\n", r.Best.EndingCash))
	sb.WriteString(fmt.Sprintf("| win_rate | %.4f |\n", r.Best.WinRate))
	sb.WriteString(fmt.Sprintf("| trial | %d |\n", r.Best.TrialNumber))
	sb.WriteString("\n")

	sb.WriteString("## Top Trials\n\n")
	sb.WriteString("| Rank | Trial | top_k | hold_days | fraction | min_pct | Trades | Win Rate | Ending Cash |\n")
	sb.WriteString("|------|-------|-------|-----------|----------|---------|--------|----------|-------------|\n")
	for i, t := range r.Top {
		sb.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %.2f | %.2f | %d | %.4f | %.2f |\n",
			i+1,
			t.TrialNumber,
			t.Params.TopK,
			t.Params.HoldDays,
			t.Params.PositionFraction,
			t.Params.MinScorePercentile,
			t.Trades,
			t.WinRate,
			t.EndingCash,
		))
	}
	sb.WriteString("\n")

	return sb.String()
}
