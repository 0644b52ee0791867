package reporting

import (
	"fmt"
	"strings"

	"stock-backtest-lab/internal/domain"
)

// RenderSummaryText renders the key: value summary block that is printed after
// a backtest and used as the email body.
func RenderSummaryText(s *domain.BacktestSummary) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("trades: %d\n", s.Trades))
	sb.WriteString(fmt.Sprintf("wins: %d\n", s.Wins))
	sb.WriteString(fmt.Sprintf("win_rate: %.4f\n", s.WinRate))
	sb.WriteString(fmt.Sprintf("starting_cash: %.2f\n", s.StartingCash))
	sb.WriteString(fmt.Sprintf("ending_cash: %.2f\n", s.EndingCash))
	sb.WriteString(fmt.Sprintf("total_profit: %.2f\n", s.TotalProfit))
	sb.WriteString(fmt.Sprintf("avg_pct_return_per_trade: %.6f\n", s.AvgPctReturn))
	sb.WriteString(fmt.Sprintf("median_pct_return: %.6f\n", s.MedianPctReturn))
	sb.WriteString(fmt.Sprintf("p10_pct_return: %.6f\n", s.P10PctReturn))
	sb.WriteString(fmt.Sprintf("p90_pct_return: %.6f\n", s.P90PctReturn))
	sb.WriteString(fmt.Sprintf("max_drawdown: %.2f\n", s.MaxDrawdown))
	sb.WriteString(fmt.Sprintf("max_consecutive_losses: %d\n", s.MaxConsecutiveLosses))

	return sb.String()
}

// RenderTrialText renders one trial as a key: value block, used for the
// nightly best-trial email.
func RenderTrialText(t *domain.TrialRecord) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("search_id: %s\n", t.SearchID))
	sb.WriteString(fmt.Sprintf("trial: %d\n", t.TrialNumber))
	sb.WriteString(fmt.Sprintf("params: %s\n", t.Params))
	sb.WriteString(fmt.Sprintf("window: %s to %s\n", domain.FormatDate(t.StartDate), domain.FormatDate(t.EndDate)))
	sb.WriteString(fmt.Sprintf("starting_cash: %.2f\n", t.StartingCash))
	sb.WriteString(fmt.Sprintf("ending_cash: %.2f\n", t.EndingCash))
	sb.WriteString(fmt.Sprintf("trades: %d\n", t.Trades))
	sb.WriteString(fmt.Sprintf("win_rate: %.4f\n", t.WinRate))

	return sb.String()
}
