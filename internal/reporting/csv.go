package reporting

import (
	"fmt"
	"strings"

	"stock-backtest-lab/internal/domain"
)

// LedgerCSVHeader lists the trade ledger columns in output order.
const LedgerCSVHeader = "buy_date,sell_date,symbol,buy_price,sell_price,shares,cost,proceeds,profit,pct_return,cash_after"

// RenderLedgerCSV renders the trade ledger as CSV, header first, in ledger order.
func RenderLedgerCSV(ledger []*domain.TradeRecord) string {
	var sb strings.Builder

	sb.WriteString(LedgerCSVHeader)
	sb.WriteString("\n")

	for _, t := range ledger {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.4f,%.4f,%d,%.2f,%.2f,%.2f,%.6f,%.2f\n",
			domain.FormatDate(t.BuyDate),
			domain.FormatDate(t.SellDate),
			t.Symbol,
			t.BuyPrice,
			t.SellPrice,
			t.Shares,
			t.Cost,
			t.Proceeds,
			t.Profit,
			t.PctReturn,
			t.CashAfter,
		))
	}

	return sb.String()
}

// RenderTrialsCSV renders trial rows in the given order.
func RenderTrialsCSV(trials []*domain.TrialRecord) string {
	var sb strings.Builder

	sb.WriteString("rank,trial_number,trial_id,top_k,hold_days,position_fraction,min_score_pct,")
	sb.WriteString("start_date,end_date,starting_cash,ending_cash,trades,wins,win_rate\n")

	for i, t := range trials {
		sb.WriteString(fmt.Sprintf("%d,%d,%s,%d,%d,%.2f,%.2f,%s,%s,%.2f,%.2f,%d,%d,%.4f\n",
			i+1,
			t.TrialNumber,
			t.TrialID,
			t.Params.TopK,
			t.Params.HoldDays,
			t.Params.PositionFraction,
			t.Params.MinScorePercentile,
			domain.FormatDate(t.StartDate),
			domain.FormatDate(t.EndDate),
			t.StartingCash,
			t.EndingCash,
			t.Trades,
			t.Wins,
			t.WinRate,
		))
	}

	return sb.String()
}
