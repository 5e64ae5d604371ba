package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/models"
)

// FormatRunSummary renders a run report as markdown.
func FormatRunSummary(report *models.RunReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Snapshot Run: %s\n\n", report.TargetDate))
	sb.WriteString(fmt.Sprintf("**Run:** %s (%s)\n", report.ID, report.Trigger))
	sb.WriteString(fmt.Sprintf("**Started:** %s\n", report.StartedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**Duration:** %s\n", report.Duration().Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("**Processed:** %d | **Skipped:** %d | **Failed:** %d\n\n",
		report.Count(models.OutcomeProcessed),
		report.Count(models.OutcomeSkipped),
		report.Count(models.OutcomeFailed)))

	if len(report.Outcomes) == 0 {
		sb.WriteString("_No accounts processed._\n")
		return sb.String()
	}

	sb.WriteString("| Account | Action | Status | Fetched | Materialized | Error |\n")
	sb.WriteString("|---------|--------|--------|---------|--------------|-------|\n")
	for _, o := range report.Outcomes {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			o.Account, actionOrDash(o.Action), o.Status,
			joinDatasets(o.Fetched), joinDatasets(o.Materialized), escapeCell(o.Error)))
	}
	return sb.String()
}

// FormatSignals renders the actionable recommendations as markdown. HOLD
// rows are omitted; maxRows caps each table (0 for no cap).
func FormatSignals(set *models.SignalSet, maxRows int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Signals: %s\n\n", set.TargetDate))

	sb.WriteString("## Per Account\n\n")
	perAccount := actionable(set.PerAccount)
	if len(perAccount) == 0 {
		sb.WriteString("_No action required._\n\n")
	} else {
		sb.WriteString("| Account | Symbol | Qty | Avg Cost | Price | Peak | Drawdown | P&L % | Value | Action | Exit Qty |\n")
		sb.WriteString("|---------|--------|-----|----------|-------|------|----------|-------|-------|--------|----------|\n")
		for i, r := range perAccount {
			if maxRows > 0 && i >= maxRows {
				sb.WriteString(fmt.Sprintf("\n_%d more not shown._\n", len(perAccount)-maxRows))
				break
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				r.Account, r.Symbol, common.FormatQty(r.Quantity),
				common.FormatMoney(r.AverageCost), common.FormatMoney(r.CurrentPrice), common.FormatMoney(r.PeakPrice),
				common.FormatPct(r.Drawdown), common.FormatSignedPct(r.PnLPct*100),
				common.FormatMoney(r.Value), r.Action, common.FormatQty(r.ExitQty)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Consolidated\n\n")
	consolidated := actionable(set.Consolidated)
	if len(consolidated) == 0 {
		sb.WriteString("_No action required._\n")
	} else {
		sb.WriteString("| Symbol | Qty | Avg Cost | Price | Peak | Drawdown | Value | P&L | Action | Exit Qty | Allocation |\n")
		sb.WriteString("|--------|-----|----------|-------|------|----------|-------|-----|--------|----------|------------|\n")
		for i, r := range consolidated {
			if maxRows > 0 && i >= maxRows {
				sb.WriteString(fmt.Sprintf("\n_%d more not shown._\n", len(consolidated)-maxRows))
				break
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				r.Symbol, common.FormatQty(r.Quantity),
				common.FormatMoney(r.AverageCost), common.FormatMoney(r.CurrentPrice), common.FormatMoney(r.PeakPrice),
				common.FormatPct(r.Drawdown), common.FormatMoney(r.Value), common.FormatSignedMoney(r.PnLAmount),
				r.Action, common.FormatQty(r.ExitQty), formatAllocations(r.Allocations)))
		}
	}

	if len(set.Excluded) > 0 {
		sb.WriteString(fmt.Sprintf("\n**Excluded:** %s\n", strings.Join(set.Excluded, ", ")))
	}
	return sb.String()
}

// FormatAccounts renders the per-account section of a report snapshot.
func FormatAccounts(snap *models.ReportSnapshot) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Accounts: %s\n\n", snap.TargetDate))
	sb.WriteString("| Account | Holdings As Of | Invested | Market Value | P&L | Cash | Cash-Like |\n")
	sb.WriteString("|---------|----------------|----------|--------------|-----|------|-----------|\n")

	var invested, value, pnl, cash, cashLike float64
	for _, a := range snap.Accounts {
		invested += a.Invested
		value += a.MarketValue
		pnl += a.PnL
		cash += a.AvailableCash
		cashLike += a.CashLikeValue
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s | %s |\n",
			a.Account, dashIfEmpty(a.HoldingsDate),
			common.FormatMoney(a.Invested), common.FormatMoney(a.MarketValue), common.FormatSignedMoney(a.PnL),
			common.FormatMoney(a.AvailableCash), common.FormatMoney(a.CashLikeValue)))
	}
	sb.WriteString(fmt.Sprintf("| **Total** | | **%s** | **%s** | **%s** | **%s** | **%s** |\n",
		common.FormatMoney(invested), common.FormatMoney(value), common.FormatSignedMoney(pnl),
		common.FormatMoney(cash), common.FormatMoney(cashLike)))
	return sb.String()
}

func actionable(recs []models.Recommendation) []models.Recommendation {
	out := make([]models.Recommendation, 0, len(recs))
	for _, r := range recs {
		if r.Action != models.SignalHold {
			out = append(out, r)
		}
	}
	return out
}

func formatAllocations(allocs []models.Allocation) string {
	parts := make([]string, 0, len(allocs))
	sorted := append([]models.Allocation(nil), allocs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Account < sorted[j].Account })
	for _, a := range sorted {
		if a.ExitQty == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", a.Account, common.FormatQty(a.ExitQty)))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func joinDatasets(ds []models.Dataset) string {
	if len(ds) == 0 {
		return "-"
	}
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}

func actionOrDash(a models.PlanAction) string {
	return dashIfEmpty(string(a))
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// escapeCell keeps error text from breaking the table.
func escapeCell(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
