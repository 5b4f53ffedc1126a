package portfolio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/pkg/errors"
)

const dateLayout = "2006-01-02"

// LedgerReplay selects how the running cash column of the ledger report is computed.
type LedgerReplay string

const (
	// ReplaySource starts from the current cash, adds buys and subtracts sells.
	// This reproduces the historical report layout and does not describe a real balance.
	ReplaySource LedgerReplay = "source"
	// ReplayCorrected starts from the initial cash, subtracts buys and adds sells, so the
	// last row equals the current cash.
	ReplayCorrected LedgerReplay = "corrected"
)

var hundred = decimal.NewFromInt(100)

// PerformanceFileName is the dated file the performance report is written to.
func PerformanceFileName(date time.Time) string {
	return fmt.Sprintf("portfolio_report_%s.txt", date.Format(dateLayout))
}

// LedgerFileName is the dated file the ledger report is written to.
func LedgerFileName(date time.Time) string {
	return fmt.Sprintf("ledger_report_%s.txt", date.Format(dateLayout))
}

// PerformanceReport prices every holding, renders the report and persists it.
// A holding without a quote fails the call with ErrQuoteUnavailable and nothing is written.
func (p *Portfolio) PerformanceReport(ctx context.Context) (string, error) {
	snap := p.Snapshot()
	asOf := p.now()

	quotes := map[string]models.Quote{}
	if len(snap.Holdings) > 0 {
		if p.quotes == nil {
			return "", fmt.Errorf("%w: no quote source configured", errors.ErrQuoteUnavailable)
		}
		symbols := make([]string, 0, len(snap.Holdings))
		for _, h := range snap.Holdings {
			symbols = append(symbols, h.Symbol)
		}
		quotes = p.quotes.CurrentInfo(ctx, symbols)
	}

	report, err := BuildPerformanceReport(asOf, snap, quotes)
	if err != nil {
		return "", err
	}
	if err := p.persist(PerformanceFileName(asOf), report); err != nil {
		return "", err
	}
	p.log.Infow("performance report generated", "holdings", len(snap.Holdings), "cash", snap.Cash.StringFixed(2))
	return report, nil
}

// LedgerReport renders the ledger with a running cash column and persists it.
func (p *Portfolio) LedgerReport() (string, error) {
	snap := p.Snapshot()
	asOf := p.now()

	report := BuildLedgerReport(asOf, snap, p.replay)
	if err := p.persist(LedgerFileName(asOf), report); err != nil {
		return "", err
	}
	p.log.Infow("ledger report generated", "transactions", len(snap.Ledger), "replay", p.replay)
	return report, nil
}

// BuildPerformanceReport renders a valuation of snap at asOf using quotes.
func BuildPerformanceReport(asOf time.Time, snap Snapshot, quotes map[string]models.Quote) (string, error) {
	var missing []string
	for _, h := range snap.Holdings {
		if _, ok := quotes[h.Symbol]; !ok {
			missing = append(missing, h.Symbol)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", errors.ErrQuoteUnavailable, strings.Join(missing, ", "))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Performance Report as of %s\n\n", asOf.Format(dateLayout))
	fmt.Fprintf(&sb, "Available Cash: $%s\n\n", snap.Cash.StringFixed(2))
	sb.WriteString("Stock Performance:\n")

	firstBuy := earliestBuys(snap.Ledger)
	total := snap.Cash
	for _, h := range snap.Holdings {
		price := quotes[h.Symbol].Price
		qty := decimal.NewFromInt(h.Quantity)
		value := price.Mul(qty)
		total = total.Add(value)

		avg := h.AverageCost()
		rate := decimal.Zero
		if !avg.IsZero() {
			rate = price.Sub(avg).Div(avg).Mul(hundred)
		}

		fmt.Fprintf(&sb, "  %s:\n", h.Symbol)
		fmt.Fprintf(&sb, "    Quantity: %d\n", h.Quantity)
		fmt.Fprintf(&sb, "    Cost Basis: $%s\n", avg.StringFixed(2))
		fmt.Fprintf(&sb, "    Current Price: $%s\n", price.StringFixed(2))
		fmt.Fprintf(&sb, "    Total Value: $%s\n", value.StringFixed(2))
		fmt.Fprintf(&sb, "    Return Rate: %s%%\n", rate.StringFixed(2))
		if d, ok := firstBuy[h.Symbol]; ok {
			fmt.Fprintf(&sb, "    Days Held: %d\n\n", daysBetween(d, asOf))
		} else {
			sb.WriteString("    Days Held: n/a\n\n")
		}
	}

	totalReturn := decimal.Zero
	if !snap.InitialCash.IsZero() {
		totalReturn = total.Sub(snap.InitialCash).Div(snap.InitialCash).Mul(hundred)
	}
	fmt.Fprintf(&sb, "Total Portfolio Value: $%s\n", total.StringFixed(2))
	fmt.Fprintf(&sb, "Total Portfolio Return: %s%%\n", totalReturn.StringFixed(2))
	return sb.String(), nil
}

// BuildLedgerReport renders every transaction with the running cash column computed per mode.
func BuildLedgerReport(asOf time.Time, snap Snapshot, mode LedgerReplay) string {
	rule := strings.Repeat("-", 70) + "\n"

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ledger Report as of %s\n", asOf.Format(dateLayout))
	sb.WriteString(rule)
	fmt.Fprintf(&sb, "%-12s %-10s %-8s %-10s %-12s %-15s\n", "Date", "Type", "Symbol", "Quantity", "Price", "Cash Balance")
	sb.WriteString(rule)

	for _, row := range ReplayLedger(snap, mode) {
		fmt.Fprintf(&sb, "%-12s %-10s %-8s %-10d $%-11s $%-14s\n",
			row.Date.Format(dateLayout), row.Kind, row.Symbol, row.Quantity,
			row.Price.StringFixed(2), row.Balance.StringFixed(2))
	}
	sb.WriteString(rule)
	if mode != ReplayCorrected {
		sb.WriteString("Note: cash balance column starts from current cash, adds buys and subtracts sells.\n")
	}
	return sb.String()
}

// LedgerRow is a transaction with the running cash balance after it.
type LedgerRow struct {
	models.Transaction
	Balance decimal.Decimal
}

// ReplayLedger walks the ledger in order and computes the running cash column.
func ReplayLedger(snap Snapshot, mode LedgerReplay) []LedgerRow {
	rows := make([]LedgerRow, 0, len(snap.Ledger))
	var balance decimal.Decimal
	sign := decimal.NewFromInt(1)
	if mode == ReplayCorrected {
		balance = snap.InitialCash
		sign = sign.Neg()
	} else {
		balance = snap.Cash
	}

	for _, t := range snap.Ledger {
		switch t.Kind {
		case models.ActionBuy:
			balance = balance.Add(t.Amount().Mul(sign))
		case models.ActionSell:
			balance = balance.Sub(t.Amount().Mul(sign))
		}
		rows = append(rows, LedgerRow{Transaction: t, Balance: balance})
	}
	return rows
}

func earliestBuys(ledger []models.Transaction) map[string]time.Time {
	first := make(map[string]time.Time)
	for _, t := range ledger {
		if t.Kind != models.ActionBuy {
			continue
		}
		if d, ok := first[t.Symbol]; !ok || t.Date.Before(d) {
			first[t.Symbol] = t.Date
		}
	}
	return first
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

func (p *Portfolio) persist(name, content string) error {
	if p.reportDir == "" {
		return nil
	}
	return WriteFileAtomic(filepath.Join(p.reportDir, name), []byte(content))
}

// WriteFileAtomic writes data to a temp file in the target directory and renames it into place,
// so readers never see a partially written report.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("flush report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}
