package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexOffice/internal/cache"
	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/internal/office"
	"github.com/dyike/CortexOffice/internal/portfolio"
	"github.com/dyike/CortexOffice/internal/storage/sqlite"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Background(lipgloss.Color("#1F2937")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	buyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	sellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// sqlite CURRENT_TIMESTAMP layout
const sqliteTime = "2006-01-02 15:04:05"

func money(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return "$" + humanize.FormatFloat("#,###.##", f)
}

func outcomeStyle(p models.Phase) lipgloss.Style {
	switch p {
	case models.PhaseApproved:
		return successStyle
	case models.PhaseExhausted:
		return warnStyle
	default:
		return mutedStyle
	}
}

func renderDayResult(res *office.DayResult, snap portfolio.Snapshot) string {
	if res == nil {
		return mutedStyle.Render("no result")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Trading day " + res.TradeDate))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s after %d round(s)\n",
		headerStyle.Render("Outcome:"), outcomeStyle(res.Outcome).Render(string(res.Outcome)), res.Rounds)
	if res.Review != nil {
		fmt.Fprintf(&b, "%s %d (%s)\n", headerStyle.Render("Score:"), res.Review.Score, res.Review.Decision)
	}
	if res.SessionID != "" {
		fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Session:"), mutedStyle.Render(res.SessionID))
	}
	if res.NotesPath != "" {
		fmt.Fprintf(&b, "%s %s\n", headerStyle.Render("Notes:"), mutedStyle.Render(res.NotesPath))
	}

	if len(res.Instructions) > 0 {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Instructions"))
		b.WriteString("\n")
		for _, in := range res.Instructions {
			b.WriteString("  ")
			b.WriteString(renderInstruction(in))
			b.WriteString("\n")
		}
		b.WriteString(mutedStyle.Render("  " + res.Execution.String()))
		b.WriteString("\n")
		for _, f := range res.Execution.Fills {
			fmt.Fprintf(&b, "  %s %s @ %s\n", successStyle.Render("filled"), f.Symbol, money(f.Price))
		}
		if res.Execution.Err != nil {
			b.WriteString("  ")
			b.WriteString(errorStyle.Render(res.Execution.Err.Error()))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(renderPortfolio(snap))
	return b.String()
}

func renderInstruction(in models.TradeInstruction) string {
	style := buyStyle
	if in.Action == models.ActionSell {
		style = sellStyle
	}
	return fmt.Sprintf("%s %s %s", style.Render(strings.ToUpper(string(in.Action))),
		humanize.Comma(in.Quantity), in.Symbol)
}

func renderPortfolio(snap portfolio.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s of %s initial\n",
		headerStyle.Render("Cash:"), money(snap.Cash), money(snap.InitialCash))
	if len(snap.Holdings) == 0 {
		b.WriteString(mutedStyle.Render("no open positions"))
	} else {
		rows := make([]string, 0, len(snap.Holdings)+1)
		rows = append(rows, headerStyle.Render(fmt.Sprintf("%-8s %10s %14s %12s", "SYMBOL", "SHARES", "COST", "AVG")))
		for _, h := range snap.Holdings {
			rows = append(rows, fmt.Sprintf("%-8s %10s %14s %12s",
				h.Symbol, humanize.Comma(h.Quantity), money(h.TotalCost), money(h.AverageCost())))
		}
		b.WriteString(panelStyle.Render(strings.Join(rows, "\n")))
	}
	fmt.Fprintf(&b, "\n%s\n", mutedStyle.Render(fmt.Sprintf("%d ledger entries", len(snap.Ledger))))
	return b.String()
}

func renderCacheResult(op string, res cache.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Cache " + op))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "symbols  %s\n", humanize.Comma(int64(res.Symbols)))
	fmt.Fprintf(&b, "saved    %s\n", successStyle.Render(humanize.Comma(int64(res.Saved))))
	fmt.Fprintf(&b, "skipped  %s\n", humanize.Comma(int64(res.Skipped)))
	fmt.Fprintf(&b, "bars     %s\n", humanize.Comma(int64(res.Bars)))
	fmt.Fprintf(&b, "took     %s\n", res.Duration.Round(time.Millisecond))
	if res.Failed > 0 {
		fmt.Fprintf(&b, "failed   %s %s\n", errorStyle.Render(humanize.Comma(int64(res.Failed))),
			mutedStyle.Render(strings.Join(res.FailedSet, ", ")))
	}
	return b.String()
}

func renderCacheStats(st cache.Stats) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Market cache"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "stocks       %s\n", humanize.Comma(st.Stocks))
	fmt.Fprintf(&b, "data points  %s\n", humanize.Comma(st.DataPoints))
	if st.FirstDate != "" {
		fmt.Fprintf(&b, "range        %s .. %s\n", st.FirstDate, st.LastDate)
	}
	return b.String()
}

func relTime(ts string) string {
	t, err := time.ParseInLocation(sqliteTime, ts, time.UTC)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func renderSessions(sessions []sqlite.SessionWithMeta) string {
	if len(sessions) == 0 {
		return mutedStyle.Render("no sessions recorded yet")
	}
	rows := []string{headerStyle.Render(fmt.Sprintf("%-6s %-36s %-10s %-10s %6s  %s",
		"ROW", "SESSION", "DATE", "STATUS", "ROUNDS", "STARTED"))}
	for _, s := range sessions {
		rows = append(rows, fmt.Sprintf("%-6d %-36s %-10s %-10s %6d  %s",
			s.RowID, s.ID, s.TradeDate, s.Status, s.Rounds, mutedStyle.Render(relTime(s.CreatedAt))))
	}
	last := sessions[len(sessions)-1].RowID
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("older: --cursor %d", last)))
	return strings.Join(rows, "\n")
}

func renderTranscript(sess sqlite.SessionWithMeta, msgs []sqlite.MessageWithMeta) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Session " + sess.ID))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s  %s  %d round(s)  %s\n\n", sess.TradeDate, sess.Status, sess.Rounds,
		mutedStyle.Render(relTime(sess.CreatedAt)))
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s %s\n", headerStyle.Render(fmt.Sprintf("[r%d %s] %s", m.Round, m.Phase, m.Agent)),
			mutedStyle.Render(m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	if sess.Summary != "" {
		b.WriteString(panelStyle.Render(sess.Summary))
		b.WriteString("\n")
	}
	return b.String()
}
