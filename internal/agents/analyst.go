package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyike/CortexOffice/internal/indicators"
	"github.com/dyike/CortexOffice/internal/llm"
	"github.com/dyike/CortexOffice/internal/models"
)

const analystInstruction = "Financial analysis expert"

// Analyst writes one quantitative report per ticker.
type Analyst struct {
	Role
}

func NewAnalyst(reasoner llm.Reasoner) (*Analyst, error) {
	role, err := NewRole(RoleAnalyst, "", reasoner)
	if err != nil {
		return nil, err
	}
	role.Persona = analystInstruction
	return &Analyst{Role: role}, nil
}

// Analyze reports on each trend in order. No trends yields "no tickers" without a reasoning call.
func (a *Analyst) Analyze(ctx context.Context, trends []models.PriceTrend) (string, error) {
	if len(trends) == 0 {
		return "no tickers", nil
	}
	reports := make([]string, 0, len(trends))
	for _, t := range trends {
		prompt, err := render("analyst/report", map[string]string{
			"Ticker":     t.Symbol,
			"History":    models.FormatBars(t.Bars),
			"Indicators": indicators.Summary(t.Bars),
		})
		if err != nil {
			return "", err
		}
		report, err := a.Ask(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("analyze %s: %w", t.Symbol, err)
		}
		reports = append(reports, fmt.Sprintf("Analysis Report for %s:\n%s\n", t.Symbol, report))
	}
	return strings.Join(reports, "\n"), nil
}
