package agents

import (
	"context"
	"strings"

	"github.com/dyike/CortexOffice/internal/llm"
	"github.com/dyike/CortexOffice/internal/models"
)

// Strategist is the value investor who asks the questions and makes the call.
type Strategist struct {
	Role
}

func NewStrategist(reasoner llm.Reasoner) (*Strategist, error) {
	role, err := NewRole(RoleStrategist, "strategist/persona", reasoner)
	if err != nil {
		return nil, err
	}
	return &Strategist{Role: role}, nil
}

// RaiseQuestions asks about the markets the tasks touch.
func (s *Strategist) RaiseQuestions(ctx context.Context, tasks string) (string, error) {
	prompt, err := render("strategist/questions", map[string]string{"Tasks": tasks})
	if err != nil {
		return "", err
	}
	return s.Ask(ctx, prompt)
}

// SelectTrends names the tickers to investigate, with a rationale for each.
func (s *Strategist) SelectTrends(ctx context.Context, marketInfo string) (string, error) {
	prompt, err := render("strategist/trend_selection", map[string]string{"MarketInfo": marketInfo})
	if err != nil {
		return "", err
	}
	return s.Ask(ctx, prompt)
}

// Decide produces the final recommendation, ending in (TICKER, quantity, buy|sell) triplets.
func (s *Strategist) Decide(ctx context.Context, st *models.NegotiationState) (string, error) {
	prompt, err := render("strategist/decision", map[string]string{
		"PerformanceReport": st.PerformanceReport,
		"MarketQuestions":   st.MarketQuestions,
		"MarketInfo":        st.MarketInfo,
		"TrendRequest":      st.StockTrendRequest,
		"PriceTrends":       FormatTrends(st.PriceTrends),
		"AnalysisReport":    st.AnalysisReport,
	})
	if err != nil {
		return "", err
	}
	return s.Ask(ctx, prompt)
}

// FormatTrends renders each ticker's bars under a header, in order.
func FormatTrends(trends []models.PriceTrend) string {
	if len(trends) == 0 {
		return "no tickers"
	}
	var sb strings.Builder
	for _, t := range trends {
		sb.WriteString(t.Symbol)
		sb.WriteString(":\n")
		sb.WriteString(models.FormatBars(t.Bars))
		sb.WriteByte('\n')
	}
	return sb.String()
}
