package agents

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexOffice/internal/llm"
	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/pkg/errors"
)

type call struct {
	Role        string
	Instruction string
	Prompt      string
}

// scriptedReasoner answers with reply(call) and records every call.
type scriptedReasoner struct {
	mu    sync.Mutex
	calls []call
	reply func(c call) (string, error)
}

func (s *scriptedReasoner) Generate(ctx context.Context, instruction, prompt string) (string, error) {
	c := call{Role: llm.RoleFrom(ctx), Instruction: instruction, Prompt: prompt}
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
	return s.reply(c)
}

func (s *scriptedReasoner) byRole(role string) []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []call
	for _, c := range s.calls {
		if c.Role == role {
			out = append(out, c)
		}
	}
	return out
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"bare number", "95\nGreat work.", 95, false},
		{"leading blank lines", "\n\n  70  \nNeeds work", 70, false},
		{"markup", "**Score: 91/100**\nreasons", 91, false},
		{"no number on first line", "Excellent proposal\n95", 0, true},
		{"out of range", "250\n", 0, true},
		{"empty", "   \n ", 0, true},
		{"labelled", "Score: 88 - borderline", 88, false},
		{"oversized number before a valid one", "1000 points then 95", 0, true},
		{"decimal out of ten", "9.5/10\nStrong", 0, true},
		{"number after prose", "I give it 95", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScore(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrEvaluationParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideIsStrictlyAboveThreshold(t *testing.T) {
	assert.Equal(t, models.DecisionApprove, Decide(95, 88).Decision)
	assert.Equal(t, models.DecisionApprove, Decide(89, 88).Decision)
	assert.Equal(t, models.DecisionRevise, Decide(88, 88).Decision)
	assert.Equal(t, models.DecisionRevise, Decide(70, 88).Decision)
}

func TestReviewerEvaluate(t *testing.T) {
	r := &scriptedReasoner{reply: func(c call) (string, error) {
		if strings.Contains(c.Prompt, "cautious") {
			return "70\nToo timid.", nil
		}
		return "95\nApproved.", nil
	}}
	rev, err := NewReviewer(r, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultApprovalThreshold, rev.Threshold())

	review, err := rev.Evaluate(context.Background(), "(AAPL, 10, buy)", "report")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApprove, review.Decision)
	assert.Equal(t, 95, review.Score)

	review, err = rev.Evaluate(context.Background(), "cautious (AAPL, 1, buy)", "report")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionRevise, review.Decision)
	assert.Equal(t, "70\nToo timid.", review.Feedback)

	calls := r.byRole(RoleReviewer)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].Instruction, "Alignment with Long-term Strategy (30 points)")
	assert.Contains(t, calls[0].Instruction, "above 88")
}

func TestReviewerEvaluatePropagatesParseFailure(t *testing.T) {
	r := &scriptedReasoner{reply: func(call) (string, error) { return "I like it", nil }}
	rev, err := NewReviewer(r, 88)
	require.NoError(t, err)
	_, err = rev.Evaluate(context.Background(), "x", "y")
	assert.ErrorIs(t, err, errors.ErrEvaluationParse)
}

func TestRevisedTasksEmbedRecommendationAndFeedback(t *testing.T) {
	tasks, err := RevisedTasks("(MSFT, 5, buy)", "70\nreduce size")
	require.NoError(t, err)
	assert.Contains(t, tasks, "Original Recommendation:\n(MSFT, 5, buy)")
	assert.Contains(t, tasks, "CEO's Feedback:\n70\nreduce size")
}

func TestSplitSearchTerms(t *testing.T) {
	assert.Equal(t, []string{"semiconductors", "US banks"}, SplitSearchTerms("semiconductors, US banks,"))
	assert.Equal(t, []string{"energy stocks", "utilities outlook"}, SplitSearchTerms("- energy stocks\n\n- utilities outlook\n"))
	assert.Empty(t, SplitSearchTerms("  \n "))
}

func TestParseTickers(t *testing.T) {
	assert.Equal(t, []string{"AAPL", "MSFT", "BRK.B"}, ParseTickers(" aapl, $MSFT ,BRK.B, AAPL, , not a ticker"))
	assert.Empty(t, ParseTickers(""))
}

type fakeNews struct{}

func (fakeNews) Digest(_ context.Context, term string) string { return "news about " + term }

type fakeTrends struct {
	asked []string
	asOf  time.Time
	days  int
}

func (f *fakeTrends) PriceTrends(_ context.Context, symbols []string, lookbackDays int, asOf time.Time) []models.PriceTrend {
	f.asked, f.days, f.asOf = symbols, lookbackDays, asOf
	out := make([]models.PriceTrend, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, models.PriceTrend{Symbol: s})
	}
	return out
}

func TestResearcherFetchMarketInfoKeepsTermOrder(t *testing.T) {
	r := &scriptedReasoner{reply: func(c call) (string, error) {
		if strings.Contains(c.Instruction, "search string") {
			return "alpha, beta, gamma", nil
		}
		if strings.HasSuffix(c.Prompt, "beta") {
			time.Sleep(10 * time.Millisecond)
		}
		return "summary of " + strings.TrimPrefix(c.Prompt, "news about "), nil
	}}
	res, err := NewResearcher(r, fakeNews{}, &fakeTrends{}, WithResearchConcurrency(3))
	require.NoError(t, err)

	info, err := res.FetchMarketInfo(context.Background(), "what about alpha?")
	require.NoError(t, err)
	assert.Equal(t,
		"Results for 'alpha':\nsummary of alpha\n\nResults for 'beta':\nsummary of beta\n\nResults for 'gamma':\nsummary of gamma\n",
		info)
}

func TestResearcherFetchMarketInfoFailsOnReasoningError(t *testing.T) {
	r := &scriptedReasoner{reply: func(c call) (string, error) {
		if strings.Contains(c.Instruction, "search string") {
			return "alpha", nil
		}
		return "", errors.External("reasoning", fmt.Errorf("boom"))
	}}
	res, err := NewResearcher(r, fakeNews{}, &fakeTrends{})
	require.NoError(t, err)
	_, err = res.FetchMarketInfo(context.Background(), "q")
	assert.ErrorIs(t, err, errors.ErrExternalService)
}

func TestResearcherFetchPriceTrends(t *testing.T) {
	asOf := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	r := &scriptedReasoner{reply: func(call) (string, error) { return "KO, PEP", nil }}
	trends := &fakeTrends{}
	res, err := NewResearcher(r, fakeNews{}, trends, WithResearchClock(func() time.Time { return asOf }))
	require.NoError(t, err)

	got, err := res.FetchPriceTrends(context.Background(), "look at KO and PEP")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"KO", "PEP"}, trends.asked)
	assert.Equal(t, DefaultLookbackDays, trends.days)
	assert.Equal(t, asOf, trends.asOf)
	assert.Contains(t, r.calls[0].Instruction, "output only ticker symbols, separated by comma")
}

func TestAnalystReportsPerTicker(t *testing.T) {
	r := &scriptedReasoner{reply: func(c call) (string, error) {
		if strings.Contains(c.Prompt, "for KO") {
			return "KO looks steady", nil
		}
		return "PEP looks soft", nil
	}}
	a, err := NewAnalyst(r)
	require.NoError(t, err)

	report, err := a.Analyze(context.Background(), []models.PriceTrend{{Symbol: "KO"}, {Symbol: "PEP"}})
	require.NoError(t, err)
	assert.Equal(t, "Analysis Report for KO:\nKO looks steady\n\nAnalysis Report for PEP:\nPEP looks soft\n", report)
	for _, c := range r.calls {
		assert.Equal(t, "Financial analysis expert", c.Instruction)
		assert.Equal(t, RoleAnalyst, c.Role)
	}

	empty, err := a.Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "no tickers", empty)
}

func TestSecretaryCoversEveryArtifact(t *testing.T) {
	r := &scriptedReasoner{reply: func(c call) (string, error) { return "notes", nil }}
	s, err := NewSecretary(r)
	require.NoError(t, err)

	st := &models.NegotiationState{
		Tasks: "T1", MarketQuestions: "Q1", MarketInfo: "I1", StockTrendRequest: "R1",
		AnalysisReport: "A1", Recommendation: "C1", Review: &models.Review{Feedback: "F1"},
	}
	notes, err := s.Summarize(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "notes", notes)
	for _, want := range []string{"T1", "Q1", "I1", "R1", "A1", "C1", "F1"} {
		assert.Contains(t, r.calls[0].Prompt, want)
	}
}

func TestParseRecommendation(t *testing.T) {
	text := `After careful thought I recommend the following.
(AAPL, 50, buy) because of services growth.
Also trim search exposure: ( googl ,3 , SELL ).
Ignore (MSFT, 0, buy) and (hold this).`

	got := ParseRecommendation(text)
	assert.Equal(t, []models.TradeInstruction{
		{Symbol: "AAPL", Quantity: 50, Action: models.ActionBuy},
		{Symbol: "GOOGL", Quantity: 3, Action: models.ActionSell},
	}, got)

	none := ParseRecommendation("Hold everything today.")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

type stubQuotes map[string]string

func (s stubQuotes) CurrentInfo(_ context.Context, symbols []string) map[string]models.Quote {
	out := make(map[string]models.Quote)
	for _, sym := range symbols {
		if p, ok := s[sym]; ok {
			out[sym] = models.Quote{Symbol: sym, Price: decimal.RequireFromString(p)}
		}
	}
	return out
}

type recordingTrader struct {
	cash   decimal.Decimal
	trades []string
}

func (r *recordingTrader) Buy(symbol string, quantity int64, price decimal.Decimal) error {
	cost := price.Mul(decimal.NewFromInt(quantity))
	if cost.GreaterThan(r.cash) {
		return errors.ErrInsufficientFunds
	}
	r.cash = r.cash.Sub(cost)
	r.trades = append(r.trades, fmt.Sprintf("buy %d %s @%s", quantity, symbol, price))
	return nil
}

func (r *recordingTrader) Sell(symbol string, quantity int64, price decimal.Decimal) error {
	return errors.ErrUnknownSymbol
}

func TestOperatorExecutesIndependently(t *testing.T) {
	trader := &recordingTrader{cash: decimal.NewFromInt(1000)}
	op := NewOperator(trader, stubQuotes{"KO": "60", "PEP": "170"})

	exec := op.Execute(context.Background(), []models.TradeInstruction{
		{Symbol: "KO", Quantity: 10, Action: models.ActionBuy},
		{Symbol: "PEP", Quantity: 100, Action: models.ActionBuy},
		{Symbol: "ZZZZ", Quantity: 1, Action: models.ActionBuy},
		{Symbol: "KO", Quantity: 1, Action: models.ActionSell},
		{Symbol: "KO", Quantity: 5, Action: models.ActionBuy},
	})

	assert.Equal(t, []string{"buy 10 KO @60", "buy 5 KO @60"}, trader.trades)
	assert.Len(t, exec.Fills, 2)
	assert.Len(t, exec.Skipped, 3)
	assert.ErrorIs(t, exec.Err, errors.ErrInsufficientFunds)
	assert.ErrorIs(t, exec.Err, errors.ErrQuoteUnavailable)
	assert.ErrorIs(t, exec.Err, errors.ErrUnknownSymbol)
	assert.Equal(t, "2 executed, 3 skipped", exec.String())
}
