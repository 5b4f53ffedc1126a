package office

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexOffice/internal/agents"
	"github.com/dyike/CortexOffice/internal/llm"
	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/internal/portfolio"
	"github.com/dyike/CortexOffice/internal/storage/sqlite"
	"github.com/dyike/CortexOffice/pkg/errors"
)

var tradeDay = time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)

// meeting scripts every role. Evaluations are served in order; the last one repeats.
type meeting struct {
	mu             sync.Mutex
	evaluations    []string
	recommendation string
	questionsSeen  []string
	// panicRole makes that role panic instead of answering.
	panicRole string
}

func (m *meeting) Generate(ctx context.Context, instruction, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panicRole != "" && llm.RoleFrom(ctx) == m.panicRole {
		panic("boom")
	}
	switch llm.RoleFrom(ctx) {
	case agents.RoleReviewer:
		if strings.Contains(instruction, "Rubric") {
			ev := m.evaluations[0]
			if len(m.evaluations) > 1 {
				m.evaluations = m.evaluations[1:]
			}
			return ev, nil
		}
		return "Review consumer staples.", nil
	case agents.RoleStrategist:
		switch {
		case strings.Contains(prompt, "Tasks from CEO"):
			m.questionsSeen = append(m.questionsSeen, prompt)
			return "How are beverage makers doing?", nil
		case strings.Contains(prompt, "Which stock symbols"):
			return "KO looks cheap, send me its trend.", nil
		default:
			return m.recommendation, nil
		}
	case agents.RoleResearcher:
		switch {
		case strings.Contains(instruction, "search string"):
			return "beverage makers", nil
		case strings.Contains(instruction, "ticker symbols"):
			return "KO", nil
		default:
			return "Beverage demand is stable.", nil
		}
	case agents.RoleAnalyst:
		return "Steady uptrend.", nil
	case agents.RoleSecretary:
		return "Notes: discussed KO.", nil
	}
	return "", errors.New("unexpected role")
}

type quotes map[string]string

func (q quotes) CurrentInfo(_ context.Context, symbols []string) map[string]models.Quote {
	out := make(map[string]models.Quote)
	for _, s := range symbols {
		if p, ok := q[s]; ok {
			out[s] = models.Quote{Symbol: s, Price: decimal.RequireFromString(p)}
		}
	}
	return out
}

type news struct{}

func (news) Digest(_ context.Context, term string) string { return "Title: " + term }

type trends struct{}

func (trends) PriceTrends(_ context.Context, symbols []string, _ int, _ time.Time) []models.PriceTrend {
	out := make([]models.PriceTrend, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, models.PriceTrend{Symbol: s})
	}
	return out
}

type fakeTranscript struct {
	mu       sync.Mutex
	messages []string
	status   string
	rounds   int
	closed   bool
}

func (f *fakeTranscript) Record(round int, phase models.Phase, agent, role, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, string(phase)+"/"+agent)
}

func (f *fakeTranscript) Finish(status string, rounds int, summary string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.rounds, f.closed = status, rounds, true
}

func (f *fakeTranscript) Close()            {}
func (f *fakeTranscript) SessionID() string { return "session-1" }

type savedSnapshots struct {
	snaps []portfolio.Snapshot
	err   error
}

func (s *savedSnapshots) Save(snap portfolio.Snapshot) error {
	s.snaps = append(s.snaps, snap)
	return s.err
}

type fixture struct {
	office     *Office
	portfolio  *portfolio.Portfolio
	meeting    *meeting
	transcript *fakeTranscript
	saver      *savedSnapshots
	dir        string
}

func newFixture(t *testing.T, m *meeting, limits Limits) *fixture {
	t.Helper()
	dir := t.TempDir()
	clock := func() time.Time { return tradeDay }
	q := quotes{"KO": "60", "PEP": "170"}

	p := portfolio.New(decimal.NewFromInt(10000),
		portfolio.WithQuoteSource(q),
		portfolio.WithReportDir(dir),
		portfolio.WithClock(clock))

	reviewer, err := agents.NewReviewer(m, 88)
	require.NoError(t, err)
	strategist, err := agents.NewStrategist(m)
	require.NoError(t, err)
	researcher, err := agents.NewResearcher(m, news{}, trends{}, agents.WithResearchClock(clock))
	require.NoError(t, err)
	analyst, err := agents.NewAnalyst(m)
	require.NoError(t, err)
	secretary, err := agents.NewSecretary(m)
	require.NoError(t, err)

	tr := &fakeTranscript{}
	saver := &savedSnapshots{}
	o := New(Team{
		Reviewer:   reviewer,
		Strategist: strategist,
		Researcher: researcher,
		Analyst:    analyst,
		Secretary:  secretary,
		Operator:   agents.NewOperator(p, q),
	}, p,
		WithNotesDir(dir),
		WithClock(clock),
		WithLimits(limits),
		WithSnapshotSaver(saver),
		WithTranscripts(func(context.Context, string) (Transcript, error) { return tr, nil }),
	)
	return &fixture{office: o, portfolio: p, meeting: m, transcript: tr, saver: saver, dir: dir}
}

func TestApprovedOnFirstRound(t *testing.T) {
	f := newFixture(t, &meeting{
		evaluations:    []string{"95\nStrong plan."},
		recommendation: "Buy the leader.\n(KO, 10, buy)",
	}, Limits{MaxRounds: 3})

	res, err := f.office.RunDay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.PhaseApproved, res.Outcome)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, "2024-06-03", res.TradeDate)
	assert.Equal(t, "session-1", res.SessionID)
	assert.Equal(t, []models.TradeInstruction{{Symbol: "KO", Quantity: 10, Action: models.ActionBuy}}, res.Instructions)
	require.Len(t, res.Execution.Fills, 1)
	assert.Equal(t, "9400.00", f.portfolio.Cash().StringFixed(2))

	notes, err := os.ReadFile(filepath.Join(f.dir, "meeting_notes_2024-06-03.txt"))
	require.NoError(t, err)
	assert.Equal(t, "=== Round 1 ===\nNotes: discussed KO.\n\n", string(notes))
	assert.FileExists(t, filepath.Join(f.dir, "ledger_report_2024-06-03.txt"))
	assert.FileExists(t, filepath.Join(f.dir, "portfolio_report_2024-06-03.txt"))
	assert.Contains(t, res.LedgerReport, "KO")

	require.Len(t, f.saver.snaps, 1)
	assert.Len(t, f.saver.snaps[0].Ledger, 1)

	assert.Equal(t, sqlite.StatusApproved, f.transcript.status)
	assert.Equal(t, 1, f.transcript.rounds)
	assert.Contains(t, f.transcript.messages, "reviewing/reviewer")
	assert.Contains(t, f.transcript.messages, "trend_fetch/researcher")
}

func TestRevisionCarriesFeedbackIntoNextTasks(t *testing.T) {
	f := newFixture(t, &meeting{
		evaluations:    []string{"70\nToo concentrated in one name.", "92\nBetter."},
		recommendation: "(KO, 5, buy)",
	}, Limits{MaxRounds: 5})

	res, err := f.office.RunDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseApproved, res.Outcome)
	assert.Equal(t, 2, res.Rounds)
	assert.Equal(t, 92, res.Review.Score)

	require.Len(t, f.meeting.questionsSeen, 2)
	assert.Contains(t, f.meeting.questionsSeen[0], "Review consumer staples.")
	assert.Contains(t, f.meeting.questionsSeen[1], "Original Recommendation:\n(KO, 5, buy)")
	assert.Contains(t, f.meeting.questionsSeen[1], "Too concentrated in one name.")

	notes, err := os.ReadFile(res.NotesPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(notes), "=== Round"))
}

func TestExhaustedSkipExecutesNothing(t *testing.T) {
	f := newFixture(t, &meeting{
		evaluations:    []string{"70\nNo."},
		recommendation: "(KO, 5, buy)",
	}, Limits{MaxRounds: 2, ExhaustedPolicy: ExhaustedSkip})

	res, err := f.office.RunDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseExhausted, res.Outcome)
	assert.Equal(t, 2, res.Rounds)
	assert.Empty(t, res.Instructions)
	assert.Equal(t, "10000.00", f.portfolio.Cash().StringFixed(2))
	assert.Equal(t, sqlite.StatusExhausted, f.transcript.status)
	assert.FileExists(t, filepath.Join(f.dir, "ledger_report_2024-06-03.txt"))
}

func TestExhaustedExecuteLastTradesLastRecommendation(t *testing.T) {
	f := newFixture(t, &meeting{
		evaluations:    []string{"80\nClose."},
		recommendation: "(KO, 5, buy)",
	}, Limits{MaxRounds: 1, ExhaustedPolicy: ExhaustedExecuteLast})

	res, err := f.office.RunDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseExhausted, res.Outcome)
	assert.Len(t, res.Execution.Fills, 1)
	assert.Equal(t, "9700.00", f.portfolio.Cash().StringFixed(2))
}

func TestFailedTradesDoNotFailTheDay(t *testing.T) {
	f := newFixture(t, &meeting{
		evaluations:    []string{"99"},
		recommendation: "(PEP, 1000, buy) (KO, 1, sell) (KO, 2, buy)",
	}, Limits{})

	res, err := f.office.RunDay(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Execution.Fills, 1)
	assert.Len(t, res.Execution.Skipped, 2)
	assert.ErrorIs(t, res.Execution.Err, errors.ErrInsufficientFunds)
	assert.ErrorIs(t, res.Execution.Err, errors.ErrUnknownSymbol)
}

func TestUnparseableScoreFailsTheDay(t *testing.T) {
	f := newFixture(t, &meeting{
		evaluations:    []string{"Looks fine to me."},
		recommendation: "(KO, 5, buy)",
	}, Limits{})

	res, err := f.office.RunDay(context.Background())
	assert.Nil(t, res)
	assert.ErrorIs(t, err, errors.ErrEvaluationParse)
	assert.Equal(t, sqlite.StatusError, f.transcript.status)
	assert.Empty(t, f.saver.snaps)
	assert.NoFileExists(t, filepath.Join(f.dir, "ledger_report_2024-06-03.txt"))
}

func TestPanickingRoleFailsTheDay(t *testing.T) {
	f := newFixture(t, &meeting{
		evaluations:    []string{"95"},
		recommendation: "(KO, 5, buy)",
		panicRole:      agents.RoleAnalyst,
	}, Limits{})

	var (
		res *DayResult
		err error
	)
	require.NotPanics(t, func() { res, err = f.office.RunDay(context.Background()) })
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), string(models.PhaseAnalysis))

	assert.True(t, f.transcript.closed)
	assert.Equal(t, sqlite.StatusError, f.transcript.status)
	assert.Equal(t, 1, f.transcript.rounds)
	assert.Empty(t, f.saver.snaps)
	assert.Empty(t, f.portfolio.Ledger())
}

func TestSaveFailureAfterTradingKeepsLedgerReportUnwritten(t *testing.T) {
	f := newFixture(t, &meeting{evaluations: []string{"95"}, recommendation: "(KO, 5, buy)"}, Limits{})
	f.saver.err = errors.New("disk full")

	res, err := f.office.RunDay(context.Background())
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, sqlite.StatusError, f.transcript.status)

	require.Len(t, f.saver.snaps, 1)
	saved := f.saver.snaps[0]
	require.Len(t, saved.Ledger, 1)
	assert.Equal(t, "KO", saved.Ledger[0].Symbol)
	assert.NoFileExists(t, filepath.Join(f.dir, "ledger_report_2024-06-03.txt"))
}

func TestMissingQuoteFailsPerformanceReport(t *testing.T) {
	f := newFixture(t, &meeting{evaluations: []string{"95"}}, Limits{})
	require.NoError(t, f.portfolio.Buy("MSFT", 1, decimal.NewFromInt(300)))

	_, err := f.office.RunDay(context.Background())
	assert.ErrorIs(t, err, errors.ErrQuoteUnavailable)
}

func TestSetLimitsUpdatesReviewer(t *testing.T) {
	f := newFixture(t, &meeting{evaluations: []string{"90"}, recommendation: "hold"}, Limits{})
	f.office.SetLimits(Limits{MaxRounds: 1, ApprovalThreshold: 95})

	assert.Equal(t, 1, f.office.Limits().MaxRounds)
	assert.Equal(t, ExhaustedSkip, f.office.Limits().ExhaustedPolicy)

	res, err := f.office.RunDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.PhaseExhausted, res.Outcome)
}
