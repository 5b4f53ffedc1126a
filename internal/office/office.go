package office

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dyike/CortexOffice/internal/agents"
	"github.com/dyike/CortexOffice/internal/metrics"
	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/internal/portfolio"
	"github.com/dyike/CortexOffice/internal/storage/sqlite"
	"github.com/dyike/CortexOffice/pkg/logger"
)

const dateLayout = "2006-01-02"

// ExhaustedPolicy decides what happens when the round cap is hit without approval.
type ExhaustedPolicy string

const (
	// ExhaustedSkip executes nothing and reports the day as exhausted.
	ExhaustedSkip ExhaustedPolicy = "skip"
	// ExhaustedExecuteLast executes the last recommendation as-is.
	ExhaustedExecuteLast ExhaustedPolicy = "execute_last"
)

const DefaultMaxRounds = 5

// Team is the set of roles sitting in the meeting.
type Team struct {
	Reviewer   *agents.Reviewer
	Strategist *agents.Strategist
	Researcher *agents.Researcher
	Analyst    *agents.Analyst
	Secretary  *agents.Secretary
	Operator   *agents.Operator
}

// Ledger is the portfolio surface the office reads and writes.
type Ledger interface {
	PerformanceReport(ctx context.Context) (string, error)
	LedgerReport() (string, error)
	Snapshot() portfolio.Snapshot
}

// Transcript receives every agent output of one day.
type Transcript interface {
	Record(round int, phase models.Phase, agent, role, content string)
	Finish(status string, rounds int, summary string)
	Close()
	SessionID() string
}

// TranscriptFactory opens the transcript for a trading day.
type TranscriptFactory func(ctx context.Context, tradeDate string) (Transcript, error)

// SnapshotSaver persists the portfolio after each completed day.
type SnapshotSaver interface {
	Save(snap portfolio.Snapshot) error
}

// Limits are the negotiation settings that may change between days.
type Limits struct {
	MaxRounds         int
	ExhaustedPolicy   ExhaustedPolicy
	ApprovalThreshold int
}

// Office runs one negotiation day at a time.
type Office struct {
	team        Team
	ledger      Ledger
	notesDir    string
	transcripts TranscriptFactory
	saver       SnapshotSaver
	now         func() time.Time
	log         *logger.Logger

	mu     sync.Mutex
	limits Limits
	// serializes days; the portfolio guards its own writes
	dayMu sync.Mutex
}

type Option func(*Office)

// WithNotesDir sets where meeting_notes_<date>.txt is appended. Empty disables notes files.
func WithNotesDir(dir string) Option {
	return func(o *Office) { o.notesDir = dir }
}

func WithTranscripts(f TranscriptFactory) Option {
	return func(o *Office) { o.transcripts = f }
}

func WithSnapshotSaver(s SnapshotSaver) Option {
	return func(o *Office) { o.saver = s }
}

func WithLimits(l Limits) Option {
	return func(o *Office) { o.limits = normalizeLimits(l) }
}

func WithClock(now func() time.Time) Option {
	return func(o *Office) {
		if now != nil {
			o.now = now
		}
	}
}

func New(team Team, ledger Ledger, opts ...Option) *Office {
	o := &Office{
		team:   team,
		ledger: ledger,
		now:    time.Now,
		limits: normalizeLimits(Limits{}),
		log:    logger.Get().Named("office"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.team.Reviewer != nil && o.limits.ApprovalThreshold > 0 {
		o.team.Reviewer.SetThreshold(o.limits.ApprovalThreshold)
	}
	return o
}

func normalizeLimits(l Limits) Limits {
	if l.MaxRounds <= 0 {
		l.MaxRounds = DefaultMaxRounds
	}
	if l.ExhaustedPolicy != ExhaustedExecuteLast {
		l.ExhaustedPolicy = ExhaustedSkip
	}
	return l
}

// SetLimits applies new limits from the next day on.
func (o *Office) SetLimits(l Limits) {
	l = normalizeLimits(l)
	o.mu.Lock()
	o.limits = l
	o.mu.Unlock()
	if o.team.Reviewer != nil && l.ApprovalThreshold > 0 {
		o.team.Reviewer.SetThreshold(l.ApprovalThreshold)
	}
	o.log.Infow("limits updated", "max_rounds", l.MaxRounds, "exhausted_policy", l.ExhaustedPolicy, "threshold", l.ApprovalThreshold)
}

func (o *Office) Limits() Limits {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.limits
}

// DayResult summarizes one trading day.
type DayResult struct {
	SessionID    string
	TradeDate    string
	Outcome      models.Phase
	Rounds       int
	Review       *models.Review
	Instructions []models.TradeInstruction
	Execution    agents.Execution
	LedgerReport string
	NotesPath    string
}

// RunDay drives the meeting from task assignment to approval or the round cap, executes the
// resulting trades and produces the ledger report. Any reasoning failure, unparseable score or
// panic ends the day with an error; before trading nothing beyond the appended notes is persisted,
// after trading the portfolio snapshot is saved first.
func (o *Office) RunDay(ctx context.Context) (result *DayResult, err error) {
	o.dayMu.Lock()
	defer o.dayMu.Unlock()

	limits := o.Limits()
	today := o.now()
	st := &models.NegotiationState{TradeDate: today.Format(dateLayout), Phase: models.PhaseAwaitingTasks}
	log := o.log.With("trade_date", st.TradeDate)

	transcript := o.openTranscript(ctx, st.TradeDate)
	if transcript != nil {
		st.SessionID = transcript.SessionID()
	}
	notes := newNotesWriter(o.notesDir, today)

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("trading day panicked", "phase", st.Phase, "round", st.Round, "panic", r,
				"stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("panic in %s: %v", st.Phase, r)
		}
		scored := st.Review != nil
		score := 0
		if scored {
			score = st.Review.Score
		}
		if err != nil {
			log.Errorw("trading day failed", "phase", st.Phase, "round", st.Round, "error", err)
			metrics.RecordDay("error", st.Round, score, scored)
			if transcript != nil {
				transcript.Finish(sqlite.StatusError, st.Round, err.Error())
			}
			return
		}
		metrics.RecordDay(string(result.Outcome), result.Rounds, score, scored)
		if transcript != nil {
			status := sqlite.StatusApproved
			if result.Outcome == models.PhaseExhausted {
				status = sqlite.StatusExhausted
			}
			transcript.Finish(status, result.Rounds, result.Execution.String())
		}
	}()

	record := func(agent, content string) {
		if transcript != nil {
			transcript.Record(st.Round, st.Phase, agent, "assistant", content)
		}
	}

	log.Infow("trading day started", "session", st.SessionID, "max_rounds", limits.MaxRounds)

	st.PerformanceReport, err = o.ledger.PerformanceReport(ctx)
	if err != nil {
		return nil, fmt.Errorf("performance report: %w", err)
	}
	record("portfolio", st.PerformanceReport)

	st.Tasks, err = o.team.Reviewer.AssignTasks(ctx, st.PerformanceReport)
	if err != nil {
		return nil, err
	}
	record(agents.RoleReviewer, st.Tasks)

	for {
		st.Round++
		if err := o.runRound(ctx, st, record); err != nil {
			return nil, err
		}

		note, err := o.team.Secretary.Summarize(ctx, st)
		if err != nil {
			return nil, err
		}
		record(agents.RoleSecretary, note)
		st.MeetingNotes = append(st.MeetingNotes, note)
		if err := notes.Append(st.Round, note); err != nil {
			log.Warnw("meeting notes not written", "path", notes.Path(), "error", err)
		}

		if st.Review.Decision == models.DecisionApprove {
			st.Phase = models.PhaseApproved
			break
		}
		if st.Round >= limits.MaxRounds {
			st.Phase = models.PhaseExhausted
			break
		}
		st.Phase = models.PhaseRevising
		st.Tasks, err = agents.RevisedTasks(st.Recommendation, st.Feedback())
		if err != nil {
			return nil, err
		}
		log.Infow("recommendation sent back for revision", "round", st.Round, "score", st.Review.Score)
	}

	result = &DayResult{
		SessionID: st.SessionID,
		TradeDate: st.TradeDate,
		Outcome:   st.Phase,
		Rounds:    st.Round,
		Review:    st.Review,
		NotesPath: notes.Path(),
	}

	if st.Phase == models.PhaseApproved || limits.ExhaustedPolicy == ExhaustedExecuteLast {
		result.Instructions = agents.ParseRecommendation(st.Recommendation)
		result.Execution = o.team.Operator.Execute(ctx, result.Instructions)
		if result.Execution.Err != nil {
			log.Warnw("some instructions were not executed", "error", result.Execution.Err)
		}
		record(agents.RoleOperator, result.Execution.String())
	} else {
		log.Warnw("round cap reached without approval, no trades executed", "rounds", st.Round)
	}

	// Trades are already applied in memory; persist them before anything else can fail.
	if o.saver != nil {
		if err := o.saver.Save(o.ledger.Snapshot()); err != nil {
			log.Errorw("portfolio not saved, executed trades exist only in memory",
				"fills", result.Execution.Fills, "error", err)
			return nil, fmt.Errorf("save portfolio: %w", err)
		}
	}

	result.LedgerReport, err = o.ledger.LedgerReport()
	if err != nil {
		return nil, fmt.Errorf("ledger report: %w", err)
	}
	record("portfolio", result.LedgerReport)

	log.Infow("trading day finished",
		"outcome", result.Outcome,
		"rounds", result.Rounds,
		"instructions", len(result.Instructions),
		"executed", len(result.Execution.Fills))
	return result, nil
}

// runRound takes one pass from Questioning through Reviewing.
func (o *Office) runRound(ctx context.Context, st *models.NegotiationState, record func(agent, content string)) error {
	var err error
	log := o.log.With("trade_date", st.TradeDate, "round", st.Round)
	log.Infow("meeting round started")

	st.Phase = models.PhaseQuestioning
	if st.MarketQuestions, err = o.team.Strategist.RaiseQuestions(ctx, st.Tasks); err != nil {
		return err
	}
	record(agents.RoleStrategist, st.MarketQuestions)

	st.Phase = models.PhaseResearching
	if st.MarketInfo, err = o.team.Researcher.FetchMarketInfo(ctx, st.MarketQuestions); err != nil {
		return err
	}
	record(agents.RoleResearcher, st.MarketInfo)

	st.Phase = models.PhaseTrendSelection
	if st.StockTrendRequest, err = o.team.Strategist.SelectTrends(ctx, st.MarketInfo); err != nil {
		return err
	}
	record(agents.RoleStrategist, st.StockTrendRequest)

	st.Phase = models.PhaseTrendFetch
	if st.PriceTrends, err = o.team.Researcher.FetchPriceTrends(ctx, st.StockTrendRequest); err != nil {
		return err
	}
	record(agents.RoleResearcher, agents.FormatTrends(st.PriceTrends))

	st.Phase = models.PhaseAnalysis
	if st.AnalysisReport, err = o.team.Analyst.Analyze(ctx, st.PriceTrends); err != nil {
		return err
	}
	record(agents.RoleAnalyst, st.AnalysisReport)

	st.Phase = models.PhaseDeciding
	if st.Recommendation, err = o.team.Strategist.Decide(ctx, st); err != nil {
		return err
	}
	record(agents.RoleStrategist, st.Recommendation)

	st.Phase = models.PhaseReviewing
	review, err := o.team.Reviewer.Evaluate(ctx, st.Recommendation, st.PerformanceReport)
	if err != nil {
		return err
	}
	st.Review = &review
	record(agents.RoleReviewer, review.Feedback)
	log.Infow("recommendation scored", "score", review.Score, "decision", review.Decision)
	return nil
}

func (o *Office) openTranscript(ctx context.Context, tradeDate string) Transcript {
	if o.transcripts == nil {
		return nil
	}
	t, err := o.transcripts(ctx, tradeDate)
	if err != nil {
		o.log.Warnw("transcript unavailable, continuing without it", "error", err)
		return nil
	}
	return t
}
