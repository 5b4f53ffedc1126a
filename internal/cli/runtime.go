package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dyike/CortexOffice/config"
	"github.com/dyike/CortexOffice/internal/agents"
	"github.com/dyike/CortexOffice/internal/dataflows"
	"github.com/dyike/CortexOffice/internal/llm"
	"github.com/dyike/CortexOffice/internal/office"
	"github.com/dyike/CortexOffice/internal/portfolio"
	"github.com/dyike/CortexOffice/internal/storage"
	"github.com/dyike/CortexOffice/internal/storage/sqlite"
	"github.com/dyike/CortexOffice/pkg/logger"
)

const quoteTTL = time.Minute

// runtime is the wired office and everything it owns.
type runtime struct {
	cfg         config.Config
	market      *sqlite.MarketStore
	gateway     *dataflows.Gateway
	portfolio   *portfolio.Portfolio
	state       *storage.StateStore
	transcripts *sqlite.Store
	office      *office.Office
	closers     []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			logger.Get().Warnw("close failed", "error", err)
		}
	}
}

// openMarket opens the local market-data cache when enabled.
func (r *runtime) openMarket() error {
	if !r.cfg.CacheEnabled {
		return nil
	}
	path, err := storage.MarketDBPath(r.cfg.DataCacheDir)
	if err != nil {
		return err
	}
	store, err := sqlite.OpenMarketStore(path)
	if err != nil {
		return fmt.Errorf("open market cache: %w", err)
	}
	r.market = store
	r.closers = append(r.closers, store.Close)
	return nil
}

// buildGateway wires the provider chain; withCache puts the sqlite cache in front of it.
func (r *runtime) buildGateway(withCache bool) error {
	providers, err := dataflows.ParseProviders(r.cfg.MarketProviders,
		dataflows.LongportCredentials{
			AppKey:      r.cfg.LongportAppKey,
			AppSecret:   r.cfg.LongportAppSecret,
			AccessToken: r.cfg.LongportAccessToken,
		},
		r.cfg.AlpacaAPIKey, r.cfg.AlpacaAPISecret)
	if err != nil {
		return err
	}
	if len(providers) == 0 {
		return errors.New("no market data provider is available")
	}
	opts := []dataflows.GatewayOption{
		dataflows.WithRateLimit(r.cfg.MarketRatePerSecond),
		dataflows.WithQuoteTTL(quoteTTL),
		dataflows.WithConcurrency(r.cfg.ResearchConcurrency),
	}
	if withCache && r.market != nil {
		opts = append(opts, dataflows.WithHistoryCache(r.market))
	}
	r.gateway = dataflows.NewGateway(providers, opts...)
	return nil
}

// loadPortfolio restores the saved snapshot or starts from the configured cash.
func (r *runtime) loadPortfolio() error {
	state, err := storage.NewStateStore(r.cfg.DataDir)
	if err != nil {
		return err
	}
	p := portfolio.New(r.cfg.InitialCash,
		portfolio.WithQuoteSource(r.gateway),
		portfolio.WithReportDir(r.cfg.ReportsDir),
		portfolio.WithLedgerReplay(portfolio.LedgerReplay(r.cfg.LedgerReplay)))
	found, err := state.LoadInto(p)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	if !found {
		logger.Get().Infow("no saved portfolio, starting fresh", "cash", r.cfg.InitialCash.StringFixed(2))
	}
	r.state = state
	r.portfolio = p
	return nil
}

func (r *runtime) openTranscripts() error {
	path, err := storage.TranscriptDBPath(r.cfg.DataDir)
	if err != nil {
		return err
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return fmt.Errorf("open transcripts: %w", err)
	}
	r.transcripts = store
	r.closers = append(r.closers, store.Close)
	return nil
}

func (r *runtime) newsService() *dataflows.NewsService {
	cache := dataflows.NewCacheManager(filepath.Join(r.cfg.DataCacheDir, "news"), 6*time.Hour, r.cfg.CacheEnabled)
	var sources []dataflows.NewsSource
	if r.cfg.NewsAPIKey != "" {
		sources = append(sources, dataflows.NewNewsAPIClient(r.cfg.NewsAPIKey, "", cache))
	}
	sources = append(sources, dataflows.NewGoogleNewsClient("", cache))
	if r.cfg.NewsReddit {
		sources = append(sources, dataflows.NewRedditClient("", cache))
	}
	return dataflows.NewNewsService(r.cfg.NewsPageSize, sources...)
}

func (r *runtime) llmSettings() llm.Settings {
	s := llm.Settings{
		Provider:  r.cfg.LLMProvider,
		Model:     r.cfg.DeepThinkLLM,
		BaseURL:   r.cfg.BackendURL,
		MaxTokens: r.cfg.LLMMaxTokens,
	}
	switch r.cfg.LLMProvider {
	case "openai":
		s.APIKey = r.cfg.OpenAIAPIKey
	default:
		s.APIKey = r.cfg.DeepSeekAPIKey
	}
	return s
}

func (r *runtime) buildOffice(ctx context.Context) error {
	cm, err := llm.NewChatModel(ctx, r.llmSettings())
	if err != nil {
		return err
	}
	reasoner, err := llm.NewChainReasoner(ctx, cm, llm.WithRatePerMinute(r.cfg.LLMRatePerMinute))
	if err != nil {
		return err
	}

	reviewer, err := agents.NewReviewer(reasoner, r.cfg.ApprovalThreshold)
	if err != nil {
		return err
	}
	strategist, err := agents.NewStrategist(reasoner)
	if err != nil {
		return err
	}
	researcher, err := agents.NewResearcher(reasoner, r.newsService(), r.gateway,
		agents.WithLookbackDays(r.cfg.HistoryLookbackDays),
		agents.WithResearchConcurrency(r.cfg.ResearchConcurrency))
	if err != nil {
		return err
	}
	analyst, err := agents.NewAnalyst(reasoner)
	if err != nil {
		return err
	}
	secretary, err := agents.NewSecretary(reasoner)
	if err != nil {
		return err
	}

	transcripts := r.transcripts
	r.office = office.New(office.Team{
		Reviewer:   reviewer,
		Strategist: strategist,
		Researcher: researcher,
		Analyst:    analyst,
		Secretary:  secretary,
		Operator:   agents.NewOperator(r.portfolio, r.gateway),
	}, r.portfolio,
		office.WithNotesDir(r.cfg.ReportsDir),
		office.WithSnapshotSaver(r.state),
		office.WithLimits(limitsFrom(r.cfg)),
		office.WithTranscripts(func(ctx context.Context, tradeDate string) (office.Transcript, error) {
			rec, err := storage.NewTranscriptRecorder(ctx, transcripts, "", tradeDate)
			if err != nil {
				return nil, err
			}
			return rec, nil
		}),
	)
	return nil
}

func limitsFrom(cfg config.Config) office.Limits {
	return office.Limits{
		MaxRounds:         cfg.MaxNegotiationRounds,
		ExhaustedPolicy:   office.ExhaustedPolicy(cfg.ExhaustedPolicy),
		ApprovalThreshold: cfg.ApprovalThreshold,
	}
}

// newRuntime wires the full office.
func newRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	r := &runtime{cfg: cfg}
	steps := []func() error{
		r.openMarket,
		func() error { return r.buildGateway(true) },
		r.loadPortfolio,
		r.openTranscripts,
		func() error { return r.buildOffice(ctx) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			r.Close()
			return nil, err
		}
	}
	return r, nil
}

// newPortfolioRuntime wires only what the reports need.
func newPortfolioRuntime(cfg config.Config) (*runtime, error) {
	r := &runtime{cfg: cfg}
	for _, step := range []func() error{
		r.openMarket,
		func() error { return r.buildGateway(true) },
		r.loadPortfolio,
	} {
		if err := step(); err != nil {
			r.Close()
			return nil, err
		}
	}
	return r, nil
}
