package dataflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dyike/CortexOffice/internal/cache"
	"github.com/dyike/CortexOffice/internal/metrics"
	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/pkg/errors"
	"github.com/dyike/CortexOffice/pkg/logger"
)

// HistoryCache is the local market-data cache consulted before any provider.
type HistoryCache interface {
	Coverage(ctx context.Context, symbol string) (first, last time.Time, ok bool, err error)
	GetStockData(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)
	CompanyName(ctx context.Context, symbol string) (string, error)
}

// Gateway prices symbols and fetches daily history through an ordered provider chain.
// A symbol is served by the first provider that answers.
type Gateway struct {
	providers   []Provider
	history     HistoryCache
	quotes      *cache.QuoteCache
	limiter     *rate.Limiter
	concurrency int
	log         *logger.Logger
}

type GatewayOption func(*Gateway)

func WithHistoryCache(h HistoryCache) GatewayOption {
	return func(g *Gateway) { g.history = h }
}

// WithRateLimit caps provider calls per second across the gateway.
func WithRateLimit(perSecond float64) GatewayOption {
	return func(g *Gateway) {
		if perSecond > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithQuoteTTL(ttl time.Duration) GatewayOption {
	return func(g *Gateway) { g.quotes = cache.NewQuoteCache(ttl) }
}

func WithConcurrency(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

func NewGateway(providers []Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		providers:   providers,
		concurrency: 4,
		log:         logger.Get().Named("gateway"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// Quote prices one symbol, trying each provider in order.
func (g *Gateway) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return models.Quote{}, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	symbol = NormalizeSymbol(symbol)
	if q, ok := g.quotes.Get(symbol); ok {
		return q, nil
	}
	if len(g.providers) == 0 {
		return models.Quote{}, quoteUnavailable("gateway", symbol)
	}

	var errs errors.MultiError
	for _, p := range g.providers {
		if err := g.wait(ctx); err != nil {
			return models.Quote{}, err
		}
		q, err := p.Quote(ctx, symbol)
		metrics.RecordGatewayCall(p.Name(), "quote", err)
		if err != nil {
			errs.Add(fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if q.Name == "" {
			q.Name = g.companyName(ctx, symbol)
		}
		g.quotes.Set(q)
		return q, nil
	}
	return models.Quote{}, errs.ToError()
}

// CurrentInfo prices every symbol it can. Symbols that fail are logged and left out.
func (g *Gateway) CurrentInfo(ctx context.Context, symbols []string) map[string]models.Quote {
	unique := dedupe(symbols)
	results := make([]*models.Quote, len(unique))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, sym := range unique {
		eg.Go(func() error {
			q, err := g.Quote(egCtx, sym)
			if err != nil {
				g.log.Warnw("quote unavailable", "symbol", sym, "error", err)
				return nil
			}
			results[i] = &q
			return nil
		})
	}
	_ = eg.Wait()

	out := make(map[string]models.Quote, len(unique))
	for i, sym := range unique {
		if results[i] != nil {
			out[sym] = *results[i]
		}
	}
	return out
}

// History returns ascending daily bars for [start, end] or the last provider error.
func (g *Gateway) History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	symbol = NormalizeSymbol(symbol)
	start, end = civilDate(start), civilDate(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", errors.ErrInvalidInput, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	if bars, ok := g.cachedHistory(ctx, symbol, start, end); ok {
		return bars, nil
	}

	var errs errors.MultiError
	for _, p := range g.providers {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		bars, err := p.History(ctx, symbol, start, end)
		metrics.RecordGatewayCall(p.Name(), "history", err)
		if err != nil {
			errs.Add(fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if len(bars) == 0 {
			errs.Add(fmt.Errorf("%s: no bars for %s", p.Name(), symbol))
			continue
		}
		return bars, nil
	}
	if !errs.HasErrors() {
		return nil, fmt.Errorf("%w: no market data provider configured", errors.ErrExternalService)
	}
	return nil, errors.External("market data", errs.ToError())
}

// HistoricalInfo is History that degrades to an empty series.
func (g *Gateway) HistoricalInfo(ctx context.Context, symbol string, start, end time.Time) []models.Bar {
	bars, err := g.History(ctx, symbol, start, end)
	if err != nil {
		g.log.Warnw("history unavailable", "symbol", symbol, "error", err)
		return []models.Bar{}
	}
	return bars
}

// PriceTrends fetches lookbackDays of history ending at asOf for each symbol, in input order.
func (g *Gateway) PriceTrends(ctx context.Context, symbols []string, lookbackDays int, asOf time.Time) []models.PriceTrend {
	unique := dedupe(symbols)
	trends := make([]models.PriceTrend, len(unique))
	start := asOf.AddDate(0, 0, -lookbackDays)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, sym := range unique {
		eg.Go(func() error {
			trends[i] = models.PriceTrend{Symbol: sym, Bars: g.HistoricalInfo(egCtx, sym, start, asOf)}
			return nil
		})
	}
	_ = eg.Wait()
	return trends
}

func (g *Gateway) cachedHistory(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, bool) {
	if g.history == nil {
		return nil, false
	}
	first, last, ok, err := g.history.Coverage(ctx, symbol)
	if err != nil || !ok {
		return nil, false
	}
	// a weekend or a market holiday may separate the request bounds from the nearest trading day
	if first.After(start.AddDate(0, 0, 4)) || last.Before(end.AddDate(0, 0, -4)) {
		return nil, false
	}
	bars, err := g.history.GetStockData(ctx, symbol, start, end)
	if err != nil || len(bars) == 0 {
		return nil, false
	}
	metrics.RecordGatewayCall("cache", "history", nil)
	return bars, true
}

func (g *Gateway) companyName(ctx context.Context, symbol string) string {
	if g.history == nil {
		return ""
	}
	name, err := g.history.CompanyName(ctx, symbol)
	if err != nil {
		return ""
	}
	return name
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ParseProviders maps configured provider names to constructors. Unknown names are an error;
// providers whose credentials are missing are skipped with a warning.
func ParseProviders(names []string, longport LongportCredentials, alpacaKey, alpacaSecret string) ([]Provider, error) {
	log := logger.Get().Named("gateway")
	var out []Provider
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "yahoo":
			out = append(out, NewYahooProvider())
		case "longport":
			p, err := NewLongportProvider(longport)
			if err != nil {
				log.Warnw("longport provider disabled", "error", err)
				continue
			}
			out = append(out, p)
		case "alpaca":
			out = append(out, NewAlpacaProvider(alpacaKey, alpacaSecret))
		case "":
		default:
			return nil, fmt.Errorf("%w: unknown market provider %q", errors.ErrInvalidInput, name)
		}
	}
	return out, nil
}
