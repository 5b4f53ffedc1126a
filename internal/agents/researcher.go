package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dyike/CortexOffice/internal/dataflows"
	"github.com/dyike/CortexOffice/internal/llm"
	"github.com/dyike/CortexOffice/internal/models"
)

// DefaultLookbackDays is the price history window fetched per ticker.
const DefaultLookbackDays = 120

// NewsSearcher renders the article digest for one search term. It never fails.
type NewsSearcher interface {
	Digest(ctx context.Context, term string) string
}

// TrendSource fetches daily history per symbol, in input order. Unavailable history is empty.
type TrendSource interface {
	PriceTrends(ctx context.Context, symbols []string, lookbackDays int, asOf time.Time) []models.PriceTrend
}

// Researcher answers the strategist's questions with news and fetches price trends.
type Researcher struct {
	Role
	news         NewsSearcher
	trends       TrendSource
	lookbackDays int
	concurrency  int
	now          func() time.Time
}

type ResearcherOption func(*Researcher)

func WithLookbackDays(days int) ResearcherOption {
	return func(r *Researcher) {
		if days > 0 {
			r.lookbackDays = days
		}
	}
}

// WithResearchConcurrency bounds the per-term summaries running at once.
func WithResearchConcurrency(n int) ResearcherOption {
	return func(r *Researcher) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithResearchClock(now func() time.Time) ResearcherOption {
	return func(r *Researcher) {
		if now != nil {
			r.now = now
		}
	}
}

func NewResearcher(reasoner llm.Reasoner, news NewsSearcher, trends TrendSource, opts ...ResearcherOption) (*Researcher, error) {
	role, err := NewRole(RoleResearcher, "", reasoner)
	if err != nil {
		return nil, err
	}
	r := &Researcher{
		Role:         role,
		news:         news,
		trends:       trends,
		lookbackDays: DefaultLookbackDays,
		concurrency:  3,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// FetchMarketInfo turns the questions into search terms, summarizes the news for each
// and joins the summaries in term order.
func (r *Researcher) FetchMarketInfo(ctx context.Context, questions string) (string, error) {
	instruction, err := render("researcher/search_terms", nil)
	if err != nil {
		return "", err
	}
	raw, err := r.AskWith(ctx, instruction, questions)
	if err != nil {
		return "", err
	}
	terms := SplitSearchTerms(raw)
	if len(terms) == 0 {
		r.log.Warnw("no search terms produced", "questions", truncate(questions, 120))
		return "", nil
	}

	summarize, err := render("researcher/summarize", nil)
	if err != nil {
		return "", err
	}

	results := make([]string, len(terms))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.concurrency)
	for i, term := range terms {
		eg.Go(func() error {
			digest := r.news.Digest(egCtx, term)
			summary, err := r.AskWith(egCtx, summarize, digest)
			if err != nil {
				return fmt.Errorf("summarize %q: %w", term, err)
			}
			results[i] = fmt.Sprintf("Results for '%s':\n%s\n", term, summary)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}
	return strings.Join(results, "\n"), nil
}

// FetchPriceTrends extracts the tickers named in request and fetches their history.
func (r *Researcher) FetchPriceTrends(ctx context.Context, request string) ([]models.PriceTrend, error) {
	instruction, err := render("researcher/tickers", nil)
	if err != nil {
		return nil, err
	}
	raw, err := r.AskWith(ctx, instruction, request)
	if err != nil {
		return nil, err
	}
	tickers := ParseTickers(raw)
	r.log.Infow("tickers selected for trend analysis", "tickers", tickers)
	if len(tickers) == 0 {
		return nil, nil
	}
	return r.trends.PriceTrends(ctx, tickers, r.lookbackDays, r.now()), nil
}

// SplitSearchTerms splits on commas when any comma is present, otherwise on newlines.
// Blank terms are dropped.
func SplitSearchTerms(raw string) []string {
	sep := "\n"
	if strings.Contains(raw, ",") {
		sep = ","
	}
	var terms []string
	for _, t := range strings.Split(raw, sep) {
		t = strings.TrimSpace(strings.Trim(strings.TrimSpace(t), `"'-*`))
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// ParseTickers reads a comma separated ticker list, dropping anything that is not a symbol.
func ParseTickers(raw string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' }) {
		t = dataflows.NormalizeSymbol(strings.Trim(strings.TrimSpace(t), "$`'\"*()[]"))
		if t == "" || seen[t] || dataflows.ValidateSymbol(t) != nil {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
