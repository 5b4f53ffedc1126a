package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/internal/storage/sqlite"
	"github.com/dyike/CortexOffice/internal/utils"
	"github.com/dyike/CortexOffice/pkg/logger"
)

const (
	// BatchSize is how many symbols are committed per transaction.
	BatchSize = 100

	buildYears = 5
)

// Store is the persistent side of the market-data cache.
type Store interface {
	SaveBatch(ctx context.Context, batch []sqlite.SymbolBars) error
	LatestDate(ctx context.Context, symbol string) (time.Time, bool, error)
	GetAllSymbols(ctx context.Context) ([]string, error)
	GetStockCount(ctx context.Context) (int64, error)
	GetDataPointCount(ctx context.Context) (int64, error)
	GetDateRange(ctx context.Context) (string, string, error)
}

// Source fetches live history and company names.
type Source interface {
	History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)
	Quote(ctx context.Context, symbol string) (models.Quote, error)
}

// Builder fills and refreshes the local cache from live providers.
type Builder struct {
	store       Store
	source      Source
	concurrency int
	now         func() time.Time
	log         *logger.Logger
}

// Result summarizes one build or update run.
type Result struct {
	Symbols   int
	Saved     int
	Skipped   int
	Failed    int
	Bars      int
	Duration  time.Duration
	FailedSet []string
}

// Stats describes the cache contents.
type Stats struct {
	Stocks     int64
	DataPoints int64
	FirstDate  string
	LastDate   string
}

func NewBuilder(store Store, source Source, concurrency int) *Builder {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Builder{
		store:       store,
		source:      source,
		concurrency: concurrency,
		now:         time.Now,
		log:         logger.Get().Named("cache"),
	}
}

type job struct {
	entry utils.StockEntry
	start time.Time
}

// Build loads five years of daily bars for every entry.
func (b *Builder) Build(ctx context.Context, entries []utils.StockEntry) (Result, error) {
	began := b.now()
	today := b.today()
	jobs := make([]job, 0, len(entries))
	for _, e := range entries {
		jobs = append(jobs, job{entry: e, start: today.AddDate(-buildYears, 0, 0)})
	}
	res, err := b.run(ctx, jobs, today, true)
	res.Duration = b.now().Sub(began)
	return res, err
}

// Update extends every cached symbol from the day after its newest bar to today.
// Symbols with no bars yet get the full five-year load.
func (b *Builder) Update(ctx context.Context, entries []utils.StockEntry) (Result, error) {
	began := b.now()
	today := b.today()

	if len(entries) == 0 {
		symbols, err := b.store.GetAllSymbols(ctx)
		if err != nil {
			return Result{}, err
		}
		for _, s := range symbols {
			entries = append(entries, utils.StockEntry{Symbol: s})
		}
	}

	var jobs []job
	skipped := 0
	for _, e := range entries {
		start := today.AddDate(-buildYears, 0, 0)
		latest, ok, err := b.store.LatestDate(ctx, e.Symbol)
		if err != nil {
			return Result{}, err
		}
		if ok {
			start = latest.AddDate(0, 0, 1)
		}
		if start.After(today) {
			skipped++
			continue
		}
		jobs = append(jobs, job{entry: e, start: start})
	}

	res, err := b.run(ctx, jobs, today, false)
	res.Symbols += skipped
	res.Skipped += skipped
	res.Duration = b.now().Sub(began)
	return res, err
}

func (b *Builder) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	var err error
	if s.Stocks, err = b.store.GetStockCount(ctx); err != nil {
		return s, err
	}
	if s.DataPoints, err = b.store.GetDataPointCount(ctx); err != nil {
		return s, err
	}
	s.FirstDate, s.LastDate, err = b.store.GetDateRange(ctx)
	return s, err
}

func (b *Builder) today() time.Time {
	n := b.now().UTC()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// run fetches jobs concurrently in chunks of BatchSize and commits each chunk in one transaction.
func (b *Builder) run(ctx context.Context, jobs []job, end time.Time, resolveNames bool) (Result, error) {
	res := Result{Symbols: len(jobs)}
	for offset := 0; offset < len(jobs); offset += BatchSize {
		chunk := jobs[offset:min(offset+BatchSize, len(jobs))]
		fetched := make([]*sqlite.SymbolBars, len(chunk))

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(b.concurrency)
		for i, j := range chunk {
			eg.Go(func() error {
				bars, err := b.source.History(egCtx, j.entry.Symbol, j.start, end)
				if err != nil || len(bars) == 0 {
					b.log.Warnw("no history for symbol, skipping", "symbol", j.entry.Symbol, "error", err)
					return nil
				}
				stock := sqlite.Stock{Symbol: j.entry.Symbol, CompanyName: j.entry.CompanyName}
				if stock.CompanyName == "" && resolveNames {
					if q, err := b.source.Quote(egCtx, j.entry.Symbol); err == nil {
						stock.CompanyName = q.Name
					}
				}
				fetched[i] = &sqlite.SymbolBars{Stock: stock, Bars: bars}
				return nil
			})
		}
		_ = eg.Wait()
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch := make([]sqlite.SymbolBars, 0, len(chunk))
		for i, f := range fetched {
			if f == nil {
				res.Failed++
				res.FailedSet = append(res.FailedSet, chunk[i].entry.Symbol)
				continue
			}
			batch = append(batch, *f)
			res.Bars += len(f.Bars)
		}
		if err := b.store.SaveBatch(ctx, batch); err != nil {
			return res, fmt.Errorf("commit batch at symbol %d: %w", offset, err)
		}
		res.Saved += len(batch)
		b.log.Infow("committed batch", "symbols", len(batch), "progress", fmt.Sprintf("%d/%d", offset+len(chunk), len(jobs)))
	}
	return res, nil
}
