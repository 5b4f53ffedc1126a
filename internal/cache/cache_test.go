package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/internal/storage/sqlite"
	"github.com/dyike/CortexOffice/internal/utils"
)

type fakeSource struct {
	requests map[string]time.Time
}

func (f *fakeSource) History(_ context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	if symbol == "DEAD" {
		return nil, fmt.Errorf("delisted")
	}
	if f.requests == nil {
		f.requests = map[string]time.Time{}
	}
	f.requests[symbol] = start
	var out []models.Bar
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Before(end.AddDate(0, 0, -2)) {
			continue
		}
		c := decimal.NewFromInt(10)
		out = append(out, models.Bar{Date: d, Open: c, High: c, Low: c, Close: c, Volume: 1})
	}
	return out, nil
}

func (f *fakeSource) Quote(_ context.Context, symbol string) (models.Quote, error) {
	return models.Quote{Symbol: symbol, Name: symbol + " Corp"}, nil
}

func newTestBuilder(t *testing.T, now time.Time) (*Builder, *sqlite.MarketStore, *fakeSource) {
	t.Helper()
	store, err := sqlite.OpenMarketStore(filepath.Join(t.TempDir(), "market.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	src := &fakeSource{}
	b := NewBuilder(store, src, 1)
	b.now = func() time.Time { return now }
	return b, store, src
}

func TestBuildAndStats(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	b, store, src := newTestBuilder(t, now)
	ctx := context.Background()

	res, err := b.Build(ctx, []utils.StockEntry{{Symbol: "AAPL", CompanyName: "Apple Inc."}, {Symbol: "DEAD"}, {Symbol: "MSFT"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Symbols)
	assert.Equal(t, 2, res.Saved)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"DEAD"}, res.FailedSet)
	assert.Equal(t, "2019-05-10", src.requests["AAPL"].Format("2006-01-02"))

	name, err := store.CompanyName(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "MSFT Corp", name)

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Stocks)
	assert.Equal(t, int64(6), stats.DataPoints)
	assert.Equal(t, "2024-05-08", stats.FirstDate)
	assert.Equal(t, "2024-05-10", stats.LastDate)
}

func TestUpdateStartsAfterLatestBar(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	b, _, src := newTestBuilder(t, now)
	ctx := context.Background()

	_, err := b.Build(ctx, []utils.StockEntry{{Symbol: "AAPL"}})
	require.NoError(t, err)

	// same day: nothing newer to fetch
	res, err := b.Update(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 0, res.Saved)

	b.now = func() time.Time { return now.AddDate(0, 0, 3) }
	res, err = b.Update(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, "2024-05-11", src.requests["AAPL"].Format("2006-01-02"))
}

func TestQuoteCacheTTL(t *testing.T) {
	c := NewQuoteCache(time.Minute)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(models.Quote{Symbol: "aapl", Price: decimal.NewFromInt(1)})
	_, ok := c.Get("AAPL")
	assert.True(t, ok)
	assert.Equal(t, 1, c.Len())

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("AAPL")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())

	var disabled *QuoteCache
	disabled.Set(models.Quote{Symbol: "X"})
	_, ok = disabled.Get("X")
	assert.False(t, ok)
}
