package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexOffice/internal/models"
)

func openTestMarket(t *testing.T) *MarketStore {
	t.Helper()
	m, err := OpenMarketStore(filepath.Join(t.TempDir(), "market.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func bar(date string, close float64) models.Bar {
	d, _ := time.Parse("2006-01-02", date)
	c := decimal.NewFromFloat(close)
	return models.Bar{Date: d, Open: c, High: c, Low: c, Close: c, Volume: 1000}
}

func TestMarketStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := openTestMarket(t)

	require.NoError(t, m.SaveBatch(ctx, []SymbolBars{
		{Stock: Stock{Symbol: "aapl", CompanyName: "Apple Inc."}, Bars: []models.Bar{bar("2024-01-03", 184.25), bar("2024-01-02", 185.5)}},
		{Stock: Stock{Symbol: "MSFT", CompanyName: "Microsoft"}, Bars: []models.Bar{bar("2024-01-02", 370)}},
	}))

	start, _ := time.Parse("2006-01-02", "2024-01-01")
	end, _ := time.Parse("2006-01-02", "2024-01-31")
	bars, err := m.GetStockData(ctx, "AAPL", start, end)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-01-02", bars[0].Date.Format("2006-01-02"))
	assert.True(t, bars[1].Close.Equal(decimal.RequireFromString("184.25")))
	assert.Equal(t, int64(1000), bars[0].Volume)

	name, err := m.CompanyName(ctx, "aapl")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", name)

	symbols, err := m.GetAllSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)

	n, err := m.GetDataPointCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	first, last, err := m.GetDateRange(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", first)
	assert.Equal(t, "2024-01-03", last)
}

func TestLatestDateAndCoverage(t *testing.T) {
	ctx := context.Background()
	m := openTestMarket(t)

	_, ok, err := m.LatestDate(ctx, "AAPL")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SaveBatch(ctx, []SymbolBars{
		{Stock: Stock{Symbol: "AAPL"}, Bars: []models.Bar{bar("2024-01-02", 1), bar("2024-01-05", 2)}},
	}))

	latest, ok, err := m.LatestDate(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01-05", latest.Format("2006-01-02"))

	first, last, ok, err := m.Coverage(ctx, "AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-01-02", first.Format("2006-01-02"))
	assert.Equal(t, "2024-01-05", last.Format("2006-01-02"))
}

func TestCompanyNameIsNotOverwrittenByEmpty(t *testing.T) {
	ctx := context.Background()
	m := openTestMarket(t)
	require.NoError(t, m.SaveBatch(ctx, []SymbolBars{{Stock: Stock{Symbol: "AAPL", CompanyName: "Apple Inc."}}}))
	require.NoError(t, m.SaveBatch(ctx, []SymbolBars{{Stock: Stock{Symbol: "AAPL"}}}))

	name, err := m.CompanyName(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", name)

	missing, err := m.CompanyName(ctx, "ZZZZ")
	require.NoError(t, err)
	assert.Empty(t, missing)
}
