package dataflows

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/pkg/errors"
)

type fakeProvider struct {
	name   string
	prices map[string]string
	bars   map[string][]models.Bar
	calls  atomic.Int32
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Quote(_ context.Context, symbol string) (models.Quote, error) {
	f.calls.Add(1)
	p, ok := f.prices[symbol]
	if !ok {
		return models.Quote{}, quoteUnavailable(f.name, symbol)
	}
	return models.Quote{Symbol: symbol, Price: decimal.RequireFromString(p), Source: f.name}, nil
}

func (f *fakeProvider) History(_ context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	f.calls.Add(1)
	bars, ok := f.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%s: unknown %s", f.name, symbol)
	}
	return trimBars(append([]models.Bar(nil), bars...), start, end), nil
}

type fakeHistoryCache struct {
	bars map[string][]models.Bar
	name map[string]string
}

func (c *fakeHistoryCache) Coverage(_ context.Context, symbol string) (time.Time, time.Time, bool, error) {
	bars := c.bars[symbol]
	if len(bars) == 0 {
		return time.Time{}, time.Time{}, false, nil
	}
	return bars[0].Date, bars[len(bars)-1].Date, true, nil
}

func (c *fakeHistoryCache) GetStockData(_ context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	return trimBars(append([]models.Bar(nil), c.bars[symbol]...), start, end), nil
}

func (c *fakeHistoryCache) CompanyName(_ context.Context, symbol string) (string, error) {
	return c.name[symbol], nil
}

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func dailyBars(from string, n int) []models.Bar {
	start := date(from)
	out := make([]models.Bar, n)
	for i := range out {
		c := decimal.NewFromInt(int64(100 + i))
		out[i] = models.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 10}
	}
	return out
}

func TestCurrentInfoKeepsOnlyPricedSymbols(t *testing.T) {
	p := &fakeProvider{name: "fake", prices: map[string]string{"AAPL": "170.10"}}
	g := NewGateway([]Provider{p})

	got := g.CurrentInfo(context.Background(), []string{"AAPL", "INVALID_TICKER", "aapl"})
	require.Len(t, got, 1)
	assert.True(t, got["AAPL"].Price.Equal(decimal.RequireFromString("170.10")))
	_, ok := got["INVALID_TICKER"]
	assert.False(t, ok)
}

func TestQuoteFallsBackToNextProvider(t *testing.T) {
	first := &fakeProvider{name: "first", prices: map[string]string{}}
	second := &fakeProvider{name: "second", prices: map[string]string{"MSFT": "400"}}
	names := &fakeHistoryCache{name: map[string]string{"MSFT": "Microsoft Corp"}}
	g := NewGateway([]Provider{first, second}, WithHistoryCache(names))

	q, err := g.Quote(context.Background(), " msft ")
	require.NoError(t, err)
	assert.Equal(t, "second", q.Source)
	assert.Equal(t, "Microsoft Corp", q.Name)
	assert.Equal(t, int32(1), first.calls.Load())
}

func TestQuoteErrorsWrapSentinel(t *testing.T) {
	g := NewGateway([]Provider{&fakeProvider{name: "a"}, &fakeProvider{name: "b"}})
	_, err := g.Quote(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, errors.ErrQuoteUnavailable)

	_, err = g.Quote(context.Background(), "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestQuoteTTLAvoidsRepeatCalls(t *testing.T) {
	p := &fakeProvider{name: "fake", prices: map[string]string{"AAPL": "1"}}
	g := NewGateway([]Provider{p}, WithQuoteTTL(time.Minute))
	for i := 0; i < 3; i++ {
		_, err := g.Quote(context.Background(), "AAPL")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestHistoricalInfoAscendingAndEmptyOnFailure(t *testing.T) {
	p := &fakeProvider{name: "fake", bars: map[string][]models.Bar{"AAPL": dailyBars("2024-01-01", 30)}}
	g := NewGateway([]Provider{p})
	ctx := context.Background()

	bars := g.HistoricalInfo(ctx, "AAPL", date("2024-01-05"), date("2024-01-10"))
	require.Len(t, bars, 6)
	for i := 1; i < len(bars); i++ {
		assert.True(t, bars[i].Date.After(bars[i-1].Date))
	}

	missing := g.HistoricalInfo(ctx, "NOPE", date("2024-01-05"), date("2024-01-10"))
	assert.NotNil(t, missing)
	assert.Empty(t, missing)

	_, err := g.History(ctx, "NOPE", date("2024-01-05"), date("2024-01-10"))
	assert.ErrorIs(t, err, errors.ErrExternalService)
}

func TestHistoryPrefersCoveringCache(t *testing.T) {
	p := &fakeProvider{name: "fake", bars: map[string][]models.Bar{"AAPL": dailyBars("2024-01-01", 30)}}
	c := &fakeHistoryCache{bars: map[string][]models.Bar{"AAPL": dailyBars("2024-01-01", 30)}}
	g := NewGateway([]Provider{p}, WithHistoryCache(c))
	ctx := context.Background()

	bars, err := g.History(ctx, "AAPL", date("2024-01-02"), date("2024-01-20"))
	require.NoError(t, err)
	assert.Len(t, bars, 19)
	assert.Equal(t, int32(0), p.calls.Load())

	// past the cached span the provider answers
	_, err = g.History(ctx, "AAPL", date("2024-01-02"), date("2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestPriceTrendsPreserveOrder(t *testing.T) {
	p := &fakeProvider{name: "fake", bars: map[string][]models.Bar{
		"AAPL": dailyBars("2024-01-01", 10),
		"MSFT": dailyBars("2024-01-01", 10),
	}}
	g := NewGateway([]Provider{p}, WithConcurrency(2))

	trends := g.PriceTrends(context.Background(), []string{"msft", "BAD", "AAPL"}, 120, date("2024-01-10"))
	require.Len(t, trends, 3)
	assert.Equal(t, "MSFT", trends[0].Symbol)
	assert.Equal(t, "BAD", trends[1].Symbol)
	assert.Empty(t, trends[1].Bars)
	assert.Equal(t, "AAPL", trends[2].Symbol)
	assert.Len(t, trends[2].Bars, 10)
}

func TestParseProviders(t *testing.T) {
	ps, err := ParseProviders([]string{"yahoo", "longport", "alpaca"}, LongportCredentials{}, "", "")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "yahoo", ps[0].Name())
	assert.Equal(t, "alpaca", ps[1].Name())

	_, err = ParseProviders([]string{"bloomberg"}, LongportCredentials{}, "", "")
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
