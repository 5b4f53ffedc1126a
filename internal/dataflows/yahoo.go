package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexOffice/internal/models"
)

// YahooProvider reads quotes and daily bars from Yahoo Finance.
type YahooProvider struct {
	retry *RetryConfig
}

func NewYahooProvider() *YahooProvider {
	return &YahooProvider{retry: DefaultRetryConfig()}
}

func (y *YahooProvider) Name() string { return "yahoo" }

func (y *YahooProvider) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	var result models.Quote
	err := WithRetry(ctx, y.retry, func() error {
		q, err := quote.Get(symbol)
		if err != nil {
			return fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}
		if q == nil || q.RegularMarketPrice <= 0 {
			return quoteUnavailable(y.Name(), symbol)
		}
		result = models.Quote{
			Symbol:    symbol,
			Name:      q.ShortName,
			Price:     decimal.NewFromFloat(q.RegularMarketPrice),
			Open:      decimal.NewFromFloat(q.RegularMarketOpen),
			High:      decimal.NewFromFloat(q.RegularMarketDayHigh),
			Low:       decimal.NewFromFloat(q.RegularMarketDayLow),
			PrevClose: decimal.NewFromFloat(q.RegularMarketPreviousClose),
			Volume:    int64(q.RegularMarketVolume),
			Source:    y.Name(),
			Time:      time.Now(),
		}
		return nil
	})
	return result, err
}

func (y *YahooProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	var result []models.Bar
	err := WithRetry(ctx, y.retry, func() error {
		// the chart API treats end as exclusive
		until := end.AddDate(0, 0, 1)
		iter := chart.Get(&chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&until),
			Interval: datetime.OneDay,
		})

		result = result[:0]
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, models.Bar{
				Date:   civilDate(time.Unix(int64(bar.Timestamp), 0).UTC()),
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to get historical data for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trimBars(result, start, end), nil
}
