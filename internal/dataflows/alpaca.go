package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexOffice/internal/models"
)

// AlpacaProvider reads latest trades and daily bars from the Alpaca market data API.
// Empty credentials fall back to the APCA_* environment variables read by the SDK.
type AlpacaProvider struct {
	client *marketdata.Client
	retry  *RetryConfig
}

func NewAlpacaProvider(apiKey, apiSecret string) *AlpacaProvider {
	return &AlpacaProvider{
		client: marketdata.NewClient(marketdata.ClientOpts{APIKey: apiKey, APISecret: apiSecret}),
		retry:  DefaultRetryConfig(),
	}
}

func (a *AlpacaProvider) Name() string { return "alpaca" }

func (a *AlpacaProvider) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	var q models.Quote
	err := WithRetry(ctx, a.retry, func() error {
		trade, err := a.client.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
		if err != nil {
			return fmt.Errorf("alpaca latest trade %s: %w", symbol, err)
		}
		if trade == nil || trade.Price <= 0 {
			return quoteUnavailable(a.Name(), symbol)
		}
		q = models.Quote{
			Symbol: symbol,
			Price:  decimal.NewFromFloat(trade.Price),
			Source: a.Name(),
			Time:   trade.Timestamp,
		}
		return nil
	})
	return q, err
}

func (a *AlpacaProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	var out []models.Bar
	err := WithRetry(ctx, a.retry, func() error {
		bars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end.AddDate(0, 0, 1),
		})
		if err != nil {
			return fmt.Errorf("alpaca bars %s: %w", symbol, err)
		}
		out = make([]models.Bar, 0, len(bars))
		for _, b := range bars {
			out = append(out, models.Bar{
				Date:   civilDate(b.Timestamp.UTC()),
				Open:   decimal.NewFromFloat(b.Open),
				High:   decimal.NewFromFloat(b.High),
				Low:    decimal.NewFromFloat(b.Low),
				Close:  decimal.NewFromFloat(b.Close),
				Volume: int64(b.Volume),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trimBars(out, start, end), nil
}
