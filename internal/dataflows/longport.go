package dataflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	"github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexOffice/internal/models"
)

// LongportCredentials are the app key, secret and access token of a Longport account.
type LongportCredentials struct {
	AppKey      string
	AppSecret   string
	AccessToken string
}

// LongportProvider reads daily candlesticks from Longport OpenAPI. Plain tickers are
// treated as US listings.
type LongportProvider struct {
	quoteCtx *quote.QuoteContext
	retry    *RetryConfig
}

func NewLongportProvider(creds LongportCredentials) (*LongportProvider, error) {
	if creds.AppKey == "" || creds.AppSecret == "" || creds.AccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}
	conf, err := lpconfig.New(lpconfig.WithConfigKey(creds.AppKey, creds.AppSecret, creds.AccessToken))
	if err != nil {
		return nil, err
	}
	quoteContext, err := quote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}
	return &LongportProvider{quoteCtx: quoteContext, retry: DefaultRetryConfig()}, nil
}

func (lp *LongportProvider) Name() string { return "longport" }

func longportSymbol(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".US"
}

func (lp *LongportProvider) sticks(ctx context.Context, symbol string, count int) ([]models.Bar, error) {
	var out []models.Bar
	err := WithRetry(ctx, lp.retry, func() error {
		sticks, err := lp.quoteCtx.Candlesticks(ctx, longportSymbol(symbol), quote.PeriodDay, int32(count), quote.AdjustTypeNo)
		if err != nil {
			return err
		}
		out = out[:0]
		for _, stick := range sticks {
			if stick == nil {
				continue
			}
			open, _ := stick.Open.Float64()
			high, _ := stick.High.Float64()
			low, _ := stick.Low.Float64()
			closePrice, _ := stick.Close.Float64()
			out = append(out, models.Bar{
				Date:   civilDate(time.Unix(stick.Timestamp, 0).UTC()),
				Open:   decimal.NewFromFloat(open),
				High:   decimal.NewFromFloat(high),
				Low:    decimal.NewFromFloat(low),
				Close:  decimal.NewFromFloat(closePrice),
				Volume: stick.Volume,
			})
		}
		return nil
	})
	return out, err
}

// Quote uses the latest daily candle; its close is the last traded price while the session is open.
func (lp *LongportProvider) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	bars, err := lp.sticks(ctx, symbol, 2)
	if err != nil {
		return models.Quote{}, fmt.Errorf("longport candlesticks %s: %w", symbol, err)
	}
	if len(bars) == 0 || !bars[len(bars)-1].Close.IsPositive() {
		return models.Quote{}, quoteUnavailable(lp.Name(), symbol)
	}
	latest := bars[len(bars)-1]
	q := models.Quote{
		Symbol: symbol,
		Price:  latest.Close,
		Open:   latest.Open,
		High:   latest.High,
		Low:    latest.Low,
		Volume: latest.Volume,
		Source: lp.Name(),
		Time:   time.Now(),
	}
	if len(bars) > 1 {
		q.PrevClose = bars[len(bars)-2].Close
	}
	if infos, err := lp.quoteCtx.StaticInfo(ctx, []string{longportSymbol(symbol)}); err == nil && len(infos) > 0 && infos[0] != nil {
		q.Name = infos[0].NameEn
	}
	return q, nil
}

func (lp *LongportProvider) History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		return nil, nil
	}
	// trading days never exceed calendar days
	if days > 1000 {
		days = 1000
	}
	bars, err := lp.sticks(ctx, symbol, days)
	if err != nil {
		return nil, fmt.Errorf("longport candlesticks %s: %w", symbol, err)
	}
	return trimBars(bars, start, end), nil
}
