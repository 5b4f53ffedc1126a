package dataflows

import (
	"context"
	"fmt"
	"time"

	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/pkg/errors"
)

// Provider is one upstream market-data source.
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (models.Quote, error)
	History(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error)
}

func quoteUnavailable(provider, symbol string) error {
	return fmt.Errorf("%w: %s returned no price for %s", errors.ErrQuoteUnavailable, provider, symbol)
}

// trimBars keeps bars within [start, end] by calendar date.
func trimBars(bars []models.Bar, start, end time.Time) []models.Bar {
	from := start.Format("2006-01-02")
	to := end.Format("2006-01-02")
	out := bars[:0]
	for _, b := range bars {
		d := b.Date.Format("2006-01-02")
		if d < from || d > to {
			continue
		}
		out = append(out, b)
	}
	return out
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
