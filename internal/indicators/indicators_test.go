package indicators

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexOffice/internal/models"
)

func rising(n int) []models.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		c := decimal.NewFromInt(int64(100 + i))
		bars[i] = models.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c.Add(decimal.NewFromInt(1)),
			Low:    c.Sub(decimal.NewFromInt(1)),
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func names(values []Value) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Name
	}
	return out
}

func TestShortHistoryOnlyReportsChange(t *testing.T) {
	values := Compute(rising(10))
	require.Len(t, values, 1)
	assert.InDelta(t, 9.0, values[0].Value, 1e-9)

	assert.Nil(t, Compute(rising(1)))
	assert.Equal(t, "not enough history for indicators", Summary(nil))
}

func TestFullHistory(t *testing.T) {
	values := Compute(rising(120))
	got := names(values)
	for _, want := range []string{"SMA(20)", "SMA(50)", "RSI(14)", "ATR(14)", "MACD(12,26,9)", "Bollinger upper", "Avg volume(20)"} {
		assert.Contains(t, got, want)
	}

	byName := map[string]float64{}
	for _, v := range values {
		byName[v.Name] = v.Value
	}
	// closes 100..219: the last 20 average to 209.5
	assert.InDelta(t, 209.5, byName["SMA(20)"], 1e-9)
	assert.InDelta(t, 1000, byName["Avg volume(20)"], 1e-9)
	assert.Greater(t, byName["RSI(14)"], 70.0)

	assert.Contains(t, Summary(rising(120)), "SMA(20): 209.50\n")
}
