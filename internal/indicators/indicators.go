// Package indicators derives a compact technical picture from daily bars for the analyst prompt.
package indicators

import (
	"fmt"
	"strings"

	"github.com/markcheno/go-talib"

	"github.com/dyike/CortexOffice/internal/models"
)

// Value is one named indicator reading at the most recent bar.
type Value struct {
	Name  string
	Value float64
}

type series struct {
	open, high, low, close, volume []float64
}

func toSeries(bars []models.Bar) series {
	s := series{
		open:   make([]float64, len(bars)),
		high:   make([]float64, len(bars)),
		low:    make([]float64, len(bars)),
		close:  make([]float64, len(bars)),
		volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		s.open[i] = b.Open.InexactFloat64()
		s.high[i] = b.High.InexactFloat64()
		s.low[i] = b.Low.InexactFloat64()
		s.close[i] = b.Close.InexactFloat64()
		s.volume[i] = float64(b.Volume)
	}
	return s
}

func last(v []float64) float64 { return v[len(v)-1] }

// Compute returns the readings that the history is long enough to support, in a fixed order.
// Bars must be sorted oldest first.
func Compute(bars []models.Bar) []Value {
	n := len(bars)
	if n < 2 {
		return nil
	}
	s := toSeries(bars)
	var out []Value

	first := s.close[0]
	if first != 0 {
		out = append(out, Value{Name: fmt.Sprintf("Change over %d sessions (%%)", n), Value: (last(s.close) - first) / first * 100})
	}
	if n >= 20 {
		out = append(out, Value{Name: "SMA(20)", Value: last(talib.Sma(s.close, 20))})
	}
	if n >= 50 {
		out = append(out, Value{Name: "SMA(50)", Value: last(talib.Sma(s.close, 50))})
	}
	if n >= 15 {
		out = append(out, Value{Name: "RSI(14)", Value: last(talib.Rsi(s.close, 14))})
		out = append(out, Value{Name: "ATR(14)", Value: last(talib.Atr(s.high, s.low, s.close, 14))})
	}
	if n >= 34 {
		macd, signal, hist := talib.Macd(s.close, 12, 26, 9)
		out = append(out,
			Value{Name: "MACD(12,26,9)", Value: last(macd)},
			Value{Name: "MACD signal", Value: last(signal)},
			Value{Name: "MACD histogram", Value: last(hist)},
		)
	}
	if n >= 20 {
		upper, middle, lower := talib.BBands(s.close, 20, 2, 2, talib.SMA)
		out = append(out,
			Value{Name: "Bollinger upper", Value: last(upper)},
			Value{Name: "Bollinger middle", Value: last(middle)},
			Value{Name: "Bollinger lower", Value: last(lower)},
		)
	}
	if n >= 20 {
		out = append(out, Value{Name: "Avg volume(20)", Value: last(talib.Sma(s.volume, 20))})
	}
	return out
}

// Summary renders Compute as one "name: value" line per reading.
func Summary(bars []models.Bar) string {
	values := Compute(bars)
	if len(values) == 0 {
		return "not enough history for indicators"
	}
	var b strings.Builder
	for _, v := range values {
		fmt.Fprintf(&b, "%s: %.2f\n", v.Name, v.Value)
	}
	return b.String()
}
