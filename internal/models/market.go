package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a current price snapshot for one symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	PrevClose decimal.Decimal `json:"prev_close"`
	Volume    int64           `json:"volume"`
	Source    string          `json:"source"`
	Time      time.Time       `json:"time"`
}

// Bar is one daily OHLCV candle.
type Bar struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

func (b Bar) String() string {
	return fmt.Sprintf("%s O:%s H:%s L:%s C:%s V:%d",
		b.Date.Format("2006-01-02"),
		b.Open.StringFixed(2), b.High.StringFixed(2), b.Low.StringFixed(2), b.Close.StringFixed(2),
		b.Volume)
}

// PriceTrend is the history fetched for one ticker during a negotiation round.
type PriceTrend struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// FormatBars renders bars one per line, oldest first.
func FormatBars(bars []Bar) string {
	if len(bars) == 0 {
		return "no price history available"
	}
	var sb strings.Builder
	for _, b := range bars {
		sb.WriteString(b.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Article is a single news search hit.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

func (a Article) String() string {
	return fmt.Sprintf("Title: %s\nDescription: %s\nURL: %s\n", a.Title, a.Description, a.URL)
}
