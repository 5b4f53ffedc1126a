package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/dyike/CortexOffice/internal/models"
	pkgsqlite "github.com/dyike/CortexOffice/pkg/sqlite"
)

const dateLayout = "2006-01-02"

// MarketStore is the local cache of company names and daily bars.
type MarketStore struct {
	db *sqlx.DB
}

// Stock is a cached symbol with its company name.
type Stock struct {
	Symbol      string `db:"symbol"`
	CompanyName string `db:"company_name"`
}

// SymbolBars groups the bars of one symbol for a batch write.
type SymbolBars struct {
	Stock Stock
	Bars  []models.Bar
}

type dailyRow struct {
	Date   string          `db:"date"`
	Symbol string          `db:"symbol"`
	Open   decimal.Decimal `db:"open"`
	High   decimal.Decimal `db:"high"`
	Low    decimal.Decimal `db:"low"`
	Close  decimal.Decimal `db:"close"`
	Volume int64           `db:"volume"`
}

func OpenMarketStore(dbPath string) (*MarketStore, error) {
	db, err := pkgsqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	schema := `
CREATE TABLE IF NOT EXISTS stocks (
    symbol TEXT PRIMARY KEY,
    company_name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS daily_data (
    date TEXT NOT NULL,
    symbol TEXT NOT NULL,
    open REAL,
    high REAL,
    low REAL,
    close REAL,
    volume INTEGER,
    PRIMARY KEY (date, symbol)
);

CREATE INDEX IF NOT EXISTS idx_daily_symbol_date ON daily_data(symbol, date);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init market schema: %w", err)
	}
	return &MarketStore{db: db}, nil
}

func (m *MarketStore) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// SaveBatch writes every symbol and its bars in a single transaction.
func (m *MarketStore) SaveBatch(ctx context.Context, batch []SymbolBars) error {
	if len(batch) == 0 {
		return nil
	}
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range batch {
		symbol := strings.ToUpper(strings.TrimSpace(item.Stock.Symbol))
		if symbol == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO stocks (symbol, company_name) VALUES (?, ?)
ON CONFLICT(symbol) DO UPDATE SET
    company_name = CASE WHEN excluded.company_name <> '' THEN excluded.company_name ELSE stocks.company_name END
`, symbol, item.Stock.CompanyName); err != nil {
			return fmt.Errorf("upsert stock %s: %w", symbol, err)
		}
		for _, b := range item.Bars {
			row := dailyRow{
				Date:   b.Date.Format(dateLayout),
				Symbol: symbol,
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
			}
			if _, err := tx.NamedExecContext(ctx, `
INSERT OR REPLACE INTO daily_data (date, symbol, open, high, low, close, volume)
VALUES (:date, :symbol, :open, :high, :low, :close, :volume)
`, row); err != nil {
				return fmt.Errorf("insert bar %s %s: %w", symbol, row.Date, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// GetStockData returns the cached bars for symbol within [start, end], oldest first.
func (m *MarketStore) GetStockData(ctx context.Context, symbol string, start, end time.Time) ([]models.Bar, error) {
	var rows []dailyRow
	err := m.db.SelectContext(ctx, &rows, `
SELECT date, symbol, open, high, low, close, volume
FROM daily_data
WHERE symbol = ? AND date BETWEEN ? AND ?
ORDER BY date ASC
`, strings.ToUpper(symbol), start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("get stock data %s: %w", symbol, err)
	}

	bars := make([]models.Bar, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			return nil, fmt.Errorf("parse cached date %q: %w", r.Date, err)
		}
		bars = append(bars, models.Bar{
			Date:   date,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return bars, nil
}

// LatestDate returns the newest cached date for symbol; ok is false when nothing is cached.
func (m *MarketStore) LatestDate(ctx context.Context, symbol string) (latest time.Time, ok bool, err error) {
	var raw sql.NullString
	if err := m.db.GetContext(ctx, &raw, `SELECT MAX(date) FROM daily_data WHERE symbol = ?`, strings.ToUpper(symbol)); err != nil {
		return time.Time{}, false, fmt.Errorf("latest date %s: %w", symbol, err)
	}
	if !raw.Valid || raw.String == "" {
		return time.Time{}, false, nil
	}
	latest, err = time.Parse(dateLayout, raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse latest date %q: %w", raw.String, err)
	}
	return latest, true, nil
}

// Coverage returns the first and last cached dates for symbol.
func (m *MarketStore) Coverage(ctx context.Context, symbol string) (first, last time.Time, ok bool, err error) {
	var span struct {
		First sql.NullString `db:"first"`
		Last  sql.NullString `db:"last"`
	}
	if err := m.db.GetContext(ctx, &span, `SELECT MIN(date) AS first, MAX(date) AS last FROM daily_data WHERE symbol = ?`,
		strings.ToUpper(symbol)); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("coverage %s: %w", symbol, err)
	}
	if !span.First.Valid || !span.Last.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	if first, err = time.Parse(dateLayout, span.First.String); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if last, err = time.Parse(dateLayout, span.Last.String); err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return first, last, true, nil
}

func (m *MarketStore) GetAllSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	if err := m.db.SelectContext(ctx, &symbols, `SELECT symbol FROM stocks ORDER BY symbol`); err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return symbols, nil
}

// CompanyName returns "" when the symbol is not cached.
func (m *MarketStore) CompanyName(ctx context.Context, symbol string) (string, error) {
	var name string
	err := m.db.GetContext(ctx, &name, `SELECT company_name FROM stocks WHERE symbol = ?`, strings.ToUpper(symbol))
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("company name %s: %w", symbol, err)
	}
	return name, nil
}

func (m *MarketStore) GetStockCount(ctx context.Context) (int64, error) {
	var n int64
	if err := m.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM stocks`); err != nil {
		return 0, fmt.Errorf("count stocks: %w", err)
	}
	return n, nil
}

func (m *MarketStore) GetDataPointCount(ctx context.Context) (int64, error) {
	var n int64
	if err := m.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM daily_data`); err != nil {
		return 0, fmt.Errorf("count data points: %w", err)
	}
	return n, nil
}

// GetDateRange returns the oldest and newest cached dates across all symbols, empty when the cache is empty.
func (m *MarketStore) GetDateRange(ctx context.Context) (string, string, error) {
	var span struct {
		First sql.NullString `db:"first"`
		Last  sql.NullString `db:"last"`
	}
	if err := m.db.GetContext(ctx, &span, `SELECT MIN(date) AS first, MAX(date) AS last FROM daily_data`); err != nil {
		return "", "", fmt.Errorf("date range: %w", err)
	}
	return span.First.String, span.Last.String, nil
}
