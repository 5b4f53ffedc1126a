package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dyike/CortexOffice/internal/models"
)

// StockEntry is one line of a symbol list file.
type StockEntry struct {
	Symbol      string
	CompanyName string
}

// ReadStockList reads a symbol list: either one symbol per line or "symbol,company_name" rows.
// A header row naming a "symbol" column is skipped; blank lines and duplicates are dropped.
func ReadStockList(path string) ([]StockEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbol list: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var entries []StockEntry
	seen := make(map[string]struct{})
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read symbol list line %d: %w", line, err)
		}
		if len(record) == 0 {
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(record[0]))
		if symbol == "" {
			continue
		}
		if line == 1 && strings.EqualFold(symbol, "symbol") {
			continue
		}
		if _, dup := seen[symbol]; dup {
			continue
		}
		seen[symbol] = struct{}{}

		entry := StockEntry{Symbol: symbol}
		if len(record) > 1 {
			entry.CompanyName = strings.TrimSpace(record[1])
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// WriteBarsCSV writes daily bars for one symbol to path, replacing any existing file.
func WriteBarsCSV(path, symbol string, bars []models.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Symbol", "Date", "Open", "High", "Low", "Close", "Volume"}); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, b := range bars {
		row := []string{
			symbol,
			b.Date.Format("2006-01-02"),
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
