package portfolio

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/pkg/errors"
	"github.com/dyike/CortexOffice/pkg/logger"
)

// DefaultInitialCash is the starting balance used when none is configured.
var DefaultInitialCash = decimal.NewFromInt(100000)

// QuoteSource prices held symbols. Symbols that cannot be priced are absent from the result.
type QuoteSource interface {
	CurrentInfo(ctx context.Context, symbols []string) map[string]models.Quote
}

// Portfolio owns cash, holdings and the append-only ledger. All methods are safe for concurrent use.
type Portfolio struct {
	mu          sync.Mutex
	initialCash decimal.Decimal
	cash        decimal.Decimal
	holdings    map[string]models.Holding
	ledger      []models.Transaction

	quotes    QuoteSource
	reportDir string
	replay    LedgerReplay
	now       func() time.Time
	log       *logger.Logger
}

type Option func(*Portfolio)

func WithQuoteSource(q QuoteSource) Option {
	return func(p *Portfolio) { p.quotes = q }
}

// WithReportDir sets where dated report files are written. Empty disables persistence.
func WithReportDir(dir string) Option {
	return func(p *Portfolio) { p.reportDir = dir }
}

func WithLedgerReplay(mode LedgerReplay) Option {
	return func(p *Portfolio) { p.replay = mode }
}

func WithClock(now func() time.Time) Option {
	return func(p *Portfolio) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a portfolio holding only initialCash.
func New(initialCash decimal.Decimal, opts ...Option) *Portfolio {
	p := &Portfolio{
		initialCash: initialCash,
		cash:        initialCash,
		holdings:    make(map[string]models.Holding),
		replay:      ReplaySource,
		now:         time.Now,
		log:         logger.Get().Named("portfolio"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Buy records a purchase dated today.
func (p *Portfolio) Buy(symbol string, quantity int64, price decimal.Decimal) error {
	return p.BuyOn(symbol, quantity, price, p.now())
}

// BuyOn records a purchase on the given date. It fails with ErrInsufficientFunds when
// price × quantity exceeds cash; nothing changes on failure.
func (p *Portfolio) BuyOn(symbol string, quantity int64, price decimal.Decimal, date time.Time) error {
	symbol = normalize(symbol)
	if symbol == "" || quantity <= 0 || !price.IsPositive() {
		return fmt.Errorf("%w: buy %s qty=%d price=%s", errors.ErrInvalidInput, symbol, quantity, price)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cost := price.Mul(decimal.NewFromInt(quantity))
	if cost.GreaterThan(p.cash) {
		return fmt.Errorf("%w: buy %d %s costs %s, cash %s",
			errors.ErrInsufficientFunds, quantity, symbol, cost.StringFixed(2), p.cash.StringFixed(2))
	}

	p.cash = p.cash.Sub(cost)
	p.holdings[symbol] = applyBuy(p.holdings[symbol], symbol, quantity, cost)
	p.ledger = append(p.ledger, models.Transaction{
		Date:     date,
		Kind:     models.ActionBuy,
		Symbol:   symbol,
		Quantity: quantity,
		Price:    price,
	})
	return nil
}

// Sell records a sale dated today.
func (p *Portfolio) Sell(symbol string, quantity int64, price decimal.Decimal) error {
	return p.SellOn(symbol, quantity, price, p.now())
}

// SellOn records a sale on the given date. A holding that reaches zero shares is removed.
func (p *Portfolio) SellOn(symbol string, quantity int64, price decimal.Decimal, date time.Time) error {
	symbol = normalize(symbol)
	if symbol == "" || quantity <= 0 || price.IsNegative() {
		return fmt.Errorf("%w: sell %s qty=%d price=%s", errors.ErrInvalidInput, symbol, quantity, price)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	holding, ok := p.holdings[symbol]
	if !ok {
		return fmt.Errorf("%w: %s is not held", errors.ErrUnknownSymbol, symbol)
	}
	if quantity > holding.Quantity {
		return fmt.Errorf("%w: sell %d %s, holding %d",
			errors.ErrInsufficientShares, quantity, symbol, holding.Quantity)
	}

	p.cash = p.cash.Add(price.Mul(decimal.NewFromInt(quantity)))
	remaining := applySell(holding, quantity)
	if remaining.Quantity == 0 {
		delete(p.holdings, symbol)
	} else {
		p.holdings[symbol] = remaining
	}
	p.ledger = append(p.ledger, models.Transaction{
		Date:     date,
		Kind:     models.ActionSell,
		Symbol:   symbol,
		Quantity: quantity,
		Price:    price,
	})
	return nil
}

// applyBuy adds quantity and cost to a holding, creating it when h is the zero value.
func applyBuy(h models.Holding, symbol string, quantity int64, cost decimal.Decimal) models.Holding {
	h.Symbol = symbol
	h.Quantity += quantity
	h.TotalCost = h.TotalCost.Add(cost)
	return h
}

// applySell removes quantity from a holding. TotalCost is carried over unchanged, so the
// average cost of the remaining shares rises after a partial sell.
func applySell(h models.Holding, quantity int64) models.Holding {
	h.Quantity -= quantity
	return h
}

func (p *Portfolio) Cash() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

func (p *Portfolio) InitialCash() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialCash
}

// Holding returns the position for symbol, if any.
func (p *Portfolio) Holding(symbol string) (models.Holding, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.holdings[normalize(symbol)]
	return h, ok
}

// Holdings returns the open positions sorted by symbol.
func (p *Portfolio) Holdings() []models.Holding {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedHoldings(p.holdings)
}

// Ledger returns a copy of the transaction log in insertion order.
func (p *Portfolio) Ledger() []models.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Transaction, len(p.ledger))
	copy(out, p.ledger)
	return out
}

// Snapshot is the serializable state of a portfolio.
type Snapshot struct {
	InitialCash decimal.Decimal      `json:"initial_cash"`
	Cash        decimal.Decimal      `json:"cash"`
	Holdings    []models.Holding     `json:"holdings"`
	Ledger      []models.Transaction `json:"ledger"`
}

func (p *Portfolio) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	ledger := make([]models.Transaction, len(p.ledger))
	copy(ledger, p.ledger)
	return Snapshot{
		InitialCash: p.initialCash,
		Cash:        p.cash,
		Holdings:    sortedHoldings(p.holdings),
		Ledger:      ledger,
	}
}

// Restore replaces the portfolio state with s.
func (p *Portfolio) Restore(s Snapshot) error {
	if s.Cash.IsNegative() {
		return fmt.Errorf("%w: negative cash %s in snapshot", errors.ErrInvalidInput, s.Cash)
	}
	holdings := make(map[string]models.Holding, len(s.Holdings))
	for _, h := range s.Holdings {
		if h.Quantity <= 0 {
			return fmt.Errorf("%w: holding %s has quantity %d", errors.ErrInvalidInput, h.Symbol, h.Quantity)
		}
		h.Symbol = normalize(h.Symbol)
		if _, dup := holdings[h.Symbol]; dup {
			return fmt.Errorf("%w: holding %s appears twice", errors.ErrInvalidInput, h.Symbol)
		}
		holdings[h.Symbol] = h
	}
	ledger := make([]models.Transaction, len(s.Ledger))
	for i, tx := range s.Ledger {
		tx.Symbol = normalize(tx.Symbol)
		ledger[i] = tx
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialCash = s.InitialCash
	p.cash = s.Cash
	p.holdings = holdings
	p.ledger = ledger
	return nil
}

func sortedHoldings(m map[string]models.Holding) []models.Holding {
	out := make([]models.Holding, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
