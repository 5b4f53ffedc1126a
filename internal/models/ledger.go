package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// TradeInstruction is one structured (symbol, quantity, action) triplet.
type TradeInstruction struct {
	Symbol   string      `json:"symbol"`
	Quantity int64       `json:"quantity"`
	Action   TradeAction `json:"action"`
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	Date     time.Time       `json:"date"`
	Kind     TradeAction     `json:"kind"`
	Symbol   string          `json:"symbol"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Amount is price × quantity.
func (t Transaction) Amount() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}

// Holding is the open position in one symbol.
type Holding struct {
	Symbol    string          `json:"symbol"`
	Quantity  int64           `json:"quantity"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// AverageCost is TotalCost / Quantity; zero when nothing is held.
func (h Holding) AverageCost() decimal.Decimal {
	if h.Quantity == 0 {
		return decimal.Zero
	}
	return h.TotalCost.Div(decimal.NewFromInt(h.Quantity))
}
