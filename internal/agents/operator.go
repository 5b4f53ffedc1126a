package agents

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dyike/CortexOffice/internal/metrics"
	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/pkg/errors"
	"github.com/dyike/CortexOffice/pkg/logger"
)

// QuoteSource prices symbols. Symbols it cannot price are absent from the result.
type QuoteSource interface {
	CurrentInfo(ctx context.Context, symbols []string) map[string]models.Quote
}

// Trader is the portfolio's write path.
type Trader interface {
	Buy(symbol string, quantity int64, price decimal.Decimal) error
	Sell(symbol string, quantity int64, price decimal.Decimal) error
}

// Fill is an executed instruction and the price it traded at.
type Fill struct {
	models.TradeInstruction
	Price decimal.Decimal `json:"price"`
}

// Execution is the outcome of a batch. Failed instructions are listed in Err.
type Execution struct {
	Fills   []Fill
	Skipped []models.TradeInstruction
	Err     error
}

func (e Execution) String() string {
	return fmt.Sprintf("%d executed, %d skipped", len(e.Fills), len(e.Skipped))
}

// Operator applies approved instructions to the portfolio at current prices.
type Operator struct {
	trader Trader
	quotes QuoteSource
	log    *logger.Logger
}

func NewOperator(trader Trader, quotes QuoteSource) *Operator {
	return &Operator{trader: trader, quotes: quotes, log: logger.Get().Named(RoleOperator)}
}

// Execute runs each instruction independently. A failing instruction never stops its siblings.
func (o *Operator) Execute(ctx context.Context, instructions []models.TradeInstruction) Execution {
	var (
		exec Execution
		errs errors.MultiError
	)
	for _, in := range instructions {
		if err := ctx.Err(); err != nil {
			errs.Add(err)
			exec.Skipped = append(exec.Skipped, in)
			continue
		}

		quote, ok := o.quotes.CurrentInfo(ctx, []string{in.Symbol})[in.Symbol]
		if !ok || !quote.Price.IsPositive() {
			o.log.Warnw("no current price, instruction skipped", "symbol", in.Symbol, "action", in.Action)
			metrics.RecordTrade(string(in.Action), "no_quote")
			errs.Add(fmt.Errorf("%w: %s", errors.ErrQuoteUnavailable, in.Symbol))
			exec.Skipped = append(exec.Skipped, in)
			continue
		}

		var err error
		switch in.Action {
		case models.ActionBuy:
			err = o.trader.Buy(in.Symbol, in.Quantity, quote.Price)
		case models.ActionSell:
			err = o.trader.Sell(in.Symbol, in.Quantity, quote.Price)
		default:
			err = fmt.Errorf("%w: unknown action %q", errors.ErrInvalidInput, in.Action)
		}
		if err != nil {
			o.log.Warnw("trade failed", "symbol", in.Symbol, "action", in.Action, "quantity", in.Quantity, "error", err)
			metrics.RecordTrade(string(in.Action), "failed")
			errs.Add(fmt.Errorf("%s %d %s: %w", in.Action, in.Quantity, in.Symbol, err))
			exec.Skipped = append(exec.Skipped, in)
			continue
		}

		o.log.Infow("trade executed", "symbol", in.Symbol, "action", in.Action, "quantity", in.Quantity, "price", quote.Price.StringFixed(2))
		metrics.RecordTrade(string(in.Action), "executed")
		exec.Fills = append(exec.Fills, Fill{TradeInstruction: in, Price: quote.Price})
	}
	exec.Err = errs.ToError()
	return exec
}
