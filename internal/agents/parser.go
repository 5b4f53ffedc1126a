package agents

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dyike/CortexOffice/internal/dataflows"
	"github.com/dyike/CortexOffice/internal/models"
)

var tripletPattern = regexp.MustCompile(`(?i)\(\s*\$?([A-Za-z][\w.\-]*)\s*,\s*(\d+)\s*,\s*(buy|sell)\s*\)`)

// ParseRecommendation extracts every (TICKER, quantity, buy|sell) triplet from text, in order.
// Text without triplets yields an empty slice. Zero quantities are dropped.
func ParseRecommendation(text string) []models.TradeInstruction {
	out := []models.TradeInstruction{}
	for _, m := range tripletPattern.FindAllStringSubmatch(text, -1) {
		qty, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil || qty <= 0 {
			continue
		}
		out = append(out, models.TradeInstruction{
			Symbol:   dataflows.NormalizeSymbol(m[1]),
			Quantity: qty,
			Action:   models.TradeAction(strings.ToLower(m[3])),
		})
	}
	return out
}
