package pricing

import (
	"github.com/shopspring/decimal"

	"tripquote/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// TierDiscount computes the agent-tier discount on the quote-level eligible
// subtotal. It runs once per quote, never per line, so rounding drift cannot
// accumulate across many small lines. The flat-per-pax form is capped at the
// eligible subtotal: a discount can zero a quote but never drive it negative.
func TierDiscount(agent domain.AgentSnapshot, eligible decimal.Decimal, totalPax int) decimal.Decimal {
	var d decimal.Decimal
	switch agent.DiscountKind {
	case domain.DiscountFlatPerPax:
		d = agent.DiscountRate.Mul(decimal.NewFromInt(int64(totalPax)))
	default:
		d = eligible.Mul(agent.DiscountRate).Div(hundred)
	}
	if d.GreaterThan(eligible) {
		return eligible
	}
	return d
}
