package pricing

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tripquote/internal/domain"
)

// MarkupPolicy carries the platform-level bound on percentage markups.
type MarkupPolicy struct {
	CeilingPct decimal.Decimal
}

// Markup computes the agent-chosen markup on the discounted subtotal.
// Percentage markups above the platform ceiling and negative values of either
// form are rejected.
func Markup(discounted decimal.Decimal, mt domain.MarkupType, mv decimal.Decimal, policy MarkupPolicy) (decimal.Decimal, error) {
	if mv.IsNegative() {
		return decimal.Zero, domain.ErrMarkupNegative
	}
	switch mt {
	case domain.MarkupFixed:
		return mv, nil
	default:
		if mv.GreaterThan(policy.CeilingPct) {
			return decimal.Zero, domain.ErrMarkupExceedsCeiling
		}
		return discounted.Mul(mv).Div(hundred), nil
	}
}

// Totals aggregates priced lines into the quote's derived figures:
//
//	subtotal -> tier discount -> markup -> total -> commission
//
// All intermediate arithmetic is exact; the client-facing total is the single
// rounding point (round-half-to-even, via RoundBank) and commission is taken
// from that rounded total so the agent earns on exactly what the client pays.
func Totals(items []domain.QuoteItem, agent domain.AgentSnapshot, mt domain.MarkupType, mv decimal.Decimal, policy MarkupPolicy) (domain.QuoteTotals, error) {
	subtotal := decimal.Zero
	totalPax := 0
	for _, it := range items {
		subtotal = subtotal.Add(it.LineSubtotal)
		totalPax += it.Pax
	}

	discount := TierDiscount(agent, subtotal, totalPax)
	discounted := subtotal.Sub(discount)

	markup, err := Markup(discounted, mt, mv, policy)
	if err != nil {
		return domain.QuoteTotals{}, err
	}

	exactTotal := discounted.Add(markup)
	total := exactTotal.RoundBank(0)

	if total.IsNegative() {
		// Should be unreachable: discounts are capped and markups rejected
		// when negative. Log everything we know and surface the opaque error.
		log.Error().
			Stringer("subtotal", subtotal).
			Stringer("discount", discount).
			Stringer("markup", markup).
			Stringer("total", total).
			Int64("agent_id", agent.ID).
			Str("markup_type", string(mt)).
			Stringer("markup_value", mv).
			Msg("pricing invariant violated: negative total")
		return domain.QuoteTotals{}, domain.ErrInternalPricing
	}

	commission := total.Mul(agent.CommissionRate).Div(hundred).RoundBank(0)

	return domain.QuoteTotals{
		Subtotal:     subtotal.RoundBank(0).IntPart(),
		TierDiscount: discount.RoundBank(0).IntPart(),
		Markup:       markup.RoundBank(0).IntPart(),
		Total:        total.IntPart(),
		Commission:   commission.IntPart(),
	}, nil
}
