package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuoteStatus string

const (
	StatusDraft    QuoteStatus = "DRAFT"
	StatusSent     QuoteStatus = "SENT"
	StatusAccepted QuoteStatus = "ACCEPTED"
	StatusRejected QuoteStatus = "REJECTED"
	StatusExpired  QuoteStatus = "EXPIRED"
)

// Terminal reports whether no further transition is allowed.
func (s QuoteStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusExpired
}

type MarkupType string

const (
	MarkupPercentage MarkupType = "PERCENTAGE"
	MarkupFixed      MarkupType = "FIXED"
)

// RateSegment is one maximal date sub-interval over which the resolved price
// is constant. Price is in minor units but may carry a fractional part when a
// seasonal multiplier was applied; it is rounded only at presentation.
// Nights is 0 for instant (non-nightly) resolutions.
type RateSegment struct {
	Start     time.Time       `json:"start"`
	Nights    int             `json:"nights"`
	Price     decimal.Decimal `json:"price"`
	RateLabel string          `json:"rate_label,omitempty"`
}

// QuoteItem snapshots everything needed to re-justify a priced line after the
// fact: the item attributes at pricing time plus the full segment breakdown.
// It never points back into the live catalog.
type QuoteItem struct {
	ID           int64
	ItemID       int64
	Kind         ItemKind
	Name         string
	Unit         PriceUnit
	Start        time.Time
	End          time.Time
	Nights       int
	Quantity     int
	Pax          int
	Segments     []RateSegment
	LineSubtotal decimal.Decimal // exact minor units, unrounded
}

// QuoteTotals are the derived figures stored on a quote, all in minor units.
// Total is the single rounding point (half-to-even); Commission is computed
// from the rounded Total. The component figures are rounded independently for
// storage and may disagree with the Total identity by at most one minor unit.
type QuoteTotals struct {
	Subtotal     int64
	TierDiscount int64
	Markup       int64
	Total        int64
	Commission   int64
}

type Quote struct {
	ID          int64
	AgentID     int64
	Status      QuoteStatus
	Items       []QuoteItem
	MarkupType  MarkupType
	MarkupValue decimal.Decimal // percentage, or fixed minor units
	Totals      QuoteTotals
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TotalPax sums pax across all lines; flat-per-pax tier discounts apply to it.
func (q Quote) TotalPax() int {
	n := 0
	for _, it := range q.Items {
		n += it.Pax
	}
	return n
}
