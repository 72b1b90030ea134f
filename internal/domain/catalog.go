package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemKind string

const (
	KindRoom     ItemKind = "ROOM"
	KindActivity ItemKind = "ACTIVITY"
	KindAddon    ItemKind = "ADDON"
)

type PriceUnit string

const (
	PerNight   PriceUnit = "PER_NIGHT"
	PerPax     PriceUnit = "PER_PAX"
	PerBooking PriceUnit = "PER_BOOKING"
)

// CatalogItem is the static description of a sellable item. BasePrice is in
// minor units (cents). MinPax/MaxPax bound activities; Capacity bounds rooms
// (pax per room).
type CatalogItem struct {
	ID        int64
	Kind      ItemKind
	Name      string
	BasePrice int64
	Unit      PriceUnit
	MinPax    int
	MaxPax    int
	Capacity  int
}

type RateRule string

const (
	RuleMultiplier    RateRule = "MULTIPLIER"
	RuleFixedOverride RateRule = "FIXED_OVERRIDE"
)

// SeasonalRate overrides an item's base price over the half-open date
// interval [Start, End). Where intervals overlap, the highest Priority wins;
// ties go to the most recently created rate.
type SeasonalRate struct {
	ID       int64
	ItemID   int64
	Label    string
	Start    time.Time
	End      time.Time
	Rule     RateRule
	Factor   decimal.Decimal // RuleMultiplier: applied to BasePrice
	Override int64           // RuleFixedOverride: minor units
	Priority int
	Created  time.Time
}

// Covers reports whether the rate applies on the night starting at day.
// Both interval ends are normalized to midnight UTC, so a rate carrying a
// time-of-day still covers the whole of its first date.
func (r SeasonalRate) Covers(day time.Time) bool {
	return !day.Before(dateUTC(r.Start)) && day.Before(dateUTC(r.End))
}

func dateUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
