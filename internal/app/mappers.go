package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tripquote/internal/domain"
)

/********** alias registries (single source of truth) **********/

// Supplier feeds disagree on field names; first non-empty alias wins.
var itemAliases = map[string][]string{
	"name":       {"name", "title", "item_name", "display_name"},
	"kind":       {"kind", "type", "category", "item_type"},
	"unit":       {"unit", "price_unit", "pricing_unit", "billing_unit"},
	"base_price": {"base_price", "basePrice", "price", "price_minor", "amount"},
	"min_pax":    {"min_pax", "minPax", "min_travelers", "min_guests"},
	"max_pax":    {"max_pax", "maxPax", "max_travelers", "max_guests"},
	"capacity":   {"capacity", "occupancy", "max_occupancy", "sleeps"},
}

var rateAliases = map[string][]string{
	"id":       {"id", "rate_id", "rateId"},
	"label":    {"label", "name", "season", "season_name"},
	"start":    {"start", "start_date", "from", "valid_from"},
	"end":      {"end", "end_date", "to", "valid_to"},
	"factor":   {"factor", "multiplier", "rate_multiplier"},
	"override": {"override", "fixed_price", "price_override", "override_minor"},
	"priority": {"priority", "rank", "precedence"},
	"created":  {"created", "created_at", "createdAt"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

func aliasStr(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if v := lookupAny(m, p); v != nil {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// aliasInt: JSON numbers decode as float64; accepts string digits too.
func aliasInt(m map[string]any, aliases map[string][]string, key string) (int64, bool) {
	for _, p := range aliases[key] {
		switch v := lookupAny(m, p).(type) {
		case float64:
			return int64(v), true
		case string:
			if d, err := decimal.NewFromString(v); err == nil {
				return d.IntPart(), true
			}
		}
	}
	return 0, false
}

func aliasDecimal(m map[string]any, aliases map[string][]string, key string) (decimal.Decimal, bool) {
	for _, p := range aliases[key] {
		switch v := lookupAny(m, p).(type) {
		case float64:
			return decimal.NewFromFloat(v), true
		case string:
			if d, err := decimal.NewFromString(v); err == nil {
				return d, true
			}
		}
	}
	return decimal.Decimal{}, false
}

func aliasDate(m map[string]any, aliases map[string][]string, key string) (time.Time, bool) {
	for _, p := range aliases[key] {
		s, _ := lookupAny(m, p).(string)
		if s == "" {
			continue
		}
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

/********** mappers **********/

func mapItem(id int64, m map[string]any) (domain.CatalogItem, error) {
	base, ok := aliasInt(m, itemAliases, "base_price")
	if !ok || base < 0 {
		return domain.CatalogItem{}, fmt.Errorf("item %d: missing or negative base price", id)
	}

	it := domain.CatalogItem{
		ID:        id,
		Name:      aliasStr(m, itemAliases, "name"),
		BasePrice: base,
	}

	switch strings.ToUpper(aliasStr(m, itemAliases, "kind")) {
	case "ROOM", "ACCOMMODATION":
		it.Kind = domain.KindRoom
	case "ACTIVITY", "EXCURSION", "TOUR":
		it.Kind = domain.KindActivity
	default:
		it.Kind = domain.KindAddon
	}

	switch strings.ToUpper(aliasStr(m, itemAliases, "unit")) {
	case "PER_PAX", "PER_PERSON":
		it.Unit = domain.PerPax
	case "PER_BOOKING", "FLAT":
		it.Unit = domain.PerBooking
	case "PER_NIGHT", "NIGHTLY":
		it.Unit = domain.PerNight
	default:
		// Rooms default to nightly, everything else to per-booking.
		if it.Kind == domain.KindRoom {
			it.Unit = domain.PerNight
		} else {
			it.Unit = domain.PerBooking
		}
	}

	if v, ok := aliasInt(m, itemAliases, "min_pax"); ok {
		it.MinPax = int(v)
	}
	if v, ok := aliasInt(m, itemAliases, "max_pax"); ok {
		it.MaxPax = int(v)
	}
	if v, ok := aliasInt(m, itemAliases, "capacity"); ok {
		it.Capacity = int(v)
	}
	return it, nil
}

// mapRates drops rows it cannot date-bound rather than failing the import;
// a malformed calendar row must not block an item's base pricing.
func mapRates(itemID int64, raw []map[string]any) []domain.SeasonalRate {
	out := make([]domain.SeasonalRate, 0, len(raw))
	var maxID int64
	for _, m := range raw {
		start, okS := aliasDate(m, rateAliases, "start")
		end, okE := aliasDate(m, rateAliases, "end")
		if !okS || !okE || !start.Before(end) {
			continue
		}
		r := domain.SeasonalRate{
			ItemID: itemID,
			Label:  aliasStr(m, rateAliases, "label"),
			Start:  start,
			End:    end,
		}
		if id, ok := aliasInt(m, rateAliases, "id"); ok && id > 0 {
			r.ID = id
			if id > maxID {
				maxID = id
			}
		}
		if p, ok := aliasInt(m, rateAliases, "priority"); ok {
			r.Priority = int(p)
		}
		if c, ok := aliasDate(m, rateAliases, "created"); ok {
			r.Created = c
		}
		if ov, ok := aliasInt(m, rateAliases, "override"); ok {
			r.Rule = domain.RuleFixedOverride
			r.Override = ov
		} else if f, ok := aliasDecimal(m, rateAliases, "factor"); ok {
			r.Rule = domain.RuleMultiplier
			r.Factor = f
		} else {
			continue
		}
		out = append(out, r)
	}
	// Feeds that omit rate ids still need distinct per-item keys, or the
	// upsert would fold every id-less row onto id 0 and keep just one.
	// Number them after the largest explicit id in the batch.
	for i := range out {
		if out[i].ID == 0 {
			maxID++
			out[i].ID = maxID
		}
	}
	return out
}
