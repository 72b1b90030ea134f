package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tripquote/internal/domain"
)

// Day normalizes t to midnight UTC. Every night is the half-open interval
// [day, day+1); all interval math in this package runs on normalized days.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nightsBetween(start, end time.Time) int {
	return int(end.Sub(start) / (24 * time.Hour))
}

// ResolveSegments partitions [start, end) into maximal sub-intervals of
// constant resolved nightly price for the given item. Sub-intervals with no
// covering rate fall back to the item's base price. Where several rates cover
// a night, the highest Priority wins; ties go to the most recently created
// rate, then the larger ID, so resolution is deterministic for any input
// order of rates.
func ResolveSegments(item domain.CatalogItem, rates []domain.SeasonalRate, start, end time.Time) ([]domain.RateSegment, error) {
	start, end = Day(start), Day(end)
	if !start.Before(end) {
		return nil, domain.ErrInvalidDateRange
	}

	// Cut points: the range endpoints plus every rate boundary that falls
	// strictly inside the range.
	cuts := map[time.Time]struct{}{start: {}, end: {}}
	for _, r := range rates {
		if r.ItemID != item.ID {
			continue
		}
		for _, b := range []time.Time{Day(r.Start), Day(r.End)} {
			if b.After(start) && b.Before(end) {
				cuts[b] = struct{}{}
			}
		}
	}
	bounds := make([]time.Time, 0, len(cuts))
	for b := range cuts {
		bounds = append(bounds, b)
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].Before(bounds[j]) })

	var segs []domain.RateSegment
	for i := 0; i+1 < len(bounds); i++ {
		lo, hi := bounds[i], bounds[i+1]
		price, label := resolveNight(item, rates, lo)

		// Merge with the previous segment when the winning price did not
		// actually change across the cut.
		if n := len(segs); n > 0 && segs[n-1].Price.Equal(price) && segs[n-1].RateLabel == label {
			segs[n-1].Nights += nightsBetween(lo, hi)
			continue
		}
		segs = append(segs, domain.RateSegment{
			Start:     lo,
			Nights:    nightsBetween(lo, hi),
			Price:     price,
			RateLabel: label,
		})
	}
	return segs, nil
}

// ResolveAt resolves the single price in effect on day. Activities and other
// non-nightly items use this instead of partitioning.
func ResolveAt(item domain.CatalogItem, rates []domain.SeasonalRate, day time.Time) domain.RateSegment {
	price, label := resolveNight(item, rates, Day(day))
	return domain.RateSegment{Start: Day(day), Nights: 0, Price: price, RateLabel: label}
}

func resolveNight(item domain.CatalogItem, rates []domain.SeasonalRate, day time.Time) (decimal.Decimal, string) {
	var winner *domain.SeasonalRate
	for i := range rates {
		r := &rates[i]
		if r.ItemID != item.ID || !r.Covers(day) {
			continue
		}
		if winner == nil || beats(*r, *winner) {
			winner = r
		}
	}
	if winner == nil {
		return decimal.NewFromInt(item.BasePrice), ""
	}
	switch winner.Rule {
	case domain.RuleFixedOverride:
		return decimal.NewFromInt(winner.Override), winner.Label
	default:
		return decimal.NewFromInt(item.BasePrice).Mul(winner.Factor), winner.Label
	}
}

func beats(a, b domain.SeasonalRate) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.Created.Equal(b.Created) {
		return a.Created.After(b.Created)
	}
	return a.ID > b.ID
}
