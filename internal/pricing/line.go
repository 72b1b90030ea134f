package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"tripquote/internal/domain"
)

// LineRequest is one agent selection to be priced.
type LineRequest struct {
	ItemID   int64
	Start    time.Time
	End      time.Time
	Quantity int
	Pax      int
}

// PriceLine turns a selection into a priced QuoteItem snapshot. The segment
// breakdown is kept on the item verbatim: the quote viewer and dispute flow
// need to show where each night's price came from, so collapsing to a single
// number here would throw away the audit trail.
func PriceLine(item domain.CatalogItem, rates []domain.SeasonalRate, req LineRequest) (domain.QuoteItem, error) {
	if req.Quantity < 1 {
		return domain.QuoteItem{}, domain.ErrInvalidQuantity
	}
	start, end := Day(req.Start), Day(req.End)
	if !start.Before(end) {
		return domain.QuoteItem{}, domain.ErrInvalidDateRange
	}

	switch item.Kind {
	case domain.KindActivity:
		if req.Pax < item.MinPax || req.Pax > item.MaxPax {
			return domain.QuoteItem{}, domain.ErrPaxOutOfRange
		}
	case domain.KindRoom:
		// quantity cancels on both sides of quantity*pax <= capacity*quantity
		if req.Pax > item.Capacity {
			return domain.QuoteItem{}, domain.ErrRoomCapacityExceeded
		}
	}

	qi := domain.QuoteItem{
		ItemID:   item.ID,
		Kind:     item.Kind,
		Name:     item.Name,
		Unit:     item.Unit,
		Start:    start,
		End:      end,
		Quantity: req.Quantity,
		Pax:      req.Pax,
	}

	qty := decimal.NewFromInt(int64(req.Quantity))
	switch item.Unit {
	case domain.PerNight:
		segs, err := ResolveSegments(item, rates, start, end)
		if err != nil {
			return domain.QuoteItem{}, err
		}
		sum := decimal.Zero
		for _, s := range segs {
			sum = sum.Add(s.Price.Mul(decimal.NewFromInt(int64(s.Nights))))
			qi.Nights += s.Nights
		}
		qi.Segments = segs
		qi.LineSubtotal = sum.Mul(qty)

	case domain.PerPax:
		seg := ResolveAt(item, rates, start)
		qi.Segments = []domain.RateSegment{seg}
		qi.LineSubtotal = seg.Price.Mul(decimal.NewFromInt(int64(req.Pax)))

	case domain.PerBooking:
		seg := ResolveAt(item, rates, start)
		qi.Segments = []domain.RateSegment{seg}
		qi.LineSubtotal = seg.Price.Mul(qty)
	}

	return qi, nil
}
