package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tripquote/internal/adapters/observability"
	"tripquote/internal/domain"
	"tripquote/internal/pricing"
)

// PricingService is the stateless pricing surface: it fetches immutable
// snapshots (catalog item, seasonal rates, agent terms) once per call and
// hands them to the pure engine. Concurrent calls share nothing.
type PricingService struct {
	catalog domain.CatalogRepository
	agents  domain.AgentRepository
	policy  pricing.MarkupPolicy
}

func NewPricingService(c domain.CatalogRepository, a domain.AgentRepository, policy pricing.MarkupPolicy) *PricingService {
	return &PricingService{catalog: c, agents: a, policy: policy}
}

// ResolvePrice prices a single selection into a QuoteItem snapshot with its
// full sub-interval breakdown.
func (s *PricingService) ResolvePrice(ctx context.Context, req pricing.LineRequest) (domain.QuoteItem, error) {
	start := time.Now()
	qi, err := s.priceLine(ctx, req)
	observability.ObservePricing("resolve", err, time.Since(start))
	return qi, err
}

// PriceQuote prices a whole selection set against an agent's terms without
// persisting anything. It returns both the totals and the priced lines so
// callers can show the breakdown alongside the figures.
func (s *PricingService) PriceQuote(ctx context.Context, agentID int64, reqs []pricing.LineRequest, mt domain.MarkupType, mv decimal.Decimal) (domain.QuoteTotals, []domain.QuoteItem, error) {
	start := time.Now()
	totals, items, err := s.priceQuote(ctx, agentID, reqs, mt, mv)
	observability.ObservePricing("quote", err, time.Since(start))
	return totals, items, err
}

func (s *PricingService) priceLine(ctx context.Context, req pricing.LineRequest) (domain.QuoteItem, error) {
	it, err := s.catalog.GetItem(ctx, req.ItemID)
	if err != nil {
		return domain.QuoteItem{}, err
	}
	rates, err := s.catalog.RatesForItem(ctx, req.ItemID)
	if err != nil {
		return domain.QuoteItem{}, err
	}
	return pricing.PriceLine(it, rates, req)
}

func (s *PricingService) priceQuote(ctx context.Context, agentID int64, reqs []pricing.LineRequest, mt domain.MarkupType, mv decimal.Decimal) (domain.QuoteTotals, []domain.QuoteItem, error) {
	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		return domain.QuoteTotals{}, nil, err
	}
	items := make([]domain.QuoteItem, 0, len(reqs))
	for _, req := range reqs {
		qi, err := s.priceLine(ctx, req)
		if err != nil {
			return domain.QuoteTotals{}, nil, err
		}
		items = append(items, qi)
	}
	totals, err := pricing.Totals(items, agent, mt, mv, s.policy)
	if err != nil {
		return domain.QuoteTotals{}, nil, err
	}
	return totals, items, nil
}
