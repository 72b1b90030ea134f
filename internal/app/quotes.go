package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tripquote/internal/domain"
	"tripquote/internal/pricing"
)

// QuoteService owns the quote lifecycle: draft edits with full recompute,
// the optimistic-concurrency freeze, and terminal transitions. Reads go
// through the cache; every mutation invalidates.
type QuoteService struct {
	quotes   domain.QuoteRepository
	catalog  domain.CatalogRepository
	agents   domain.AgentRepository
	cache    domain.Cache
	cacheTTL time.Duration
	policy   pricing.MarkupPolicy
}

func NewQuoteService(q domain.QuoteRepository, c domain.CatalogRepository, a domain.AgentRepository, cache domain.Cache, ttl time.Duration, policy pricing.MarkupPolicy) *QuoteService {
	return &QuoteService{quotes: q, catalog: c, agents: a, cache: cache, cacheTTL: ttl, policy: policy}
}

func (s *QuoteService) CreateDraft(ctx context.Context, agentID int64, mt domain.MarkupType, mv decimal.Decimal) (domain.Quote, error) {
	agent, err := s.agents.GetAgent(ctx, agentID)
	if err != nil {
		return domain.Quote{}, err
	}
	totals, err := pricing.Totals(nil, agent, mt, mv, s.policy)
	if err != nil {
		return domain.Quote{}, err
	}
	q := domain.Quote{
		AgentID:     agentID,
		Status:      domain.StatusDraft,
		MarkupType:  mt,
		MarkupValue: mv,
		Totals:      totals,
	}
	return s.quotes.Create(ctx, q)
}

func (s *QuoteService) Get(ctx context.Context, id int64) (domain.Quote, error) {
	key := quoteKey(id)
	var q domain.Quote
	if ok, _ := s.cache.Get(ctx, key, &q); ok {
		return q, nil
	}
	q, err := s.quotes.Load(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	_ = s.cache.Set(ctx, key, deepCopyQuote(q), int(s.cacheTTL.Seconds()))
	return q, nil
}

// AddItem prices the selection against the current catalog snapshot, appends
// it to the draft and recomputes all derived totals in one saved step.
func (s *QuoteService) AddItem(ctx context.Context, quoteID int64, req pricing.LineRequest) (domain.Quote, error) {
	q, err := s.loadDraft(ctx, quoteID)
	if err != nil {
		return domain.Quote{}, err
	}
	it, err := s.catalog.GetItem(ctx, req.ItemID)
	if err != nil {
		return domain.Quote{}, err
	}
	rates, err := s.catalog.RatesForItem(ctx, req.ItemID)
	if err != nil {
		return domain.Quote{}, err
	}
	qi, err := pricing.PriceLine(it, rates, req)
	if err != nil {
		return domain.Quote{}, err
	}
	q.Items = append(q.Items, qi)
	return s.recomputeAndSave(ctx, q)
}

func (s *QuoteService) RemoveItem(ctx context.Context, quoteID, quoteItemID int64) (domain.Quote, error) {
	q, err := s.loadDraft(ctx, quoteID)
	if err != nil {
		return domain.Quote{}, err
	}
	kept := q.Items[:0]
	found := false
	for _, it := range q.Items {
		if it.ID == quoteItemID {
			found = true
			continue
		}
		kept = append(kept, it)
	}
	if !found {
		return domain.Quote{}, fmt.Errorf("quote item %d: %w", quoteItemID, domain.ErrQuoteNotFound)
	}
	q.Items = kept
	return s.recomputeAndSave(ctx, q)
}

// UpdateMarkup changes the agent-chosen markup on a draft; like any other
// draft edit it triggers a full recompute.
func (s *QuoteService) UpdateMarkup(ctx context.Context, quoteID int64, mt domain.MarkupType, mv decimal.Decimal) (domain.Quote, error) {
	q, err := s.loadDraft(ctx, quoteID)
	if err != nil {
		return domain.Quote{}, err
	}
	q.MarkupType, q.MarkupValue = mt, mv
	return s.recomputeAndSave(ctx, q)
}

// Freeze makes the quote's totals and item snapshots immutable. The caller
// supplies the version it last observed; a concurrent edit advances the
// stored version and the freeze fails with ErrVersionConflict. Re-freezing an
// already-SENT quote with its current version is a no-op that returns the
// frozen totals unchanged.
func (s *QuoteService) Freeze(ctx context.Context, quoteID, expectedVersion int64) (domain.Quote, error) {
	q, err := s.quotes.Load(ctx, quoteID)
	if err != nil {
		return domain.Quote{}, err
	}
	if q.Version != expectedVersion {
		return domain.Quote{}, domain.ErrVersionConflict
	}
	if q.Status == domain.StatusSent {
		return q, nil
	}
	if q.Status.Terminal() {
		return domain.Quote{}, domain.ErrQuoteFrozen
	}
	if err := s.quotes.UpdateStatus(ctx, quoteID, domain.StatusSent, expectedVersion); err != nil {
		return domain.Quote{}, err
	}
	q.Status = domain.StatusSent
	s.invalidate(ctx, quoteID)
	return q, nil
}

func (s *QuoteService) Accept(ctx context.Context, id int64) (domain.Quote, error) {
	return s.conclude(ctx, id, domain.StatusAccepted)
}

func (s *QuoteService) Reject(ctx context.Context, id int64) (domain.Quote, error) {
	return s.conclude(ctx, id, domain.StatusRejected)
}

func (s *QuoteService) Expire(ctx context.Context, id int64) (domain.Quote, error) {
	return s.conclude(ctx, id, domain.StatusExpired)
}

// conclude applies a terminal transition. Only SENT quotes may conclude, and
// the frozen pricing is never touched.
func (s *QuoteService) conclude(ctx context.Context, id int64, to domain.QuoteStatus) (domain.Quote, error) {
	q, err := s.quotes.Load(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if q.Status.Terminal() {
		return domain.Quote{}, domain.ErrQuoteFrozen
	}
	if q.Status != domain.StatusSent {
		return domain.Quote{}, fmt.Errorf("quote %d is %s, not SENT: %w", id, q.Status, domain.ErrQuoteFrozen)
	}
	if err := s.quotes.UpdateStatus(ctx, id, to, q.Version); err != nil {
		return domain.Quote{}, err
	}
	q.Status = to
	s.invalidate(ctx, id)
	return q, nil
}

func (s *QuoteService) loadDraft(ctx context.Context, id int64) (domain.Quote, error) {
	q, err := s.quotes.Load(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	if q.Status != domain.StatusDraft {
		return domain.Quote{}, domain.ErrQuoteFrozen
	}
	return q, nil
}

func (s *QuoteService) recomputeAndSave(ctx context.Context, q domain.Quote) (domain.Quote, error) {
	agent, err := s.agents.GetAgent(ctx, q.AgentID)
	if err != nil {
		return domain.Quote{}, err
	}
	totals, err := pricing.Totals(q.Items, agent, q.MarkupType, q.MarkupValue, s.policy)
	if err != nil {
		return domain.Quote{}, err
	}
	q.Totals = totals
	saved, err := s.quotes.Save(ctx, q, q.Version)
	if err != nil {
		return domain.Quote{}, err
	}
	s.invalidate(ctx, q.ID)
	return saved, nil
}

func (s *QuoteService) invalidate(ctx context.Context, id int64) {
	_ = s.cache.Del(ctx, quoteKey(id))
}

func quoteKey(id int64) string { return fmt.Sprintf("quote:%d", id) }

// copy the items slice so cached values can't alias a caller's backing array
func deepCopyQuote(in domain.Quote) domain.Quote {
	out := in
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.QuoteItem, n)
		copy(out.Items, in.Items)
	}
	return out
}
