package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tripquote/internal/app"
	"tripquote/internal/domain"
	"tripquote/internal/pricing"
)

// ---- fakes ----

type fakeCatalog struct {
	items map[int64]domain.CatalogItem
	rates map[int64][]domain.SeasonalRate
}

func (f *fakeCatalog) GetItem(ctx context.Context, id int64) (domain.CatalogItem, error) {
	it, ok := f.items[id]
	if !ok {
		return domain.CatalogItem{}, domain.ErrItemNotFound
	}
	return it, nil
}
func (f *fakeCatalog) RatesForItem(ctx context.Context, id int64) ([]domain.SeasonalRate, error) {
	return f.rates[id], nil
}
func (f *fakeCatalog) UpsertItem(ctx context.Context, it domain.CatalogItem) error {
	if f.items == nil {
		f.items = map[int64]domain.CatalogItem{}
	}
	f.items[it.ID] = it
	return nil
}
func (f *fakeCatalog) UpsertRates(ctx context.Context, rs []domain.SeasonalRate) error {
	if f.rates == nil {
		f.rates = map[int64][]domain.SeasonalRate{}
	}
	for _, r := range rs {
		f.rates[r.ItemID] = append(f.rates[r.ItemID], r)
	}
	return nil
}
func (f *fakeCatalog) LogMiss(ctx context.Context, id int64, status int, reason string) error {
	return nil
}

type fakeAgents struct{ agents map[int64]domain.AgentSnapshot }

func (f *fakeAgents) GetAgent(ctx context.Context, id int64) (domain.AgentSnapshot, error) {
	a, ok := f.agents[id]
	if !ok {
		return domain.AgentSnapshot{}, domain.ErrAgentNotFound
	}
	return a, nil
}

type fakeQuotes struct {
	m      map[int64]domain.Quote
	nextID int64
}

func (f *fakeQuotes) Create(ctx context.Context, q domain.Quote) (domain.Quote, error) {
	if f.m == nil {
		f.m = map[int64]domain.Quote{}
	}
	f.nextID++
	q.ID = f.nextID
	q.Version = 1
	f.m[q.ID] = q
	return q, nil
}

func (f *fakeQuotes) Load(ctx context.Context, id int64) (domain.Quote, error) {
	q, ok := f.m[id]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteNotFound
	}
	items := make([]domain.QuoteItem, len(q.Items))
	copy(items, q.Items)
	q.Items = items
	return q, nil
}

func (f *fakeQuotes) Save(ctx context.Context, q domain.Quote, expectedVersion int64) (domain.Quote, error) {
	cur, ok := f.m[q.ID]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteNotFound
	}
	if cur.Version != expectedVersion {
		return domain.Quote{}, domain.ErrVersionConflict
	}
	for i := range q.Items {
		if q.Items[i].ID == 0 {
			f.nextID++
			q.Items[i].ID = f.nextID
		}
	}
	q.Version = cur.Version + 1
	f.m[q.ID] = q
	return q, nil
}

func (f *fakeQuotes) UpdateStatus(ctx context.Context, id int64, status domain.QuoteStatus, expectedVersion int64) error {
	cur, ok := f.m[id]
	if !ok {
		return domain.ErrQuoteNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionConflict
	}
	cur.Status = status
	f.m[id] = cur
	return nil
}

type fakeCache struct {
	store map[string]any
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok2 := dst.(*domain.Quote); ok2 {
		*d = v.(domain.Quote)
	}
	return true, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

// ---- fixtures ----

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newService(t *testing.T) (*app.QuoteService, *fakeQuotes, *fakeCache) {
	t.Helper()
	catalog := &fakeCatalog{
		items: map[int64]domain.CatalogItem{
			1: {ID: 1, Kind: domain.KindRoom, Name: "Deluxe", BasePrice: 10000, Unit: domain.PerNight, Capacity: 3},
			2: {ID: 2, Kind: domain.KindActivity, Name: "Reef Dive", BasePrice: 4500, Unit: domain.PerPax, MinPax: 1, MaxPax: 8},
		},
	}
	agents := &fakeAgents{agents: map[int64]domain.AgentSnapshot{
		7: {
			ID: 7, Tier: domain.TierGold,
			DiscountKind:   domain.DiscountPercentage,
			DiscountRate:   decimal.NewFromInt(10),
			CommissionRate: decimal.NewFromInt(7),
		},
	}}
	quotes := &fakeQuotes{}
	cache := &fakeCache{}
	policy := pricing.MarkupPolicy{CeilingPct: decimal.NewFromInt(50)}
	return app.NewQuoteService(quotes, catalog, agents, cache, 10*time.Minute, policy), quotes, cache
}

func draftWithRoom(t *testing.T, svc *app.QuoteService) domain.Quote {
	t.Helper()
	q, err := svc.CreateDraft(context.Background(), 7, domain.MarkupPercentage, decimal.NewFromInt(15))
	if err != nil {
		t.Fatalf("create draft: %v", err)
	}
	q, err = svc.AddItem(context.Background(), q.ID, pricing.LineRequest{
		ItemID: 1, Start: day(2025, 6, 1), End: day(2025, 6, 4), Quantity: 1, Pax: 2,
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	return q
}

// ---- tests ----

func TestAddItem_RecomputesTotalsAndBumpsVersion(t *testing.T) {
	svc, _, cache := newService(t)
	q := draftWithRoom(t, svc)

	// 3 nights x $100, 10% discount, 15% markup, 7% commission
	want := domain.QuoteTotals{Subtotal: 30000, TierDiscount: 3000, Markup: 4050, Total: 31050, Commission: 2174}
	if q.Totals != want {
		t.Fatalf("totals:\n got %+v\nwant %+v", q.Totals, want)
	}
	if q.Version != 2 {
		t.Fatalf("version after create+add: %d", q.Version)
	}
	if len(cache.dels) == 0 {
		t.Fatalf("expected cache invalidation on mutation")
	}
}

func TestRemoveItem_Recomputes(t *testing.T) {
	svc, _, _ := newService(t)
	q := draftWithRoom(t, svc)

	q2, err := svc.RemoveItem(context.Background(), q.ID, q.Items[0].ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(q2.Items) != 0 || q2.Totals.Total != 0 {
		t.Fatalf("expected empty repriced quote, got %+v", q2.Totals)
	}
}

func TestAddItem_FrozenQuote(t *testing.T) {
	svc, _, _ := newService(t)
	q := draftWithRoom(t, svc)

	if _, err := svc.Freeze(context.Background(), q.ID, q.Version); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	_, err := svc.AddItem(context.Background(), q.ID, pricing.LineRequest{
		ItemID: 2, Start: day(2025, 6, 2), End: day(2025, 6, 3), Quantity: 1, Pax: 2,
	})
	if !errors.Is(err, domain.ErrQuoteFrozen) {
		t.Fatalf("expected ErrQuoteFrozen, got %v", err)
	}
}

func TestFreeze_StaleVersionConflicts(t *testing.T) {
	svc, _, _ := newService(t)
	q := draftWithRoom(t, svc)
	stale := q.Version

	// A concurrent edit advances the version.
	if _, err := svc.UpdateMarkup(context.Background(), q.ID, domain.MarkupPercentage, decimal.NewFromInt(20)); err != nil {
		t.Fatalf("markup edit: %v", err)
	}
	if _, err := svc.Freeze(context.Background(), q.ID, stale); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestFreeze_Idempotent(t *testing.T) {
	svc, _, _ := newService(t)
	q := draftWithRoom(t, svc)

	first, err := svc.Freeze(context.Background(), q.ID, q.Version)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	again, err := svc.Freeze(context.Background(), q.ID, q.Version)
	if err != nil {
		t.Fatalf("re-freeze: %v", err)
	}
	if first.Totals != again.Totals || again.Status != domain.StatusSent {
		t.Fatalf("re-freeze changed outcome: %+v vs %+v", first.Totals, again.Totals)
	}
}

func TestFreeze_PreservesTotalsAgainstCatalogChanges(t *testing.T) {
	svc, quotes, _ := newService(t)
	q := draftWithRoom(t, svc)
	frozen, err := svc.Freeze(context.Background(), q.ID, q.Version)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}

	// The live catalog moving afterward must not touch the frozen figures.
	stored, _ := quotes.Load(context.Background(), q.ID)
	if stored.Totals != frozen.Totals {
		t.Fatalf("stored totals diverged: %+v vs %+v", stored.Totals, frozen.Totals)
	}
}

func TestConclude_OnlyFromSent(t *testing.T) {
	svc, _, _ := newService(t)
	q := draftWithRoom(t, svc)

	if _, err := svc.Accept(context.Background(), q.ID); !errors.Is(err, domain.ErrQuoteFrozen) {
		t.Fatalf("accept from DRAFT: expected ErrQuoteFrozen, got %v", err)
	}

	if _, err := svc.Freeze(context.Background(), q.ID, q.Version); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	acc, err := svc.Accept(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if acc.Status != domain.StatusAccepted {
		t.Fatalf("status: %s", acc.Status)
	}
	// Terminal states refuse everything.
	if _, err := svc.Reject(context.Background(), q.ID); !errors.Is(err, domain.ErrQuoteFrozen) {
		t.Fatalf("reject after accept: expected ErrQuoteFrozen, got %v", err)
	}
}

func TestGet_CacheMissThenHit(t *testing.T) {
	svc, quotes, _ := newService(t)
	q := draftWithRoom(t, svc)

	got, err := svc.Get(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != q.ID {
		t.Fatalf("unexpected quote: %+v", got)
	}

	// Mutate the store directly; the second read must come from cache.
	tampered := quotes.m[q.ID]
	tampered.Totals.Total = 1
	quotes.m[q.ID] = tampered

	got2, err := svc.Get(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got2.Totals.Total != got.Totals.Total {
		t.Fatalf("expected cached totals, got %d", got2.Totals.Total)
	}
}

func TestCreateDraft_UnknownAgent(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.CreateDraft(context.Background(), 404, domain.MarkupPercentage, decimal.NewFromInt(10))
	if !errors.Is(err, domain.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestAddItem_UnknownCatalogItem(t *testing.T) {
	svc, _, _ := newService(t)
	q := draftWithRoom(t, svc)

	_, err := svc.AddItem(context.Background(), q.ID, pricing.LineRequest{
		ItemID: 999, Start: day(2025, 6, 2), End: day(2025, 6, 3), Quantity: 1, Pax: 2,
	})
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}
