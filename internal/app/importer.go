package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tripquote/internal/domain"
)

// ImportService pulls catalog items and their seasonal-rate calendars from
// the supplier content API and lands them in storage. Known misses
// (404/401/403) are recorded and skipped; anything else bubbles up.
type ImportService struct {
	supplier domain.SupplierClient
	catalog  domain.CatalogRepository
	cache    domain.Cache
}

func NewImportService(sc domain.SupplierClient, c domain.CatalogRepository, cache domain.Cache) *ImportService {
	return &ImportService{supplier: sc, catalog: c, cache: cache}
}

func (s *ImportService) ImportItem(ctx context.Context, id int64) error {
	// 1) Item first: rates reference it.
	payload, err := s.supplier.GetItem(ctx, id)
	if err != nil {
		low := strings.ToLower(err.Error())

		if errors.Is(err, domain.ErrItemNotFound) || strings.Contains(low, "not found") {
			_ = s.catalog.LogMiss(ctx, id, 404, "not found")
			s.invalidateItem(ctx, id)
			return nil
		}
		if strings.Contains(low, "403") || strings.Contains(low, "forbidden") ||
			strings.Contains(low, "401") || strings.Contains(low, "unauthorized") {
			_ = s.catalog.LogMiss(ctx, id, 403, "inactive")
			s.invalidateItem(ctx, id)
			return nil
		}
		// Unexpected (network/5xx/JSON etc.) -> surface.
		return err
	}

	it, err := mapItem(id, payload)
	if err != nil {
		return fmt.Errorf("map item %d: %w", id, err)
	}
	if err := s.catalog.UpsertItem(ctx, it); err != nil {
		return err
	}
	s.invalidateItem(ctx, id)

	// 2) Rates: best-effort on known misses; an item without a calendar just
	// prices at base.
	raw, err := s.supplier.GetRates(ctx, id)
	if err != nil {
		low := strings.ToLower(err.Error())
		switch {
		case errors.Is(err, domain.ErrItemNotFound) || strings.Contains(low, "not found"):
			_ = s.catalog.LogMiss(ctx, id, 404, "rates")
			return nil
		case strings.Contains(low, "403") || strings.Contains(low, "forbidden") ||
			strings.Contains(low, "401") || strings.Contains(low, "unauthorized"):
			_ = s.catalog.LogMiss(ctx, id, 403, "rates")
			return nil
		default:
			return err
		}
	}

	rs := mapRates(id, raw)
	if len(rs) > 0 {
		if err := s.catalog.UpsertRates(ctx, rs); err != nil {
			return fmt.Errorf("upsert rates for %d: %w", id, err)
		}
	}
	return nil
}

func (s *ImportService) invalidateItem(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, fmt.Sprintf("item:%d", id))
}
