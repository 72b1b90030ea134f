package domain

import "context"

type CatalogRepository interface {
	// Read paths
	GetItem(ctx context.Context, id int64) (CatalogItem, error)
	RatesForItem(ctx context.Context, id int64) ([]SeasonalRate, error)

	// Write paths (importer)
	UpsertItem(ctx context.Context, it CatalogItem) error
	UpsertRates(ctx context.Context, rs []SeasonalRate) error
	LogMiss(ctx context.Context, id int64, status int, reason string) error
}

type AgentRepository interface {
	GetAgent(ctx context.Context, id int64) (AgentSnapshot, error)
}

type QuoteRepository interface {
	Create(ctx context.Context, q Quote) (Quote, error)
	Load(ctx context.Context, id int64) (Quote, error)
	// Save persists the quote's items and totals and bumps its version. It
	// fails with ErrVersionConflict when the stored version no longer equals
	// expectedVersion.
	Save(ctx context.Context, q Quote, expectedVersion int64) (Quote, error)
	// UpdateStatus changes only the lifecycle status, leaving the version
	// untouched: freezing must not look like an edit, or an idempotent
	// re-freeze could never match its own version.
	UpdateStatus(ctx context.Context, id int64, status QuoteStatus, expectedVersion int64) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// SupplierClient is the outbound content-API port used by the importer.
type SupplierClient interface {
	GetItem(ctx context.Context, id int64) (map[string]any, error)
	GetRates(ctx context.Context, id int64) ([]map[string]any, error)
}
