package domain

import "errors"

// Validation failures: the caller can correct the request and retry.
var (
	ErrInvalidDateRange     = errors.New("invalid date range")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrPaxOutOfRange        = errors.New("pax outside the activity's allowed range")
	ErrRoomCapacityExceeded = errors.New("pax exceeds room capacity")
	ErrMarkupNegative       = errors.New("markup value must not be negative")
	ErrMarkupExceedsCeiling = errors.New("markup percentage exceeds platform ceiling")
)

// Resource lookups.
var (
	ErrItemNotFound  = errors.New("catalog item not found")
	ErrAgentNotFound = errors.New("agent not found")
	ErrQuoteNotFound = errors.New("quote not found")
)

// Concurrency / lifecycle conflicts: recoverable by refetch-and-retry.
var (
	ErrQuoteFrozen     = errors.New("quote is frozen")
	ErrVersionConflict = errors.New("quote version conflict")
)

// ErrInternalPricing is surfaced when the engine detects an arithmetic
// contradiction of its own invariants. The full computation context is logged
// at the detection site; callers only ever see this opaque error.
var ErrInternalPricing = errors.New("internal pricing error")
