package domain

import "github.com/shopspring/decimal"

type Tier string

const (
	TierBronze   Tier = "BRONZE"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

type DiscountKind string

const (
	DiscountPercentage DiscountKind = "PERCENTAGE"
	DiscountFlatPerPax DiscountKind = "FLAT_PER_PAX"
)

// AgentSnapshot is an agent's tier terms read once at the start of a pricing
// call. The engine only ever sees this value, never the live agent row, so a
// concurrent tier change cannot split a single quote's math.
type AgentSnapshot struct {
	ID             int64
	Tier           Tier
	DiscountKind   DiscountKind
	DiscountRate   decimal.Decimal // percentage, or flat minor units per pax
	CommissionRate decimal.Decimal // percentage of the client-facing total
}
