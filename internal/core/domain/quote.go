package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLine is one traveler class's contribution to a resolved price.
type PriceLine struct {
	Class  TravelerClass   `json:"class"`
	Unit   decimal.Decimal `json:"unit"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// PriceBreakdown is the result of resolving one entry for one composition.
// Identical inputs over the same entry snapshot produce identical breakdowns.
type PriceBreakdown struct {
	Currency Currency        `json:"currency"`
	Lines    []PriceLine     `json:"lines,omitempty"`
	Nights   int             `json:"nights,omitempty"`
	Total    decimal.Decimal `json:"total"`
}

// PriceQuote is an ephemeral value handed to browsing screens; the engine
// never persists it.
type PriceQuote struct {
	EntryID     string              `json:"entry_id"`
	Composition TravelerComposition `json:"composition"`
	Tier        OccupancyTier       `json:"tier,omitempty"`
	Nights      int                 `json:"nights,omitempty"`
	Breakdown   PriceBreakdown      `json:"breakdown"`
	Total       decimal.Decimal     `json:"total"`
	Currency    Currency            `json:"currency"`
	ComputedAt  time.Time           `json:"computed_at"`
}
