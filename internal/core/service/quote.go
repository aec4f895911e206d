package service

import (
	"context"
	"fmt"
	"time"

	"github.com/openvoyage/travel-engine/internal/core/domain"
	"github.com/openvoyage/travel-engine/internal/core/pricing"
	"github.com/openvoyage/travel-engine/internal/port"
)

// QuoteService resolves prices for browsing screens. It never mutates stock.
type QuoteService struct {
	inventory port.InventoryRepository
}

func NewQuoteService(inventory port.InventoryRepository) *QuoteService {
	return &QuoteService{inventory: inventory}
}

// Quote prices one entry for a traveler composition. The result is a value;
// identical inputs over the same ledger state produce equal quotes apart
// from the computation timestamp.
func (s *QuoteService) Quote(ctx context.Context, entryID string, composition domain.TravelerComposition, tier domain.OccupancyTier, nights int) (*domain.PriceQuote, error) {
	entry, err := s.inventory.GetEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("load entry %s: %w", entryID, err)
	}
	if entry == nil {
		return nil, ErrNotFound
	}

	bd, err := pricing.Resolve(*entry, pricing.Request{
		Composition: composition,
		Tier:        tier,
		Nights:      nights,
	})
	if err != nil {
		return nil, err
	}

	return &domain.PriceQuote{
		EntryID:     entryID,
		Composition: composition,
		Tier:        tier,
		Nights:      nights,
		Breakdown:   bd,
		Total:       bd.Total,
		Currency:    bd.Currency,
		ComputedAt:  time.Now().UTC(),
	}, nil
}
