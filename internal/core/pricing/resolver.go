// Package pricing resolves prices for inventory entries. Resolution is pure:
// no I/O, no clock, no mutation of the entry.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openvoyage/travel-engine/internal/core/domain"
)

var (
	ErrUnsupportedOccupancy = errors.New("occupancy tier not offered by entry")
	ErrMissingPriceTier     = errors.New("no price for requested traveler class")
	ErrNightsRequired       = errors.New("per-night entry requires nights of at least 1")
	ErrUnknownEntryType     = errors.New("unknown entry type")
)

// Request carries the caller-side inputs of a resolution. Tier is required
// for hotel entries and ignored otherwise; Nights only applies to hotel
// entries in per-night mode.
type Request struct {
	Composition domain.TravelerComposition
	Tier        domain.OccupancyTier
	Nights      int
}

// Resolve returns a price breakdown for the entry and composition.
func Resolve(entry domain.InventoryEntry, req Request) (domain.PriceBreakdown, error) {
	if err := req.Composition.Validate(); err != nil {
		return domain.PriceBreakdown{}, err
	}
	switch entry.Type {
	case domain.EntryHotel:
		return resolveHotel(entry, req)
	case domain.EntryFlight:
		return resolveFlight(entry, req)
	case domain.EntryTransport:
		return resolveTransport(entry, req)
	}
	return domain.PriceBreakdown{}, fmt.Errorf("%w: %q", ErrUnknownEntryType, entry.Type)
}

func resolveHotel(entry domain.InventoryEntry, req Request) (domain.PriceBreakdown, error) {
	rates, ok := entry.RoomRates[req.Tier]
	if req.Tier == "" || !ok {
		return domain.PriceBreakdown{}, fmt.Errorf("%w: %q", ErrUnsupportedOccupancy, req.Tier)
	}

	nights := 1
	if entry.Mode == domain.PerNight {
		if req.Nights < 1 {
			return domain.PriceBreakdown{}, ErrNightsRequired
		}
		nights = req.Nights
	}

	lines, total, err := perHeadLines(rates, req.Composition, nights)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}

	bd := domain.PriceBreakdown{
		Currency: entry.Currency,
		Lines:    lines,
		Total:    domain.RoundMinor(total, entry.Currency),
	}
	if entry.Mode == domain.PerNight {
		bd.Nights = nights
	}
	return bd, nil
}

func resolveFlight(entry domain.InventoryEntry, req Request) (domain.PriceBreakdown, error) {
	lines, total, err := perHeadLines(entry.Fare, req.Composition, 1)
	if err != nil {
		return domain.PriceBreakdown{}, err
	}
	return domain.PriceBreakdown{
		Currency: entry.Currency,
		Lines:    lines,
		Total:    domain.RoundMinor(total, entry.Currency),
	}, nil
}

// resolveTransport prices one service instance. The traveler composition is
// accepted for interface uniformity but has no effect on the amount.
func resolveTransport(entry domain.InventoryEntry, _ Request) (domain.PriceBreakdown, error) {
	return domain.PriceBreakdown{
		Currency: entry.Currency,
		Total:    domain.RoundMinor(entry.ServicePrice, entry.Currency),
	}, nil
}

// perHeadLines sums unit × count per traveler class, multiplied by nights.
// An absent unit price for a class with a positive head count is a hard
// error, never treated as zero.
func perHeadLines(set domain.PriceSet, comp domain.TravelerComposition, nights int) ([]domain.PriceLine, decimal.Decimal, error) {
	lines := make([]domain.PriceLine, 0, len(domain.TravelerClasses))
	total := decimal.Zero
	mult := decimal.NewFromInt(int64(nights))

	for _, class := range domain.TravelerClasses {
		count := comp.Count(class)
		if count == 0 {
			continue
		}
		unit, ok := set.For(class)
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrMissingPriceTier, class)
		}
		amount := unit.Mul(mult).Mul(decimal.NewFromInt(int64(count)))
		lines = append(lines, domain.PriceLine{
			Class:  class,
			Unit:   unit,
			Count:  count,
			Amount: amount,
		})
		total = total.Add(amount)
	}
	return lines, total, nil
}

// DeriveFare returns pct percent of the adult fare, rounded half-up at the
// currency's minor unit. Used when populating child and infant fares from an
// adult base.
func DeriveFare(adult decimal.Decimal, pct int64, currency domain.Currency) decimal.Decimal {
	derived := adult.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100))
	return domain.RoundMinor(derived, currency)
}
