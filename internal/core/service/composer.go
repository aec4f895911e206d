package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openvoyage/travel-engine/internal/core/domain"
	"github.com/openvoyage/travel-engine/internal/core/pricing"
	"github.com/openvoyage/travel-engine/internal/port"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrNoComponents        = errors.New("offer requires at least one component")
	ErrLodgingRequired     = errors.New("offer requires exactly one hotel component")
	ErrRoleMismatch        = errors.New("component role does not match entry type")
	ErrEmptyValidityWindow = errors.New("required components share no validity window")
	ErrCurrencyMismatch    = errors.New("components are priced in different currencies")
)

// ComposePolicy configures offer-category rules; lodging is a flag, not
// hard-coded.
type ComposePolicy struct {
	RequireLodging bool
}

// Composer assembles inventory entries into offers. Its read path is pure
// over the loaded entries; it never touches stock.
type Composer struct {
	inventory port.InventoryRepository
	offers    port.OfferRepository
}

func NewComposer(inventory port.InventoryRepository, offers port.OfferRepository) *Composer {
	return &Composer{inventory: inventory, offers: offers}
}

// Compose validates the component set, intersects the required validity
// windows, prices each required component for the reference composition and
// applies the markup once to the sum. Per-component costs stay individually
// retrievable on the offer.
func (c *Composer) Compose(ctx context.Context, name string, components []domain.OfferComponent, markup domain.Markup, policy ComposePolicy, reference domain.TravelerComposition) (*domain.Offer, error) {
	offer, err := c.build(ctx, name, components, markup, policy, reference)
	if err != nil {
		return nil, err
	}

	if err := c.offers.SaveOffer(ctx, *offer); err != nil {
		return nil, fmt.Errorf("save offer: %w", err)
	}
	return offer, nil
}

// Recompose rebuilds an offer's cached aggregate from the current ledger
// state. The aggregate is recomputed, never patched, so rounding drift
// cannot compound.
func (c *Composer) Recompose(ctx context.Context, offerID string) (*domain.Offer, error) {
	existing, err := c.offers.GetOffer(ctx, offerID)
	if err != nil {
		return nil, fmt.Errorf("load offer: %w", err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	policy := ComposePolicy{RequireLodging: hasRole(existing.Components, domain.RoleHotel)}
	offer, err := c.build(ctx, existing.Name, existing.Components, existing.Markup, policy, existing.Reference)
	if err != nil {
		return nil, err
	}
	offer.ID = existing.ID
	offer.CreatedAt = existing.CreatedAt

	if err := c.offers.SaveOffer(ctx, *offer); err != nil {
		return nil, fmt.Errorf("save offer: %w", err)
	}
	return offer, nil
}

func (c *Composer) build(ctx context.Context, name string, components []domain.OfferComponent, markup domain.Markup, policy ComposePolicy, reference domain.TravelerComposition) (*domain.Offer, error) {
	if len(components) == 0 {
		return nil, ErrNoComponents
	}
	if err := reference.Validate(); err != nil {
		return nil, err
	}
	if err := markup.Validate(); err != nil {
		return nil, err
	}

	hotels := 0
	for _, comp := range components {
		if comp.Role == domain.RoleHotel {
			hotels++
		}
	}
	if policy.RequireLodging && hotels != 1 {
		return nil, ErrLodgingRequired
	}

	var (
		window   domain.ValidityWindow
		currency domain.Currency
		first    = true
		prices   []domain.ComponentPrice
		base     = decimal.Zero
	)

	for _, comp := range components {
		entry, err := c.inventory.GetEntry(ctx, comp.EntryID)
		if err != nil {
			return nil, fmt.Errorf("load entry %s: %w", comp.EntryID, err)
		}
		if entry == nil {
			return nil, fmt.Errorf("entry %s: %w", comp.EntryID, ErrNotFound)
		}
		if entry.Type != comp.Role.EntryType() {
			return nil, fmt.Errorf("%w: role %s, entry type %s", ErrRoleMismatch, comp.Role, entry.Type)
		}

		if !comp.Role.Required() {
			continue
		}

		if first {
			window = entry.Window
			currency = entry.Currency
			first = false
		} else {
			var ok bool
			window, ok = window.Intersect(entry.Window)
			if !ok {
				return nil, ErrEmptyValidityWindow
			}
			if entry.Currency != currency {
				return nil, ErrCurrencyMismatch
			}
		}

		bd, err := pricing.Resolve(*entry, pricing.Request{
			Composition: reference,
			Tier:        comp.Tier,
			Nights:      comp.Nights,
		})
		if err != nil {
			return nil, fmt.Errorf("price entry %s: %w", comp.EntryID, err)
		}

		prices = append(prices, domain.ComponentPrice{
			EntryID: comp.EntryID,
			Role:    comp.Role,
			Amount:  bd.Total,
		})
		base = base.Add(bd.Total)
	}

	if first {
		return nil, ErrNoComponents
	}

	total := domain.RoundMinor(markup.Apply(base), currency)
	if total.IsNegative() {
		return nil, fmt.Errorf("apply markup: %w", domain.ErrNegativePrice)
	}

	now := time.Now().UTC()
	return &domain.Offer{
		ID:              uuid.New().String(),
		Name:            name,
		Components:      components,
		Markup:          markup,
		Window:          window,
		Currency:        currency,
		Reference:       reference,
		ComponentPrices: prices,
		BasePrice:       base,
		TotalPrice:      total,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func hasRole(components []domain.OfferComponent, role domain.ComponentRole) bool {
	for _, c := range components {
		if c.Role == role {
			return true
		}
	}
	return false
}
