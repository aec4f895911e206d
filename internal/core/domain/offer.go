package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type ComponentRole string

const (
	RoleHotel          ComponentRole = "hotel"
	RoleOutboundFlight ComponentRole = "outbound_flight"
	RoleReturnFlight   ComponentRole = "return_flight"
	RoleTransport      ComponentRole = "transport"
	RoleActivity       ComponentRole = "optional_activity"
)

// Required reports whether the role constrains the offer's validity window
// and bookability. Optional activities constrain neither.
func (r ComponentRole) Required() bool {
	return r != RoleActivity
}

// EntryType returns the inventory shape a role must reference.
func (r ComponentRole) EntryType() EntryType {
	switch r {
	case RoleHotel:
		return EntryHotel
	case RoleOutboundFlight, RoleReturnFlight:
		return EntryFlight
	default:
		return EntryTransport
	}
}

type MarkupKind string

const (
	MarkupPercentage MarkupKind = "percentage"
	MarkupFixed      MarkupKind = "fixed"
)

var ErrInvalidMarkup = errors.New("invalid markup")

// Markup is applied once, at the aggregate level, on top of the sum of
// component prices. Negative values are discounts; a markup must never take
// a total below zero, which Apply callers check on the result.
type Markup struct {
	Kind  MarkupKind      `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

func (m Markup) Validate() error {
	if m.Kind != MarkupPercentage && m.Kind != MarkupFixed {
		return ErrInvalidMarkup
	}
	return nil
}

func (m Markup) Apply(base decimal.Decimal) decimal.Decimal {
	switch m.Kind {
	case MarkupPercentage:
		factor := decimal.NewFromInt(1).Add(m.Value.Div(decimal.NewFromInt(100)))
		return base.Mul(factor)
	case MarkupFixed:
		return base.Add(m.Value)
	}
	return base
}

// OfferComponent references one inventory entry playing one role. Tier and
// Nights only apply to hotel components.
type OfferComponent struct {
	EntryID string        `json:"entry_id"`
	Role    ComponentRole `json:"role"`
	Tier    OccupancyTier `json:"tier,omitempty"`
	Nights  int           `json:"nights,omitempty"`
}

// ComponentPrice keeps one required component's pre-markup cost individually
// retrievable for reporting.
type ComponentPrice struct {
	EntryID string          `json:"entry_id"`
	Role    ComponentRole   `json:"role"`
	Amount  decimal.Decimal `json:"amount"`
}

// Offer is a composed bundle of inventory entries sold as one package. The
// cached aggregate is recomputed from scratch whenever a referenced entry
// changes, never patched incrementally.
type Offer struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Components []OfferComponent `json:"components"`
	Markup     Markup           `json:"markup"`
	Window     ValidityWindow   `json:"window"`
	Currency   Currency         `json:"currency"`

	// Reference is the traveler composition the cached aggregate was
	// priced for.
	Reference       TravelerComposition `json:"reference"`
	ComponentPrices []ComponentPrice    `json:"component_prices"`
	BasePrice       decimal.Decimal     `json:"base_price"`
	TotalPrice      decimal.Decimal     `json:"total_price"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequiredComponents filters out optional activities.
func (o *Offer) RequiredComponents() []OfferComponent {
	out := make([]OfferComponent, 0, len(o.Components))
	for _, c := range o.Components {
		if c.Role.Required() {
			out = append(out, c)
		}
	}
	return out
}
