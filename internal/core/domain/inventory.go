package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryHotel     EntryType = "hotel"
	EntryFlight    EntryType = "flight"
	EntryTransport EntryType = "transport"
)

// PricingMode is declared explicitly per hotel entry, never inferred from
// which fields happen to be populated.
type PricingMode string

const (
	PerPackage PricingMode = "per_package"
	PerNight   PricingMode = "per_night"
)

type EntryStatus string

const (
	StatusActive  EntryStatus = "active"
	StatusSoldOut EntryStatus = "sold_out"
)

var (
	ErrInvalidWindow = errors.New("validity window start must precede end")
	ErrNegativeStock = errors.New("stock must not be negative")
	ErrInvalidEntry  = errors.New("invalid inventory entry")
)

// ValidityWindow is the half-open interval [From, To) during which an entry
// or offer is sellable.
type ValidityWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (w ValidityWindow) Validate() error {
	if !w.From.Before(w.To) {
		return ErrInvalidWindow
	}
	return nil
}

// Intersect returns the overlap of two windows and whether it is non-empty.
func (w ValidityWindow) Intersect(other ValidityWindow) (ValidityWindow, bool) {
	out := w
	if other.From.After(out.From) {
		out.From = other.From
	}
	if other.To.Before(out.To) {
		out.To = other.To
	}
	return out, out.From.Before(out.To)
}

// Overlaps reports whether the two windows share any instant.
func (w ValidityWindow) Overlaps(other ValidityWindow) bool {
	_, ok := w.Intersect(other)
	return ok
}

// StockRef addresses one stock counter: a whole entry, or one room
// configuration within a hotel entry.
type StockRef struct {
	EntryID string        `json:"entry_id"`
	Tier    OccupancyTier `json:"tier,omitempty"`
}

func (r StockRef) String() string {
	if r.Tier == "" {
		return r.EntryID
	}
	return r.EntryID + "/" + string(r.Tier)
}

func ParseStockRef(s string) StockRef {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return StockRef{EntryID: s[:i], Tier: OccupancyTier(s[i+1:])}
	}
	return StockRef{EntryID: s}
}

// InventoryEntry is one priced, time-bounded, stock-bearing unit of a
// resource. The Type tag selects which price-table shape applies:
// hotel entries price per occupancy tier, flight entries carry one price set
// for one cabin, transport entries carry a single flat service price.
type InventoryEntry struct {
	ID         string         `json:"id"`
	Type       EntryType      `json:"type"`
	ResourceID string         `json:"resource_id"`
	SupplierID string         `json:"supplier_id"`
	Currency   Currency       `json:"currency"`
	Window     ValidityWindow `json:"window"`

	// Hotel shape.
	RoomTypeCode string                     `json:"room_type_code,omitempty"`
	Mode         PricingMode                `json:"mode,omitempty"`
	RoomRates    map[OccupancyTier]PriceSet `json:"room_rates,omitempty"`
	RoomStock    map[OccupancyTier]int      `json:"room_stock,omitempty"`

	// Flight shape.
	Cabin CabinClass `json:"cabin,omitempty"`
	Fare  PriceSet   `json:"fare,omitempty"`

	// Transport shape.
	ServicePrice decimal.Decimal `json:"service_price,omitempty"`

	// Stock for flight and transport entries; hotel stock lives in RoomStock.
	Stock int `json:"stock"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status is a projection of the stock counters, never stored independently.
func (e *InventoryEntry) Status() EntryStatus {
	if e.TotalStock() > 0 {
		return StatusActive
	}
	return StatusSoldOut
}

func (e *InventoryEntry) TotalStock() int {
	if e.Type == EntryHotel {
		total := 0
		for _, n := range e.RoomStock {
			total += n
		}
		return total
	}
	return e.Stock
}

// StockFor returns the counter behind one stock ref of this entry.
func (e *InventoryEntry) StockFor(tier OccupancyTier) int {
	if e.Type == EntryHotel {
		return e.RoomStock[tier]
	}
	return e.Stock
}

// StockRefs enumerates every counter the entry owns, used when seeding the
// serialization point.
func (e *InventoryEntry) StockRefs() []StockRef {
	if e.Type != EntryHotel {
		return []StockRef{{EntryID: e.ID}}
	}
	refs := make([]StockRef, 0, len(e.RoomStock))
	for tier := range e.RoomStock {
		refs = append(refs, StockRef{EntryID: e.ID, Tier: tier})
	}
	return refs
}

// Validate rejects malformed entries before persistence.
func (e *InventoryEntry) Validate() error {
	if e.ID == "" || e.ResourceID == "" {
		return ErrInvalidEntry
	}
	if err := e.Window.Validate(); err != nil {
		return err
	}
	switch e.Type {
	case EntryHotel:
		if e.Mode != PerPackage && e.Mode != PerNight {
			return ErrInvalidEntry
		}
		if len(e.RoomRates) == 0 {
			return ErrInvalidEntry
		}
		for tier, rates := range e.RoomRates {
			if err := rates.Validate(); err != nil {
				return err
			}
			if e.RoomStock[tier] < 0 {
				return ErrNegativeStock
			}
		}
	case EntryFlight:
		if e.Cabin == "" {
			return ErrInvalidEntry
		}
		if err := e.Fare.Validate(); err != nil {
			return err
		}
		if e.Stock < 0 {
			return ErrNegativeStock
		}
	case EntryTransport:
		if e.ServicePrice.IsNegative() {
			return ErrNegativePrice
		}
		if e.Stock < 0 {
			return ErrNegativeStock
		}
	default:
		return ErrInvalidEntry
	}
	return nil
}

// ValidateAgainstHotel enforces the referential invariant: every priced tier
// must be declared by the referenced room type's occupancy set.
func (e *InventoryEntry) ValidateAgainstHotel(h HotelResource) error {
	rt, ok := h.RoomType(e.RoomTypeCode)
	if !ok {
		return ErrInvalidEntry
	}
	for tier := range e.RoomRates {
		if !rt.SupportsOccupancy(tier) {
			return ErrInvalidEntry
		}
	}
	return nil
}
