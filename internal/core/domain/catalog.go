package domain

import "time"

// OccupancyTier is a room-sharing configuration carrying its own price set.
type OccupancyTier string

const (
	OccupancySingle OccupancyTier = "single"
	OccupancyDouble OccupancyTier = "double"
	OccupancyTriple OccupancyTier = "triple"
	OccupancyQuad   OccupancyTier = "quad"
)

type CabinClass string

const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

// RoomType declares which occupancy tiers a hotel sells for one room shape.
type RoomType struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Occupancies []OccupancyTier `json:"occupancies"`
}

func (rt RoomType) SupportsOccupancy(tier OccupancyTier) bool {
	for _, t := range rt.Occupancies {
		if t == tier {
			return true
		}
	}
	return false
}

// HotelResource is a descriptive catalog record, read-only to the engine.
type HotelResource struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	City      string     `json:"city"`
	Stars     int        `json:"stars"`
	RoomTypes []RoomType `json:"room_types"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (h HotelResource) RoomType(code string) (RoomType, bool) {
	for _, rt := range h.RoomTypes {
		if rt.Code == code {
			return rt, true
		}
	}
	return RoomType{}, false
}

type FlightResource struct {
	ID          string       `json:"id"`
	Carrier     string       `json:"carrier"`
	Number      string       `json:"number"`
	Origin      string       `json:"origin"`
	Destination string       `json:"destination"`
	DepartsAt   time.Time    `json:"departs_at"`
	ArrivesAt   time.Time    `json:"arrives_at"`
	Cabins      []CabinClass `json:"cabins"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (f FlightResource) HasCabin(cabin CabinClass) bool {
	for _, c := range f.Cabins {
		if c == cabin {
			return true
		}
	}
	return false
}

type TransportResource struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Vehicle     string    `json:"vehicle"`
	Capacity    int       `json:"capacity"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
