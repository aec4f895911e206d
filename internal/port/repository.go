package port

import (
	"context"

	"github.com/openvoyage/travel-engine/internal/core/domain"
)

// CatalogRepository serves descriptive resource records. The pricing engine
// only reads them.
type CatalogRepository interface {
	GetHotel(ctx context.Context, id string) (*domain.HotelResource, error)
	GetFlight(ctx context.Context, id string) (*domain.FlightResource, error)
	GetTransport(ctx context.Context, id string) (*domain.TransportResource, error)

	SaveHotel(ctx context.Context, h domain.HotelResource) error
	SaveFlight(ctx context.Context, f domain.FlightResource) error
	SaveTransport(ctx context.Context, tr domain.TransportResource) error
}

// InventoryRepository owns the durable inventory records. Stock counters are
// authoritative in the StockStore; the rows here mirror committed decrements.
type InventoryRepository interface {
	CreateEntry(ctx context.Context, e domain.InventoryEntry) error
	GetEntry(ctx context.Context, id string) (*domain.InventoryEntry, error)

	// FindActive returns entries for a resource/supplier whose validity
	// window overlaps the given one and whose mirrored stock is positive.
	FindActive(ctx context.Context, resourceID, supplierID string, window domain.ValidityWindow) ([]domain.InventoryEntry, error)

	// AdjustStock applies a delta to the mirrored counter, refusing any
	// delta that would take it negative.
	AdjustStock(ctx context.Context, ref domain.StockRef, delta int) error
}

type OfferRepository interface {
	SaveOffer(ctx context.Context, o domain.Offer) error
	GetOffer(ctx context.Context, id string) (*domain.Offer, error)
}

type BookingRepository interface {
	// CreateBooking persists a booking and mirrors its stock decrements in
	// one transaction.
	CreateBooking(ctx context.Context, b domain.Booking) error
}
