package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingFailed    BookingStatus = "failed"
)

// BookingItem records one committed reservation so a failed persistence can
// restore the exact counters it decremented.
type BookingItem struct {
	ReservationID string   `json:"reservation_id"`
	Ref           StockRef `json:"ref"`
	Quantity      int      `json:"quantity"`
}

// Booking is the committed record handed to the persistence workers.
type Booking struct {
	ID          string              `json:"id"`
	OfferID     string              `json:"offer_id,omitempty"`
	EntryID     string              `json:"entry_id,omitempty"`
	Composition TravelerComposition `json:"composition"`
	Items       []BookingItem       `json:"items"`
	Total       decimal.Decimal     `json:"total"`
	Currency    Currency            `json:"currency"`
	Status      BookingStatus       `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}
