package domain

import "time"

// Reservation is a provisional, time-limited hold against one stock counter.
// A hold that is never committed is auto-released after ExpiresAt. The hold's
// lifecycle state lives in the stock store, never on this value.
type Reservation struct {
	ID        string    `json:"id"`
	Ref       StockRef  `json:"ref"`
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
