package port

import (
	"context"
	"time"
)

// StockStore is the single serialization point for stock counters. Each call
// that touches a counter must be one atomic step with respect to concurrent
// callers; "read stock, decide, write stock" is never split across round
// trips.
type StockStore interface {
	// SetStock initializes or overwrites a counter.
	SetStock(ctx context.Context, ref string, quantity int) error

	// GetStock reads a counter; missing counters read as zero.
	GetStock(ctx context.Context, ref string) (int, error)

	// Reserve atomically decrements the counter and records a hold with the
	// given deadline. Returns false without any decrement when the counter
	// cannot satisfy the quantity.
	Reserve(ctx context.Context, holdID, ref string, quantity int, expiresAt time.Time) (bool, error)

	// Commit makes a hold's decrement permanent by discarding the hold.
	// Returns false when the hold no longer exists.
	Commit(ctx context.Context, holdID string) (bool, error)

	// Release restores a hold's quantity to its counter and discards the
	// hold. Returns false, with no stock effect, when the hold no longer
	// exists; releasing twice is therefore a no-op.
	Release(ctx context.Context, holdID string) (bool, error)

	// Adjust applies an administrative delta through the same serialization
	// point, refusing any delta that would take the counter negative.
	// Returns the resulting stock, or -1 when refused.
	Adjust(ctx context.Context, ref string, delta int) (int, error)

	// ExpiredHolds lists hold IDs whose deadline passed before now.
	ExpiredHolds(ctx context.Context, now time.Time, limit int64) ([]string, error)

	// SetIdempotency sets a key for idempotency check, returns false if already exists.
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency removes an idempotency key so the request may be retried.
	ClearIdempotency(ctx context.Context, key string) error
}
