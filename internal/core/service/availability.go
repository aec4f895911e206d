package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openvoyage/travel-engine/internal/core/domain"
	"github.com/openvoyage/travel-engine/internal/port"
)

var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrReservationNotHeld = errors.New("reservation is no longer held")
)

// AvailabilityGuard is the only component allowed to mutate stock counters.
// Every mutation goes through the StockStore's per-counter serialization
// point; the guard itself holds no locks.
type AvailabilityGuard struct {
	store   port.StockStore
	holdTTL time.Duration
	logger  *zap.Logger
}

func NewAvailabilityGuard(store port.StockStore, holdTTL time.Duration, logger *zap.Logger) *AvailabilityGuard {
	return &AvailabilityGuard{
		store:   store,
		holdTTL: holdTTL,
		logger:  logger,
	}
}

// TryReserve places a time-limited hold against one stock counter. The
// decrement and the hold record are one atomic step; a request the counter
// cannot satisfy leaves it untouched.
func (g *AvailabilityGuard) TryReserve(ctx context.Context, ref domain.StockRef, quantity int) (domain.Reservation, error) {
	if quantity <= 0 {
		return domain.Reservation{}, ErrInvalidQuantity
	}

	res := domain.Reservation{
		ID:        uuid.New().String(),
		Ref:       ref,
		Quantity:  quantity,
		ExpiresAt: time.Now().Add(g.holdTTL),
		CreatedAt: time.Now(),
	}

	ok, err := g.store.Reserve(ctx, res.ID, ref.String(), quantity, res.ExpiresAt)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("reserve %s: %w", ref, err)
	}
	if !ok {
		return domain.Reservation{}, ErrInsufficientStock
	}

	return res, nil
}

// Commit makes a reservation's decrement permanent. A hold that was already
// released (by a caller or the sweep) cannot be committed.
func (g *AvailabilityGuard) Commit(ctx context.Context, res domain.Reservation) error {
	ok, err := g.store.Commit(ctx, res.ID)
	if err != nil {
		return fmt.Errorf("commit reservation %s: %w", res.ID, err)
	}
	if !ok {
		return ErrReservationNotHeld
	}
	return nil
}

// Release restores a held quantity. Releasing an already-released or
// already-committed reservation is a no-op, never a double-increment.
func (g *AvailabilityGuard) Release(ctx context.Context, res domain.Reservation) error {
	if _, err := g.store.Release(ctx, res.ID); err != nil {
		return fmt.Errorf("release reservation %s: %w", res.ID, err)
	}
	return nil
}

// Adjust applies an administrative stock correction outside the reservation
// flow, through the same serialization point. Deltas that would take the
// counter negative are refused.
func (g *AvailabilityGuard) Adjust(ctx context.Context, ref domain.StockRef, delta int) (int, error) {
	stock, err := g.store.Adjust(ctx, ref.String(), delta)
	if err != nil {
		return 0, fmt.Errorf("adjust %s: %w", ref, err)
	}
	if stock < 0 {
		return 0, ErrInsufficientStock
	}
	return stock, nil
}

// Sweep releases holds whose deadline has passed. A hold the sweep races a
// concurrent commit for goes to exactly one of them, because release and
// commit contend on the same hold record.
func (g *AvailabilityGuard) Sweep(ctx context.Context) (int, error) {
	ids, err := g.store.ExpiredHolds(ctx, time.Now(), 100)
	if err != nil {
		return 0, fmt.Errorf("list expired holds: %w", err)
	}

	released := 0
	for _, id := range ids {
		ok, err := g.store.Release(ctx, id)
		if err != nil {
			return released, fmt.Errorf("auto-release hold %s: %w", id, err)
		}
		if ok {
			released++
		}
	}
	return released, nil
}

// Run sweeps expired holds until the context is cancelled.
func (g *AvailabilityGuard) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := g.Sweep(ctx)
			if err != nil {
				g.logger.Warn("hold sweep failed", zap.Error(err))
				continue
			}
			if released > 0 {
				g.logger.Info("auto-released expired holds", zap.Int("count", released))
			}
		}
	}
}
