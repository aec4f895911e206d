package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openvoyage/travel-engine/internal/core/domain"
	"github.com/openvoyage/travel-engine/internal/core/pricing"
	"github.com/openvoyage/travel-engine/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrPriceMismatch    = errors.New("price has changed")
	ErrInvalidTarget    = errors.New("finalize requires exactly one of offer or entry")
)

// FinalizeRequest carries the checkout commit inputs. QuotedTotal is the
// price the customer saw while browsing; the engine never treats it as
// authoritative.
type FinalizeRequest struct {
	RequestID   string
	OfferID     string
	EntryID     string
	Composition domain.TravelerComposition
	Tier        domain.OccupancyTier
	Nights      int
	QuotedTotal decimal.Decimal
}

// BookingService runs the checkout commit: reserve, recompute, compare,
// commit. Committed bookings are queued for durable persistence by workers.
type BookingService struct {
	guard     *AvailabilityGuard
	inventory port.InventoryRepository
	offers    port.OfferRepository
	store     port.StockStore
	tolerance decimal.Decimal
	logger    *zap.Logger
	queue     chan domain.Booking
}

func NewBookingService(guard *AvailabilityGuard, inventory port.InventoryRepository, offers port.OfferRepository, store port.StockStore, tolerance decimal.Decimal, logger *zap.Logger, queueSize int) *BookingService {
	return &BookingService{
		guard:     guard,
		inventory: inventory,
		offers:    offers,
		store:     store,
		tolerance: tolerance,
		logger:    logger,
		queue:     make(chan domain.Booking, queueSize),
	}
}

// bookingLine pairs one stock counter with the pricing inputs of the entry
// behind it.
type bookingLine struct {
	entry  domain.InventoryEntry
	ref    domain.StockRef
	tier   domain.OccupancyTier
	nights int
}

// Finalize recomputes the price from current ledger state, compares it to
// the client-quoted figure within the configured tolerance, and only then
// makes the stock decrements permanent. Every failure path leaves stock
// exactly as it was before the call.
func (s *BookingService) Finalize(ctx context.Context, req FinalizeRequest) (*domain.Booking, error) {
	if (req.OfferID == "") == (req.EntryID == "") {
		return nil, ErrInvalidTarget
	}
	if err := req.Composition.Validate(); err != nil {
		return nil, err
	}

	// The idempotency key marks a request whose booking committed. A finalize
	// that fails clears its key so a corrected retry with the same RequestID
	// is not treated as a duplicate.
	idemKey := ""
	if req.RequestID != "" {
		idemKey = "booking:" + req.RequestID
		ok, err := s.store.SetIdempotency(ctx, idemKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return nil, ErrDuplicateRequest
		}
	}

	fail := func(err error) (*domain.Booking, error) {
		if idemKey != "" {
			if clearErr := s.store.ClearIdempotency(ctx, idemKey); clearErr != nil {
				s.logger.Warn("failed to clear idempotency key",
					zap.String("key", idemKey), zap.Error(clearErr))
			}
		}
		return nil, err
	}

	lines, markup, currency, err := s.collectLines(ctx, req)
	if err != nil {
		return fail(err)
	}

	// Hold every required counter before the price check so the comparison
	// and the commit see the same ledger state.
	held := make([]domain.Reservation, 0, len(lines))
	for _, line := range lines {
		res, err := s.guard.TryReserve(ctx, line.ref, 1)
		if err != nil {
			s.releaseAll(ctx, held)
			return fail(err)
		}
		held = append(held, res)
	}

	total, err := s.recompute(lines, markup, currency, req.Composition)
	if err != nil {
		s.releaseAll(ctx, held)
		return fail(err)
	}

	if total.Sub(req.QuotedTotal).Abs().GreaterThan(s.tolerance) {
		s.releaseAll(ctx, held)
		s.logger.Warn("quoted price rejected",
			zap.String("offer_id", req.OfferID),
			zap.String("entry_id", req.EntryID),
			zap.String("quoted", req.QuotedTotal.String()),
			zap.String("computed", total.String()),
		)
		return fail(ErrPriceMismatch)
	}

	for i, res := range held {
		if err := s.guard.Commit(ctx, res); err != nil {
			// Restore the counters already committed, release the rest.
			for _, done := range held[:i] {
				if _, adjErr := s.guard.Adjust(ctx, done.Ref, done.Quantity); adjErr != nil {
					s.logger.Error("failed to restore committed stock",
						zap.String("ref", done.Ref.String()), zap.Error(adjErr))
				}
			}
			s.releaseAll(ctx, held[i:])
			return fail(err)
		}
	}

	now := time.Now().UTC()
	booking := domain.Booking{
		ID:          uuid.New().String(),
		OfferID:     req.OfferID,
		EntryID:     req.EntryID,
		Composition: req.Composition,
		Items:       bookingItems(held),
		Total:       total,
		Currency:    currency,
		Status:      domain.BookingPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.queue <- booking
	return &booking, nil
}

func (s *BookingService) collectLines(ctx context.Context, req FinalizeRequest) ([]bookingLine, domain.Markup, domain.Currency, error) {
	if req.EntryID != "" {
		entry, err := s.inventory.GetEntry(ctx, req.EntryID)
		if err != nil {
			return nil, domain.Markup{}, "", fmt.Errorf("load entry %s: %w", req.EntryID, err)
		}
		if entry == nil {
			return nil, domain.Markup{}, "", ErrNotFound
		}
		line := bookingLine{
			entry:  *entry,
			ref:    domain.StockRef{EntryID: entry.ID},
			tier:   req.Tier,
			nights: req.Nights,
		}
		if entry.Type == domain.EntryHotel {
			line.ref.Tier = req.Tier
		}
		return []bookingLine{line}, domain.Markup{}, entry.Currency, nil
	}

	offer, err := s.offers.GetOffer(ctx, req.OfferID)
	if err != nil {
		return nil, domain.Markup{}, "", fmt.Errorf("load offer %s: %w", req.OfferID, err)
	}
	if offer == nil {
		return nil, domain.Markup{}, "", ErrNotFound
	}

	components := offer.RequiredComponents()
	lines := make([]bookingLine, 0, len(components))
	for _, comp := range components {
		entry, err := s.inventory.GetEntry(ctx, comp.EntryID)
		if err != nil {
			return nil, domain.Markup{}, "", fmt.Errorf("load entry %s: %w", comp.EntryID, err)
		}
		if entry == nil {
			return nil, domain.Markup{}, "", fmt.Errorf("entry %s: %w", comp.EntryID, ErrNotFound)
		}
		line := bookingLine{
			entry:  *entry,
			ref:    domain.StockRef{EntryID: entry.ID},
			tier:   comp.Tier,
			nights: comp.Nights,
		}
		if entry.Type == domain.EntryHotel {
			line.ref.Tier = comp.Tier
		}
		lines = append(lines, line)
	}
	return lines, offer.Markup, offer.Currency, nil
}

func (s *BookingService) recompute(lines []bookingLine, markup domain.Markup, currency domain.Currency, composition domain.TravelerComposition) (decimal.Decimal, error) {
	base := decimal.Zero
	for _, line := range lines {
		bd, err := pricing.Resolve(line.entry, pricing.Request{
			Composition: composition,
			Tier:        line.tier,
			Nights:      line.nights,
		})
		if err != nil {
			return decimal.Zero, err
		}
		base = base.Add(bd.Total)
	}
	return domain.RoundMinor(markup.Apply(base), currency), nil
}

func (s *BookingService) releaseAll(ctx context.Context, held []domain.Reservation) {
	for _, res := range held {
		if err := s.guard.Release(ctx, res); err != nil {
			s.logger.Error("failed to release hold",
				zap.String("reservation_id", res.ID), zap.Error(err))
		}
	}
}

func bookingItems(held []domain.Reservation) []domain.BookingItem {
	items := make([]domain.BookingItem, 0, len(held))
	for _, res := range held {
		items = append(items, domain.BookingItem{
			ReservationID: res.ID,
			Ref:           res.Ref,
			Quantity:      res.Quantity,
		})
	}
	return items
}

// Queue exposes committed bookings for the persistence workers.
func (s *BookingService) Queue() <-chan domain.Booking {
	return s.queue
}

func (s *BookingService) Close() {
	close(s.queue)
}
