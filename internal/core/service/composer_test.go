package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openvoyage/travel-engine/internal/core/domain"
)

func day(n int) time.Time {
	return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func window(from, to int) domain.ValidityWindow {
	return domain.ValidityWindow{From: day(from), To: day(to)}
}

func testHotelEntry(id string, w domain.ValidityWindow, adult int64) domain.InventoryEntry {
	return domain.InventoryEntry{
		ID:           id,
		Type:         domain.EntryHotel,
		ResourceID:   "hotel-1",
		SupplierID:   "supplier-1",
		Currency:     "USD",
		Window:       w,
		RoomTypeCode: "std",
		Mode:         domain.PerPackage,
		RoomRates: map[domain.OccupancyTier]domain.PriceSet{
			domain.OccupancyDouble: domain.NewPriceSet(
				decimal.NewFromInt(adult),
				decimal.NewFromInt(adult*3/4),
				decimal.NewFromInt(adult/10),
			),
		},
		RoomStock: map[domain.OccupancyTier]int{domain.OccupancyDouble: 5},
	}
}

func testFlightEntry(id string, w domain.ValidityWindow, adult int64) domain.InventoryEntry {
	return domain.InventoryEntry{
		ID:         id,
		Type:       domain.EntryFlight,
		ResourceID: "flight-1",
		SupplierID: "supplier-2",
		Currency:   "USD",
		Window:     w,
		Cabin:      domain.CabinEconomy,
		Fare: domain.NewPriceSet(
			decimal.NewFromInt(adult),
			decimal.NewFromInt(adult*3/4),
			decimal.NewFromInt(adult/10),
		),
		Stock: 50,
	}
}

func testTransportEntry(id string, w domain.ValidityWindow, price int64) domain.InventoryEntry {
	return domain.InventoryEntry{
		ID:           id,
		Type:         domain.EntryTransport,
		ResourceID:   "transport-1",
		SupplierID:   "supplier-3",
		Currency:     "USD",
		Window:       w,
		ServicePrice: decimal.NewFromInt(price),
		Stock:        10,
	}
}

func TestCompose_MarkupValidation(t *testing.T) {
	inventory := newMockInventoryRepo(testHotelEntry("h1", window(1, 10), 100))
	composer := NewComposer(inventory, newMockOfferRepo())
	ctx := context.Background()

	components := []domain.OfferComponent{
		{EntryID: "h1", Role: domain.RoleHotel, Tier: domain.OccupancyDouble},
	}
	ref := domain.TravelerComposition{Adults: 2}

	// Unknown markup kind is rejected.
	_, err := composer.Compose(ctx, "bad-kind", components,
		domain.Markup{Kind: "flat", Value: decimal.NewFromInt(5)},
		ComposePolicy{}, ref)
	if !errors.Is(err, domain.ErrInvalidMarkup) {
		t.Errorf("expected ErrInvalidMarkup, got: %v", err)
	}

	// A fixed discount larger than the base would price the offer negative.
	_, err = composer.Compose(ctx, "too-deep", components,
		domain.Markup{Kind: domain.MarkupFixed, Value: decimal.NewFromInt(-1000)},
		ComposePolicy{}, ref)
	if !errors.Is(err, domain.ErrNegativePrice) {
		t.Errorf("expected ErrNegativePrice, got: %v", err)
	}

	// A discount within the base is a valid markup. Base is 200 for 2 adults.
	offer, err := composer.Compose(ctx, "discounted", components,
		domain.Markup{Kind: domain.MarkupFixed, Value: decimal.NewFromInt(-50)},
		ComposePolicy{}, ref)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !offer.TotalPrice.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected total 150, got %s", offer.TotalPrice)
	}
}

func TestCompose_WindowIntersection(t *testing.T) {
	inventory := newMockInventoryRepo(
		testHotelEntry("h1", window(1, 10), 100),
		testFlightEntry("f1", window(5, 15), 180),
	)
	composer := NewComposer(inventory, newMockOfferRepo())

	offer, err := composer.Compose(context.Background(), "summer break",
		[]domain.OfferComponent{
			{EntryID: "h1", Role: domain.RoleHotel, Tier: domain.OccupancyDouble},
			{EntryID: "f1", Role: domain.RoleOutboundFlight},
		},
		domain.Markup{Kind: domain.MarkupFixed, Value: decimal.Zero},
		ComposePolicy{RequireLodging: true},
		domain.TravelerComposition{Adults: 2},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !offer.Window.From.Equal(day(5)) || !offer.Window.To.Equal(day(10)) {
		t.Errorf("expected window [%v, %v), got [%v, %v)",
			day(5), day(10), offer.Window.From, offer.Window.To)
	}
}

func TestCompose_DisjointWindows(t *testing.T) {
	inventory := newMockInventoryRepo(
		testHotelEntry("h1", window(1, 5), 100),
		testFlightEntry("f1", window(6, 10), 180),
	)
	composer := NewComposer(inventory, newMockOfferRepo())

	_, err := composer.Compose(context.Background(), "broken",
		[]domain.OfferComponent{
			{EntryID: "h1", Role: domain.RoleHotel, Tier: domain.OccupancyDouble},
			{EntryID: "f1", Role: domain.RoleOutboundFlight},
		},
		domain.Markup{Kind: domain.MarkupFixed, Value: decimal.Zero},
		ComposePolicy{RequireLodging: true},
		domain.TravelerComposition{Adults: 2},
	)
	if !errors.Is(err, ErrEmptyValidityWindow) {
		t.Errorf("expected ErrEmptyValidityWindow, got: %v", err)
	}
}

func TestCompose_RequireLodging(t *testing.T) {
	inventory := newMockInventoryRepo(
		testHotelEntry("h1", window(1, 10), 100),
		testHotelEntry("h2", window(1, 10), 120),
		testFlightEntry("f1", window(1, 10), 180),
	)
	composer := NewComposer(inventory, newMockOfferRepo())
	markup := domain.Markup{Kind: domain.MarkupFixed, Value: decimal.Zero}
	ref := domain.TravelerComposition{Adults: 1}

	_, err := composer.Compose(context.Background(), "no hotel",
		[]domain.OfferComponent{{EntryID: "f1", Role: domain.RoleOutboundFlight}},
		markup, ComposePolicy{RequireLodging: true}, ref)
	if !errors.Is(err, ErrLodgingRequired) {
		t.Errorf("expected ErrLodgingRequired without hotel, got: %v", err)
	}

	_, err = composer.Compose(context.Background(), "two hotels",
		[]domain.OfferComponent{
			{EntryID: "h1", Role: domain.RoleHotel, Tier: domain.OccupancyDouble},
			{EntryID: "h2", Role: domain.RoleHotel, Tier: domain.OccupancyDouble},
		},
		markup, ComposePolicy{RequireLodging: true}, ref)
	if !errors.Is(err, ErrLodgingRequired) {
		t.Errorf("expected ErrLodgingRequired with two hotels, got: %v", err)
	}

	// Flight-only bundles are fine when the category does not need lodging.
	if _, err := composer.Compose(context.Background(), "flight only",
		[]domain.OfferComponent{{EntryID: "f1", Role: domain.RoleOutboundFlight}},
		markup, ComposePolicy{}, ref); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCompose_RoleMismatch(t *testing.T) {
	inventory := newMockInventoryRepo(testFlightEntry("f1", window(1, 10), 180))
	composer := NewComposer(inventory, newMockOfferRepo())

	_, err := composer.Compose(context.Background(), "bad role",
		[]domain.OfferComponent{{EntryID: "f1", Role: domain.RoleHotel, Tier: domain.OccupancyDouble}},
		domain.Markup{Kind: domain.MarkupFixed, Value: decimal.Zero},
		ComposePolicy{RequireLodging: true},
		domain.TravelerComposition{Adults: 1},
	)
	if !errors.Is(err, ErrRoleMismatch) {
		t.Errorf("expected ErrRoleMismatch, got: %v", err)
	}
}

func TestCompose_OptionalActivityDoesNotConstrain(t *testing.T) {
	inventory := newMockInventoryRepo(
		testHotelEntry("h1", window(1, 10), 100),
		// Disjoint window: would fail composition if it were required.
		testTransportEntry("act1", window(20, 30), 35),
	)
	composer := NewComposer(inventory, newMockOfferRepo())

	offer, err := composer.Compose(context.Background(), "with excursion",
		[]domain.OfferComponent{
			{EntryID: "h1", Role: domain.RoleHotel, Tier: domain.OccupancyDouble},
			{EntryID: "act1", Role: domain.RoleActivity},
		},
		domain.Markup{Kind: domain.MarkupFixed, Value: decimal.Zero},
		ComposePolicy{RequireLodging: true},
		domain.TravelerComposition{Adults: 2},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !offer.Window.From.Equal(day(1)) || !offer.Window.To.Equal(day(10)) {
		t.Errorf("optional component constrained the window: [%v, %v)", offer.Window.From, offer.Window.To)
	}
	for _, cp := range offer.ComponentPrices {
		if cp.EntryID == "act1" {
			t.Error("optional component priced into the aggregate")
		}
	}
	if len(offer.Components) != 2 {
		t.Errorf("expected both components kept on the offer, got %d", len(offer.Components))
	}
}

func TestCompose_MarkupAdditivity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 50; i++ {
		hotel := testHotelEntry("h1", window(1, 10), int64(80+rng.Intn(200)))
		outbound := testFlightEntry("f1", window(1, 10), int64(100+rng.Intn(300)))
		ret := testFlightEntry("f2", window(1, 10), int64(100+rng.Intn(300)))
		transport := testTransportEntry("t1", window(1, 10), int64(20+rng.Intn(80)))
		inventory := newMockInventoryRepo(hotel, outbound, ret, transport)
		composer := NewComposer(inventory, newMockOfferRepo())

		markup := domain.Markup{Kind: domain.MarkupPercentage, Value: decimal.NewFromInt(int64(rng.Intn(30)))}
		if rng.Intn(2) == 0 {
			markup = domain.Markup{Kind: domain.MarkupFixed, Value: decimal.NewFromInt(int64(rng.Intn(100)))}
		}

		offer, err := composer.Compose(context.Background(), "bundle",
			[]domain.OfferComponent{
				{EntryID: "h1", Role: domain.RoleHotel, Tier: domain.OccupancyDouble},
				{EntryID: "f1", Role: domain.RoleOutboundFlight},
				{EntryID: "f2", Role: domain.RoleReturnFlight},
				{EntryID: "t1", Role: domain.RoleTransport},
			},
			markup, ComposePolicy{RequireLodging: true},
			domain.TravelerComposition{Adults: 1 + rng.Intn(3), Children: rng.Intn(3)},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sum := decimal.Zero
		for _, cp := range offer.ComponentPrices {
			sum = sum.Add(cp.Amount)
		}
		if !sum.Equal(offer.BasePrice) {
			t.Fatalf("component sum %s != base %s", sum, offer.BasePrice)
		}

		expected := domain.RoundMinor(markup.Apply(sum), offer.Currency)
		if !offer.TotalPrice.Equal(expected) {
			t.Fatalf("total %s != markup over components %s", offer.TotalPrice, expected)
		}
	}
}

func TestRecompose_RebuildsAggregate(t *testing.T) {
	inventory := newMockInventoryRepo(
		testHotelEntry("h1", window(1, 10), 100),
		testFlightEntry("f1", window(1, 10), 180),
	)
	offers := newMockOfferRepo()
	composer := NewComposer(inventory, offers)
	ctx := context.Background()

	offer, err := composer.Compose(ctx, "bundle",
		[]domain.OfferComponent{
			{EntryID: "h1", Role: domain.RoleHotel, Tier: domain.OccupancyDouble},
			{EntryID: "f1", Role: domain.RoleOutboundFlight},
		},
		domain.Markup{Kind: domain.MarkupPercentage, Value: decimal.NewFromInt(10)},
		ComposePolicy{RequireLodging: true},
		domain.TravelerComposition{Adults: 2},
	)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	// A supplier reprices the hotel; the cached aggregate must be rebuilt,
	// not patched.
	inventory.CreateEntry(ctx, testHotelEntry("h1", window(1, 10), 150))

	recomposed, err := composer.Recompose(ctx, offer.ID)
	if err != nil {
		t.Fatalf("recompose failed: %v", err)
	}

	if recomposed.ID != offer.ID {
		t.Errorf("recompose changed offer identity: %s -> %s", offer.ID, recomposed.ID)
	}
	if recomposed.TotalPrice.Equal(offer.TotalPrice) {
		t.Error("expected recomposed total to reflect the new hotel price")
	}

	// 2 adults: hotel 150*2 + flight 180*2 = 660, plus 10% = 726.
	if !recomposed.TotalPrice.Equal(decimal.NewFromInt(726)) {
		t.Errorf("expected total 726, got %s", recomposed.TotalPrice)
	}
}

func TestCompose_EntryNotFound(t *testing.T) {
	composer := NewComposer(newMockInventoryRepo(), newMockOfferRepo())

	_, err := composer.Compose(context.Background(), "ghost",
		[]domain.OfferComponent{{EntryID: "missing", Role: domain.RoleOutboundFlight}},
		domain.Markup{Kind: domain.MarkupFixed, Value: decimal.Zero},
		ComposePolicy{},
		domain.TravelerComposition{Adults: 1},
	)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}
