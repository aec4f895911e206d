package service

import (
	"context"
	"sync"
	"time"

	"github.com/openvoyage/travel-engine/internal/core/domain"
)

// Mock StockStore: a mutex-guarded in-memory counterpart of the Redis store.
type mockHold struct {
	ref       string
	qty       int
	expiresAt time.Time
}

type mockStockStore struct {
	mu    sync.Mutex
	stock map[string]int
	holds map[string]mockHold
	idem  map[string]bool
}

func newMockStockStore() *mockStockStore {
	return &mockStockStore{
		stock: make(map[string]int),
		holds: make(map[string]mockHold),
		idem:  make(map[string]bool),
	}
}

func (m *mockStockStore) SetStock(ctx context.Context, ref string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[ref] = quantity
	return nil
}

func (m *mockStockStore) GetStock(ctx context.Context, ref string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[ref], nil
}

func (m *mockStockStore) Reserve(ctx context.Context, holdID, ref string, quantity int, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.stock[ref]
	if !ok || current < quantity {
		return false, nil
	}
	m.stock[ref] = current - quantity
	m.holds[holdID] = mockHold{ref: ref, qty: quantity, expiresAt: expiresAt}
	return true, nil
}

func (m *mockStockStore) Commit(ctx context.Context, holdID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.holds[holdID]; !ok {
		return false, nil
	}
	delete(m.holds, holdID)
	return true, nil
}

func (m *mockStockStore) Release(ctx context.Context, holdID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hold, ok := m.holds[holdID]
	if !ok {
		return false, nil
	}
	m.stock[hold.ref] += hold.qty
	delete(m.holds, holdID)
	return true, nil
}

func (m *mockStockStore) Adjust(ctx context.Context, ref string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.stock[ref]
	if current+delta < 0 {
		return -1, nil
	}
	m.stock[ref] = current + delta
	return m.stock[ref], nil
}

func (m *mockStockStore) ExpiredHolds(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for id, hold := range m.holds {
		if hold.expiresAt.Before(now) {
			out = append(out, id)
			if int64(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockStockStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idem[key] {
		return false, nil
	}
	m.idem[key] = true
	return true, nil
}

func (m *mockStockStore) ClearIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idem, key)
	return nil
}

// Mock InventoryRepository
type mockInventoryRepo struct {
	mu      sync.Mutex
	entries map[string]domain.InventoryEntry
}

func newMockInventoryRepo(entries ...domain.InventoryEntry) *mockInventoryRepo {
	repo := &mockInventoryRepo{entries: make(map[string]domain.InventoryEntry)}
	for _, e := range entries {
		repo.entries[e.ID] = e
	}
	return repo
}

func (m *mockInventoryRepo) CreateEntry(ctx context.Context, e domain.InventoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *mockInventoryRepo) GetEntry(ctx context.Context, id string) (*domain.InventoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *mockInventoryRepo) FindActive(ctx context.Context, resourceID, supplierID string, window domain.ValidityWindow) ([]domain.InventoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.InventoryEntry
	for _, e := range m.entries {
		if e.ResourceID != resourceID {
			continue
		}
		if supplierID != "" && e.SupplierID != supplierID {
			continue
		}
		if e.Window.Overlaps(window) && e.Status() == domain.StatusActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockInventoryRepo) AdjustStock(ctx context.Context, ref domain.StockRef, delta int) error {
	return nil
}

// Mock OfferRepository
type mockOfferRepo struct {
	mu     sync.Mutex
	offers map[string]domain.Offer
}

func newMockOfferRepo() *mockOfferRepo {
	return &mockOfferRepo{offers: make(map[string]domain.Offer)}
}

func (m *mockOfferRepo) SaveOffer(ctx context.Context, o domain.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[o.ID] = o
	return nil
}

func (m *mockOfferRepo) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.offers[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}
