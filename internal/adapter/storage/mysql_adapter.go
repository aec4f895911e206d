package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openvoyage/travel-engine/internal/core/domain"
)

var ErrStockConflict = errors.New("stock mirror conflict")

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS hotels (
		id         VARCHAR(64) PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		city       VARCHAR(128) NOT NULL,
		stars      INT NOT NULL DEFAULT 0,
		room_types JSON NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS flights (
		id          VARCHAR(64) PRIMARY KEY,
		carrier     VARCHAR(64) NOT NULL,
		number      VARCHAR(16) NOT NULL,
		origin      VARCHAR(8) NOT NULL,
		destination VARCHAR(8) NOT NULL,
		departs_at  DATETIME NOT NULL,
		arrives_at  DATETIME NOT NULL,
		cabins      JSON NOT NULL,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transports (
		id          VARCHAR(64) PRIMARY KEY,
		name        VARCHAR(255) NOT NULL,
		origin      VARCHAR(128) NOT NULL,
		destination VARCHAR(128) NOT NULL,
		vehicle     VARCHAR(64) NOT NULL,
		capacity    INT NOT NULL DEFAULT 0,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_entries (
		id          VARCHAR(64) PRIMARY KEY,
		entry_type  VARCHAR(16) NOT NULL,
		resource_id VARCHAR(64) NOT NULL,
		supplier_id VARCHAR(64) NOT NULL,
		currency    VARCHAR(8) NOT NULL,
		valid_from  DATETIME NOT NULL,
		valid_to    DATETIME NOT NULL,
		price_data  JSON NOT NULL,
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL,
		INDEX idx_resource_supplier (resource_id, supplier_id)
	)`,
	`CREATE TABLE IF NOT EXISTS entry_stock (
		ref      VARCHAR(96) PRIMARY KEY,
		entry_id VARCHAR(64) NOT NULL,
		stock    INT NOT NULL,
		version  INT NOT NULL DEFAULT 0,
		INDEX idx_entry (entry_id)
	)`,
	`CREATE TABLE IF NOT EXISTS offers (
		id         VARCHAR(64) PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		data       JSON NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id         VARCHAR(64) PRIMARY KEY,
		offer_id   VARCHAR(64) NOT NULL DEFAULT '',
		entry_id   VARCHAR(64) NOT NULL DEFAULT '',
		adults     INT NOT NULL,
		children   INT NOT NULL,
		infants    INT NOT NULL,
		total      DECIMAL(14,4) NOT NULL,
		currency   VARCHAR(8) NOT NULL,
		status     VARCHAR(16) NOT NULL,
		items      JSON NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
}

// EnsureSchema creates the tables on startup.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// entryPriceData is the shape-specific part of an inventory entry, stored as
// one JSON column because the three shapes share no common price layout.
type entryPriceData struct {
	RoomTypeCode string                                   `json:"room_type_code,omitempty"`
	Mode         domain.PricingMode                       `json:"mode,omitempty"`
	RoomRates    map[domain.OccupancyTier]domain.PriceSet `json:"room_rates,omitempty"`
	Cabin        domain.CabinClass                        `json:"cabin,omitempty"`
	Fare         domain.PriceSet                          `json:"fare,omitempty"`
	ServicePrice decimal.Decimal                          `json:"service_price"`
}

func (m *MySQLAdapter) CreateEntry(ctx context.Context, e domain.InventoryEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	// An entry may only reference an existing resource. Hotel entries may
	// only price tiers their room type declares; flight entries may only
	// reference cabins the flight offers.
	switch e.Type {
	case domain.EntryHotel:
		hotel, err := m.GetHotel(ctx, e.ResourceID)
		if err != nil {
			return err
		}
		if hotel == nil {
			return fmt.Errorf("hotel %s: %w", e.ResourceID, domain.ErrInvalidEntry)
		}
		if err := e.ValidateAgainstHotel(*hotel); err != nil {
			return err
		}
	case domain.EntryFlight:
		flight, err := m.GetFlight(ctx, e.ResourceID)
		if err != nil {
			return err
		}
		if flight == nil {
			return fmt.Errorf("flight %s: %w", e.ResourceID, domain.ErrInvalidEntry)
		}
		if !flight.HasCabin(e.Cabin) {
			return fmt.Errorf("cabin %s: %w", e.Cabin, domain.ErrInvalidEntry)
		}
	case domain.EntryTransport:
		transport, err := m.GetTransport(ctx, e.ResourceID)
		if err != nil {
			return err
		}
		if transport == nil {
			return fmt.Errorf("transport %s: %w", e.ResourceID, domain.ErrInvalidEntry)
		}
	}

	data, err := json.Marshal(entryPriceData{
		RoomTypeCode: e.RoomTypeCode,
		Mode:         e.Mode,
		RoomRates:    e.RoomRates,
		Cabin:        e.Cabin,
		Fare:         e.Fare,
		ServicePrice: e.ServicePrice,
	})
	if err != nil {
		return fmt.Errorf("marshal price data: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_entries
			(id, entry_type, resource_id, supplier_id, currency, valid_from, valid_to, price_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type, e.ResourceID, e.SupplierID, e.Currency,
		e.Window.From, e.Window.To, data, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	for _, ref := range e.StockRefs() {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entry_stock (ref, entry_id, stock, version)
			VALUES (?, ?, ?, 0)`,
			ref.String(), e.ID, e.StockFor(ref.Tier),
		)
		if err != nil {
			return fmt.Errorf("insert stock ref %s: %w", ref, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetEntry(ctx context.Context, id string) (*domain.InventoryEntry, error) {
	var (
		e    domain.InventoryEntry
		data []byte
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, entry_type, resource_id, supplier_id, currency, valid_from, valid_to, price_data, created_at, updated_at
		FROM inventory_entries WHERE id = ?`, id,
	).Scan(&e.ID, &e.Type, &e.ResourceID, &e.SupplierID, &e.Currency,
		&e.Window.From, &e.Window.To, &data, &e.CreatedAt, &e.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}

	if err := m.hydrateEntry(ctx, &e, data); err != nil {
		return nil, err
	}
	return &e, nil
}

func (m *MySQLAdapter) hydrateEntry(ctx context.Context, e *domain.InventoryEntry, data []byte) error {
	var pd entryPriceData
	if err := json.Unmarshal(data, &pd); err != nil {
		return fmt.Errorf("unmarshal price data: %w", err)
	}
	e.RoomTypeCode = pd.RoomTypeCode
	e.Mode = pd.Mode
	e.RoomRates = pd.RoomRates
	e.Cabin = pd.Cabin
	e.Fare = pd.Fare
	e.ServicePrice = pd.ServicePrice

	rows, err := m.db.QueryContext(ctx, `
		SELECT ref, stock FROM entry_stock WHERE entry_id = ?`, e.ID)
	if err != nil {
		return fmt.Errorf("query entry stock: %w", err)
	}
	defer rows.Close()

	if e.Type == domain.EntryHotel {
		e.RoomStock = make(map[domain.OccupancyTier]int)
	}
	for rows.Next() {
		var (
			refStr string
			stock  int
		)
		if err := rows.Scan(&refStr, &stock); err != nil {
			return fmt.Errorf("scan entry stock: %w", err)
		}
		ref := domain.ParseStockRef(refStr)
		if e.Type == domain.EntryHotel {
			e.RoomStock[ref.Tier] = stock
		} else {
			e.Stock = stock
		}
	}
	return rows.Err()
}

func (m *MySQLAdapter) FindActive(ctx context.Context, resourceID, supplierID string, window domain.ValidityWindow) ([]domain.InventoryEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, entry_type, resource_id, supplier_id, currency, valid_from, valid_to, price_data, created_at, updated_at
		FROM inventory_entries
		WHERE resource_id = ?
		  AND (? = '' OR supplier_id = ?)
		  AND valid_from < ? AND valid_to > ?`,
		resourceID, supplierID, supplierID, window.To, window.From,
	)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	type pending struct {
		entry domain.InventoryEntry
		data  []byte
	}
	var loaded []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.entry.ID, &p.entry.Type, &p.entry.ResourceID, &p.entry.SupplierID,
			&p.entry.Currency, &p.entry.Window.From, &p.entry.Window.To, &p.data,
			&p.entry.CreatedAt, &p.entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		loaded = append(loaded, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []domain.InventoryEntry
	for _, p := range loaded {
		if err := m.hydrateEntry(ctx, &p.entry, p.data); err != nil {
			return nil, err
		}
		if p.entry.Status() == domain.StatusActive {
			out = append(out, p.entry)
		}
	}
	return out, nil
}

func (m *MySQLAdapter) AdjustStock(ctx context.Context, ref domain.StockRef, delta int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE entry_stock
		SET stock = stock + ?, version = version + 1
		WHERE ref = ? AND stock + ? >= 0`,
		delta, ref.String(), delta,
	)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrStockConflict
	}
	return nil
}

func (m *MySQLAdapter) CreateBooking(ctx context.Context, b domain.Booking) error {
	items, err := json.Marshal(b.Items)
	if err != nil {
		return fmt.Errorf("marshal booking items: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (id, offer_id, entry_id, adults, children, infants, total, currency, status, items, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OfferID, b.EntryID,
		b.Composition.Adults, b.Composition.Children, b.Composition.Infants,
		b.Total.String(), b.Currency, b.Status, items, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	for _, item := range b.Items {
		result, err := tx.ExecContext(ctx, `
			UPDATE entry_stock
			SET stock = stock - ?, version = version + 1
			WHERE ref = ? AND stock >= ?`,
			item.Quantity, item.Ref.String(), item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("mirror stock for %s: %w", item.Ref, err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return ErrStockConflict
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) SaveOffer(ctx context.Context, o domain.Offer) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal offer: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO offers (id, name, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), data = VALUES(data), updated_at = VALUES(updated_at)`,
		o.ID, o.Name, data, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save offer: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	var data []byte
	err := m.db.QueryRowContext(ctx, `SELECT data FROM offers WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query offer: %w", err)
	}

	var o domain.Offer
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("unmarshal offer: %w", err)
	}
	return &o, nil
}

func (m *MySQLAdapter) SaveHotel(ctx context.Context, h domain.HotelResource) error {
	roomTypes, err := json.Marshal(h.RoomTypes)
	if err != nil {
		return fmt.Errorf("marshal room types: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO hotels (id, name, city, stars, room_types, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), city = VALUES(city), stars = VALUES(stars),
			room_types = VALUES(room_types), updated_at = VALUES(updated_at)`,
		h.ID, h.Name, h.City, h.Stars, roomTypes, h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save hotel: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetHotel(ctx context.Context, id string) (*domain.HotelResource, error) {
	var (
		h         domain.HotelResource
		roomTypes []byte
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, city, stars, room_types, created_at, updated_at
		FROM hotels WHERE id = ?`, id,
	).Scan(&h.ID, &h.Name, &h.City, &h.Stars, &roomTypes, &h.CreatedAt, &h.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query hotel: %w", err)
	}

	if err := json.Unmarshal(roomTypes, &h.RoomTypes); err != nil {
		return nil, fmt.Errorf("unmarshal room types: %w", err)
	}
	return &h, nil
}

func (m *MySQLAdapter) SaveFlight(ctx context.Context, f domain.FlightResource) error {
	cabins, err := json.Marshal(f.Cabins)
	if err != nil {
		return fmt.Errorf("marshal cabins: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO flights (id, carrier, number, origin, destination, departs_at, arrives_at, cabins, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE carrier = VALUES(carrier), number = VALUES(number), origin = VALUES(origin),
			destination = VALUES(destination), departs_at = VALUES(departs_at), arrives_at = VALUES(arrives_at),
			cabins = VALUES(cabins), updated_at = VALUES(updated_at)`,
		f.ID, f.Carrier, f.Number, f.Origin, f.Destination, f.DepartsAt, f.ArrivesAt, cabins, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save flight: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetFlight(ctx context.Context, id string) (*domain.FlightResource, error) {
	var (
		f      domain.FlightResource
		cabins []byte
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, carrier, number, origin, destination, departs_at, arrives_at, cabins, created_at, updated_at
		FROM flights WHERE id = ?`, id,
	).Scan(&f.ID, &f.Carrier, &f.Number, &f.Origin, &f.Destination, &f.DepartsAt, &f.ArrivesAt, &cabins, &f.CreatedAt, &f.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query flight: %w", err)
	}

	if err := json.Unmarshal(cabins, &f.Cabins); err != nil {
		return nil, fmt.Errorf("unmarshal cabins: %w", err)
	}
	return &f, nil
}

func (m *MySQLAdapter) SaveTransport(ctx context.Context, tr domain.TransportResource) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO transports (id, name, origin, destination, vehicle, capacity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), origin = VALUES(origin), destination = VALUES(destination),
			vehicle = VALUES(vehicle), capacity = VALUES(capacity), updated_at = VALUES(updated_at)`,
		tr.ID, tr.Name, tr.Origin, tr.Destination, tr.Vehicle, tr.Capacity, tr.CreatedAt, tr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save transport: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) GetTransport(ctx context.Context, id string) (*domain.TransportResource, error) {
	var tr domain.TransportResource
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, origin, destination, vehicle, capacity, created_at, updated_at
		FROM transports WHERE id = ?`, id,
	).Scan(&tr.ID, &tr.Name, &tr.Origin, &tr.Destination, &tr.Vehicle, &tr.Capacity, &tr.CreatedAt, &tr.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query transport: %w", err)
	}
	return &tr, nil
}
