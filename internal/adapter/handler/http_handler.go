package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openvoyage/travel-engine/internal/core/domain"
	"github.com/openvoyage/travel-engine/internal/core/pricing"
	"github.com/openvoyage/travel-engine/internal/core/service"
	"github.com/openvoyage/travel-engine/internal/port"
)

type HTTPHandler struct {
	quotes    *service.QuoteService
	composer  *service.Composer
	bookings  *service.BookingService
	guard     *service.AvailabilityGuard
	catalog   port.CatalogRepository
	inventory port.InventoryRepository
}

func NewHTTPHandler(quotes *service.QuoteService, composer *service.Composer, bookings *service.BookingService, guard *service.AvailabilityGuard, catalog port.CatalogRepository, inventory port.InventoryRepository) *HTTPHandler {
	return &HTTPHandler{
		quotes:    quotes,
		composer:  composer,
		bookings:  bookings,
		guard:     guard,
		catalog:   catalog,
		inventory: inventory,
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Quote serves browsing-time price lookups; it never mutates stock.
func (h *HTTPHandler) Quote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	entryID := q.Get("entry")
	if entryID == "" {
		writeError(w, http.StatusBadRequest, "entry is required")
		return
	}

	composition := domain.TravelerComposition{
		Adults:   atoiDefault(q.Get("adults"), 0),
		Children: atoiDefault(q.Get("children"), 0),
		Infants:  atoiDefault(q.Get("infants"), 0),
	}
	tier := domain.OccupancyTier(q.Get("tier"))
	nights := atoiDefault(q.Get("nights"), 0)

	quote, err := h.quotes.Quote(r.Context(), entryID, composition, tier, nights)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

type findEntriesResponse struct {
	Entries []entryView `json:"entries"`
}

type entryView struct {
	ID         string                `json:"id"`
	Type       domain.EntryType      `json:"type"`
	ResourceID string                `json:"resource_id"`
	SupplierID string                `json:"supplier_id"`
	Currency   domain.Currency       `json:"currency"`
	Window     domain.ValidityWindow `json:"window"`
	Status     domain.EntryStatus    `json:"status"`
	Stock      int                   `json:"stock"`
}

// FindEntries serves catalog queries for active entries overlapping a window.
func (h *HTTPHandler) FindEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	resourceID := q.Get("resource")
	if resourceID == "" {
		writeError(w, http.StatusBadRequest, "resource is required")
		return
	}

	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be RFC 3339")
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be RFC 3339")
		return
	}

	window := domain.ValidityWindow{From: from, To: to}
	if err := window.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.inventory.FindActive(r.Context(), resourceID, q.Get("supplier"), window)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := findEntriesResponse{Entries: make([]entryView, 0, len(entries))}
	for i := range entries {
		e := &entries[i]
		resp.Entries = append(resp.Entries, entryView{
			ID:         e.ID,
			Type:       e.Type,
			ResourceID: e.ResourceID,
			SupplierID: e.SupplierID,
			Currency:   e.Currency,
			Window:     e.Window,
			Status:     e.Status(),
			Stock:      e.TotalStock(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetResource serves read-only resource descriptor lookups.
func (h *HTTPHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	var (
		resource any
		err      error
	)
	switch domain.EntryType(q.Get("type")) {
	case domain.EntryHotel:
		var h2 *domain.HotelResource
		h2, err = h.catalog.GetHotel(r.Context(), id)
		if h2 != nil {
			resource = h2
		}
	case domain.EntryFlight:
		var f *domain.FlightResource
		f, err = h.catalog.GetFlight(r.Context(), id)
		if f != nil {
			resource = f
		}
	case domain.EntryTransport:
		var tr *domain.TransportResource
		tr, err = h.catalog.GetTransport(r.Context(), id)
		if tr != nil {
			resource = tr
		}
	default:
		writeError(w, http.StatusBadRequest, "type must be hotel, flight or transport")
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if resource == nil {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

type composeRequest struct {
	Name           string                     `json:"name"`
	Components     []domain.OfferComponent    `json:"components"`
	Markup         domain.Markup              `json:"markup"`
	RequireLodging bool                       `json:"require_lodging"`
	Reference      domain.TravelerComposition `json:"reference"`
}

// ComposeOffer is the operator-facing offer creation endpoint.
func (h *HTTPHandler) ComposeOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	offer, err := h.composer.Compose(r.Context(), req.Name, req.Components, req.Markup,
		service.ComposePolicy{RequireLodging: req.RequireLodging}, req.Reference)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, offer)
}

type finalizeRequest struct {
	RequestID   string                     `json:"request_id"`
	OfferID     string                     `json:"offer_id"`
	EntryID     string                     `json:"entry_id"`
	Composition domain.TravelerComposition `json:"composition"`
	Tier        domain.OccupancyTier       `json:"tier,omitempty"`
	Nights      int                        `json:"nights,omitempty"`
	QuotedTotal decimal.Decimal            `json:"quoted_total"`
}

// Finalize is the only mutating entry point of the checkout flow.
func (h *HTTPHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	booking, err := h.bookings.Finalize(r.Context(), service.FinalizeRequest{
		RequestID:   req.RequestID,
		OfferID:     req.OfferID,
		EntryID:     req.EntryID,
		Composition: req.Composition,
		Tier:        req.Tier,
		Nights:      req.Nights,
		QuotedTotal: req.QuotedTotal,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

type adjustRequest struct {
	EntryID string               `json:"entry_id"`
	Tier    domain.OccupancyTier `json:"tier,omitempty"`
	Delta   int                  `json:"delta"`
}

type adjustResponse struct {
	Ref   string `json:"ref"`
	Stock int    `json:"stock"`
}

// AdjustStock applies a supplier allotment correction outside the
// reservation flow, through the guard's serialization point.
func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EntryID == "" || req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "entry_id and a non-zero delta are required")
		return
	}

	ref := domain.StockRef{EntryID: req.EntryID, Tier: req.Tier}
	stock, err := h.guard.Adjust(r.Context(), ref, req.Delta)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.inventory.AdjustStock(r.Context(), ref, req.Delta); err != nil {
		// The counter moved; surface the mirror drift rather than hide it.
		writeError(w, http.StatusInternalServerError, "stock adjusted but mirror update failed")
		return
	}

	writeJSON(w, http.StatusOK, adjustResponse{Ref: ref.String(), Stock: stock})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientStock):
		writeError(w, http.StatusGone, "no longer available")
	case errors.Is(err, service.ErrPriceMismatch):
		writeError(w, http.StatusConflict, "price has changed, please reconfirm")
	case errors.Is(err, service.ErrDuplicateRequest):
		writeError(w, http.StatusConflict, "duplicate request")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrEmptyValidityWindow),
		errors.Is(err, service.ErrLodgingRequired),
		errors.Is(err, service.ErrNoComponents),
		errors.Is(err, service.ErrRoleMismatch),
		errors.Is(err, service.ErrCurrencyMismatch),
		errors.Is(err, service.ErrInvalidTarget),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrUnsupportedOccupancy),
		errors.Is(err, pricing.ErrMissingPriceTier),
		errors.Is(err, pricing.ErrNightsRequired),
		errors.Is(err, domain.ErrInvalidComposition),
		errors.Is(err, domain.ErrInvalidMarkup),
		errors.Is(err, domain.ErrNegativePrice),
		errors.Is(err, domain.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
