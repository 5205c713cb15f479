package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chamarodfai/pos-api/internal/database"
	"github.com/chamarodfai/pos-api/internal/enum"
	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/chamarodfai/pos-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MenuItemStore defines the database methods needed by menu item handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuItemStore interface {
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// MenuItemHandler handles catalog CRUD endpoints.
type MenuItemHandler struct {
	store    MenuItemStore
	notifier CatalogNotifier
	logger   *zap.Logger
}

// NewMenuItemHandler creates a new MenuItemHandler. notifier may be nil.
func NewMenuItemHandler(store MenuItemStore, notifier CatalogNotifier, logger *zap.Logger) *MenuItemHandler {
	return &MenuItemHandler{store: store, notifier: notifier, logger: orNop(logger)}
}

// RegisterRoutes registers catalog endpoints. Mounted at /menu-items.
func (h *MenuItemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type menuItemRequest struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Cost        string `json:"cost"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Available   *bool  `json:"available"`
}

type menuItemResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Price       string    `json:"price"`
	Cost        string    `json:"cost"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	ImageURL    *string   `json:"image_url"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toMenuItemResponse(m model.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:          m.ID,
		Name:        m.Name,
		Price:       m.Price.StringFixed(2),
		Cost:        m.Cost.StringFixed(2),
		Category:    m.Category,
		Description: m.Description,
		Available:   m.Available,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.ImageURL != "" {
		resp.ImageURL = &m.ImageURL
	}
	return resp
}

// menuItemFields is a validated menuItemRequest.
type menuItemFields struct {
	name, category, description, imageURL string
	price, cost                           decimal.Decimal
	available                             bool
}

func (req menuItemRequest) validate() (menuItemFields, string) {
	if req.Name == "" {
		return menuItemFields{}, "name is required"
	}
	if req.Price == "" {
		return menuItemFields{}, "price is required"
	}
	price, err := parseMoney(req.Price)
	if err != nil {
		return menuItemFields{}, moneyError("price", err)
	}
	cost := decimal.Zero
	if req.Cost != "" {
		if cost, err = parseMoney(req.Cost); err != nil {
			return menuItemFields{}, moneyError("cost", err)
		}
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	return menuItemFields{
		name:        req.Name,
		category:    req.Category,
		description: req.Description,
		imageURL:    req.ImageURL,
		price:       price,
		cost:        cost,
		available:   available,
	}, ""
}

func (h *MenuItemHandler) notify(id uuid.UUID) {
	if h.notifier != nil {
		h.notifier.CatalogChanged(enum.EventMenuUpdated, id)
	}
}

// --- Handlers ---

// List returns the catalog. ?available=true hides unavailable items and
// ?category= filters by category.
func (h *MenuItemHandler) List(w http.ResponseWriter, r *http.Request) {
	var params database.ListMenuItemsParams
	if s := r.URL.Query().Get("available"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid available filter"})
			return
		}
		params.AvailableOnly = b
	}
	if c := r.URL.Query().Get("category"); c != "" {
		params.Category = pgtype.Text{String: c, Valid: true}
	}

	rows, err := h.store.ListMenuItems(r.Context(), params)
	if err != nil {
		storeUnavailable(w, h.logger, "list menu items", err)
		return
	}

	resp := make([]menuItemResponse, len(rows))
	for i, row := range rows {
		resp[i] = toMenuItemResponse(service.MenuItemFromRow(row))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single menu item by ID.
func (h *MenuItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	row, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		storeUnavailable(w, h.logger, "get menu item", err)
		return
	}
	writeJSON(w, http.StatusOK, toMenuItemResponse(service.MenuItemFromRow(row)))
}

// Create adds a menu item.
func (h *MenuItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	f, msg := req.validate()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	row, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		Name:        f.name,
		Price:       service.DecimalToNumeric(f.price),
		Cost:        service.DecimalToNumeric(f.cost),
		Category:    f.category,
		Description: service.TextOrNull(f.description),
		ImageUrl:    service.TextOrNull(f.imageURL),
		Available:   f.available,
	})
	if err != nil {
		if isCheckViolation(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item"})
			return
		}
		internalError(w, h.logger, "create menu item", err)
		return
	}

	h.notify(row.ID)
	writeJSON(w, http.StatusCreated, toMenuItemResponse(service.MenuItemFromRow(row)))
}

// Update replaces a menu item. Carts keep the price captured when the item
// was added.
func (h *MenuItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	f, msg := req.validate()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	row, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:          id,
		Name:        f.name,
		Price:       service.DecimalToNumeric(f.price),
		Cost:        service.DecimalToNumeric(f.cost),
		Category:    f.category,
		Description: service.TextOrNull(f.description),
		ImageUrl:    service.TextOrNull(f.imageURL),
		Available:   f.available,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		internalError(w, h.logger, "update menu item", err)
		return
	}

	h.notify(row.ID)
	writeJSON(w, http.StatusOK, toMenuItemResponse(service.MenuItemFromRow(row)))
}

// Delete removes a menu item. Ledger lines keep their captured name and price.
func (h *MenuItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	if _, err := h.store.DeleteMenuItem(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		internalError(w, h.logger, "delete menu item", err)
		return
	}

	h.notify(id)
	w.WriteHeader(http.StatusNoContent)
}
