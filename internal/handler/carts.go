package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chamarodfai/pos-api/internal/cart"
	"github.com/chamarodfai/pos-api/internal/database"
	"github.com/chamarodfai/pos-api/internal/enum"
	"github.com/chamarodfai/pos-api/internal/idempotency"
	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/chamarodfai/pos-api/internal/promotion"
	"github.com/chamarodfai/pos-api/internal/service"
	"github.com/chamarodfai/pos-api/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// CartSessions is the session manager surface used by cart handlers.
// Satisfied by *session.Manager.
type CartSessions interface {
	Open(ctx context.Context) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (cart.Snapshot, error)
	Do(ctx context.Context, id uuid.UUID, fn func(e *cart.Engine) error) (cart.Snapshot, error)
	Close(ctx context.Context, id uuid.UUID) error
	Len() int
}

// CartCatalog defines the catalog reads needed while building a cart.
// Satisfied by *database.Queries; narrow interface for testability.
type CartCatalog interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetPromotion(ctx context.Context, id uuid.UUID) (database.Promotion, error)
	ListPromotions(ctx context.Context, activeOnly bool) ([]database.Promotion, error)
}

// CartMetrics receives cart counters. Satisfied by *metrics.Registry.
type CartMetrics interface {
	CheckoutFailed(reason string)
	SessionsOpen(n int)
}

// CartHandler exposes terminal cart sessions over HTTP.
type CartHandler struct {
	sessions CartSessions
	catalog  CartCatalog
	ledger   cart.Ledger
	guard    idempotency.Guard
	metrics  CartMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewCartHandler creates a new CartHandler. guard and m may be nil; without a
// guard the Idempotency-Key header is ignored.
func NewCartHandler(sessions CartSessions, catalog CartCatalog, ledger cart.Ledger, guard idempotency.Guard, m CartMetrics, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		catalog:  catalog,
		ledger:   ledger,
		guard:    guard,
		metrics:  m,
		logger:   orNop(logger),
		now:      time.Now,
	}
}

// RegisterRoutes registers cart endpoints. Mounted at /carts.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Open)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Close)
		r.Post("/items", h.AddItem)
		r.Delete("/items", h.Clear)
		r.Put("/items/{itemId}", h.SetQuantity)
		r.Delete("/items/{itemId}", h.RemoveItem)
		r.Put("/promotion", h.ApplyPromotion)
		r.Delete("/promotion", h.RemovePromotion)
		r.Post("/checkout", h.Checkout)
	})
}

// --- Request / Response types ---

type addItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type applyPromotionRequest struct {
	PromotionID string `json:"promotion_id"`
}

type cartLineResponse struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	LineTotal string    `json:"line_total"`
}

type cartResponse struct {
	ID                 uuid.UUID           `json:"id"`
	Items              []cartLineResponse  `json:"items"`
	AppliedPromotion   *promotionResponse  `json:"applied_promotion"`
	Subtotal           string              `json:"subtotal"`
	Discount           string              `json:"discount"`
	Total              string              `json:"total"`
	EligiblePromotions []promotionResponse `json:"eligible_promotions,omitempty"`
}

func toCartResponse(id uuid.UUID, s cart.Snapshot, now time.Time) cartResponse {
	resp := cartResponse{
		ID:       id,
		Items:    make([]cartLineResponse, len(s.Items)),
		Subtotal: s.Subtotal.StringFixed(2),
		Discount: s.Discount.StringFixed(2),
		Total:    s.Total.StringFixed(2),
	}
	for i, li := range s.Items {
		resp.Items[i] = cartLineResponse{
			ItemID:    li.ItemID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice.StringFixed(2),
			Quantity:  li.Quantity,
			LineTotal: li.LineTotal().StringFixed(2),
		}
	}
	if s.Promotion != nil {
		p := toPromotionResponse(*s.Promotion, now)
		resp.AppliedPromotion = &p
	}
	return resp
}

// --- Helpers ---

func (h *CartHandler) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cart ID"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *CartHandler) itemID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return uuid.Nil, false
	}
	return id, true
}

// mutate runs fn on the cart and writes the resulting cart or the mapped error.
func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, id uuid.UUID, fn func(e *cart.Engine) error) {
	snap, err := h.sessions.Do(r.Context(), id, fn)
	if err != nil {
		h.writeCartError(w, "update cart", err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(id, snap, h.now()))
}

func (h *CartHandler) writeCartError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "cart not found"})
	case errors.Is(err, cart.ErrItemNotInCart):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, cart.ErrInvalidItem),
		errors.Is(err, cart.ErrItemUnavailable),
		errors.Is(err, cart.ErrInvalidPromotion),
		errors.Is(err, cart.ErrEmptyOrder):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, cart.ErrOrderPersistence):
		h.logger.Error(op, zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": cart.ErrOrderPersistence.Error()})
	default:
		internalError(w, h.logger, op, err)
	}
}

func (h *CartHandler) checkoutFailed(reason string) {
	if h.metrics != nil {
		h.metrics.CheckoutFailed(reason)
	}
}

func (h *CartHandler) sessionsChanged() {
	if h.metrics != nil {
		h.metrics.SessionsOpen(h.sessions.Len())
	}
}

// --- Handlers ---

// Open starts a new cart session.
func (h *CartHandler) Open(w http.ResponseWriter, r *http.Request) {
	id, err := h.sessions.Open(r.Context())
	if err != nil {
		internalError(w, h.logger, "open cart", err)
		return
	}
	h.sessionsChanged()
	writeJSON(w, http.StatusCreated, toCartResponse(id, cart.Snapshot{}, h.now()))
}

// Get returns the cart with the promotions it currently qualifies for. A
// failed promotion read only drops the eligible list.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}

	snap, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		h.writeCartError(w, "get cart", err)
		return
	}

	now := h.now()
	resp := toCartResponse(id, snap, now)

	rows, err := h.catalog.ListPromotions(r.Context(), true)
	if err != nil {
		h.logger.Warn("list promotions for cart", zap.String("cart_id", id.String()), zap.Error(err))
	} else {
		eligible := promotion.Eligible(promotionsFromRows(rows, h.logger), snap.Subtotal, now)
		resp.EligiblePromotions = make([]promotionResponse, len(eligible))
		for i, p := range eligible {
			resp.EligiblePromotions[i] = toPromotionResponse(p, now)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Close discards a cart session.
func (h *CartHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Close(r.Context(), id); err != nil {
		h.writeCartError(w, "close cart", err)
		return
	}
	h.sessionsChanged()
	w.WriteHeader(http.StatusNoContent)
}

// AddItem adds one unit of a menu item at its current catalog price.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	itemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu_item_id"})
		return
	}

	row, err := h.catalog.GetMenuItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		storeUnavailable(w, h.logger, "get menu item", err)
		return
	}
	item := service.MenuItemFromRow(row)

	h.mutate(w, r, id, func(e *cart.Engine) error { return e.AddItem(item) })
}

// SetQuantity sets a line's quantity; zero or less removes the line.
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID, ok := h.itemID(w, r)
	if !ok {
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity is required"})
		return
	}

	h.mutate(w, r, id, func(e *cart.Engine) error { return e.SetQuantity(itemID, *req.Quantity) })
}

// RemoveItem drops a line. Removing an absent item is not an error.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID, ok := h.itemID(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, id, func(e *cart.Engine) error {
		e.RemoveItem(itemID)
		return nil
	})
}

// Clear empties the cart and drops its promotion.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, id, func(e *cart.Engine) error {
		e.Clear()
		return nil
	})
}

// ApplyPromotion replaces the cart's promotion. Only promotions that are
// currently active can be applied; the threshold is not checked here.
func (h *CartHandler) ApplyPromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}

	var req applyPromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	promoID, err := uuid.Parse(req.PromotionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid promotion_id"})
		return
	}

	row, err := h.catalog.GetPromotion(r.Context(), promoID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "promotion not found"})
			return
		}
		storeUnavailable(w, h.logger, "get promotion", err)
		return
	}
	p, err := service.PromotionFromRow(row)
	if err != nil {
		internalError(w, h.logger, "convert promotion", err)
		return
	}
	if status := promotion.StatusAt(p, h.now()); status != enum.PromotionStatusActive {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "promotion is " + status})
		return
	}

	h.mutate(w, r, id, func(e *cart.Engine) error { return e.ApplyPromotion(&p) })
}

// RemovePromotion drops the cart's promotion; repeating it is harmless.
func (h *CartHandler) RemovePromotion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	h.mutate(w, r, id, func(e *cart.Engine) error {
		e.RemovePromotion()
		return nil
	})
}

// Checkout finalizes the cart into the ledger. On a ledger failure the cart is
// kept so the terminal can retry. A repeated Idempotency-Key is rejected with
// 409 and the order it produced, when known.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	key := r.Header.Get("Idempotency-Key")
	if h.guard == nil {
		key = ""
	}
	if key != "" {
		prior, err := h.guard.Begin(ctx, key)
		if errors.Is(err, idempotency.ErrDuplicate) {
			h.checkoutFailed("duplicate")
			resp := map[string]string{"error": "duplicate checkout"}
			if prior != uuid.Nil {
				resp["order_id"] = prior.String()
			}
			writeJSON(w, http.StatusConflict, resp)
			return
		}
		if err != nil {
			h.checkoutFailed("idempotency")
			storeUnavailable(w, h.logger, "begin checkout", err)
			return
		}
	}

	var order model.Order
	_, err := h.sessions.Do(ctx, id, func(e *cart.Engine) error {
		var ferr error
		order, ferr = e.Finalize(ctx, h.ledger)
		return ferr
	})
	if err != nil {
		if key != "" {
			if rerr := h.guard.Release(ctx, key); rerr != nil {
				h.logger.Warn("release idempotency key", zap.Error(rerr))
			}
		}
		switch {
		case errors.Is(err, cart.ErrEmptyOrder):
			h.checkoutFailed("empty")
		case errors.Is(err, cart.ErrOrderPersistence):
			h.checkoutFailed("persistence")
		default:
			h.checkoutFailed("other")
		}
		h.writeCartError(w, "checkout", err)
		return
	}

	if key != "" {
		if err := h.guard.Complete(ctx, key, order.ID); err != nil {
			h.logger.Warn("complete idempotency key", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}
