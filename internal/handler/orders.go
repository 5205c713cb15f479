package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// MaxOrdersLimit caps ?limit= on the order listing.
const MaxOrdersLimit = 500

// OrderLedger reads finalized orders. Satisfied by *service.OrderService.
type OrderLedger interface {
	ListOrders(ctx context.Context, limit int) ([]model.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (model.Order, error)
}

// OrderHandler serves the order ledger.
type OrderHandler struct {
	ledger       OrderLedger
	defaultLimit int
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler. defaultLimit applies when the
// request has no ?limit=.
func NewOrderHandler(ledger OrderLedger, defaultLimit int, logger *zap.Logger) *OrderHandler {
	if defaultLimit <= 0 || defaultLimit > MaxOrdersLimit {
		defaultLimit = 100
	}
	return &OrderHandler{ledger: ledger, defaultLimit: defaultLimit, logger: orNop(logger)}
}

// RegisterRoutes registers ledger endpoints. Mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// --- Response types ---

type orderItemResponse struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int       `json:"quantity"`
}

type appliedPromotionResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Kind  string    `json:"kind"`
	Value string    `json:"value"`
}

type orderResponse struct {
	ID               uuid.UUID                 `json:"id"`
	Items            []orderItemResponse       `json:"items"`
	Subtotal         string                    `json:"subtotal"`
	Discount         string                    `json:"discount"`
	Total            string                    `json:"total"`
	AppliedPromotion *appliedPromotionResponse `json:"applied_promotion,omitempty"`
	Timestamp        time.Time                 `json:"timestamp"`
}

func toOrderResponse(o model.Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		Items:     make([]orderItemResponse, len(o.Items)),
		Subtotal:  o.Subtotal.StringFixed(2),
		Discount:  o.Discount.StringFixed(2),
		Total:     o.Total.StringFixed(2),
		Timestamp: o.CreatedAt,
	}
	for i, li := range o.Items {
		resp.Items[i] = orderItemResponse{
			ItemID:    li.ItemID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice.StringFixed(2),
			Quantity:  li.Quantity,
		}
	}
	if p := o.Promotion; p != nil {
		resp.AppliedPromotion = &appliedPromotionResponse{
			ID:    p.ID,
			Name:  p.Name,
			Kind:  p.Kind.String(),
			Value: p.Value.StringFixed(2),
		}
	}
	return resp
}

func toOrderResponses(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

// --- Handlers ---

// List returns the most recent orders, newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, h.defaultLimit, MaxOrdersLimit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	orders, err := h.ledger.ListOrders(r.Context(), limit)
	if err != nil {
		storeUnavailable(w, h.logger, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// Get returns one order.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.ledger.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		storeUnavailable(w, h.logger, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
