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
	"github.com/chamarodfai/pos-api/internal/promotion"
	"github.com/chamarodfai/pos-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PromotionStore defines the database methods needed by promotion handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PromotionStore interface {
	ListPromotions(ctx context.Context, activeOnly bool) ([]database.Promotion, error)
	GetPromotion(ctx context.Context, id uuid.UUID) (database.Promotion, error)
	CreatePromotion(ctx context.Context, arg database.CreatePromotionParams) (database.Promotion, error)
	UpdatePromotion(ctx context.Context, arg database.UpdatePromotionParams) (database.Promotion, error)
	SetPromotionActive(ctx context.Context, arg database.SetPromotionActiveParams) (database.Promotion, error)
	DeletePromotion(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// PromotionHandler handles promotion endpoints.
type PromotionHandler struct {
	store    PromotionStore
	notifier CatalogNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewPromotionHandler creates a new PromotionHandler. notifier may be nil.
func NewPromotionHandler(store PromotionStore, notifier CatalogNotifier, logger *zap.Logger) *PromotionHandler {
	return &PromotionHandler{store: store, notifier: notifier, logger: orNop(logger), now: time.Now}
}

// RegisterRoutes registers promotion endpoints. Mounted at /promotions.
func (h *PromotionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/eligible", h.Eligible)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}/active", h.SetActive)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type promotionRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Kind        string     `json:"kind"`
	Value       string     `json:"value"`
	MinAmount   string     `json:"min_amount"`
	Active      *bool      `json:"active"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

type promotionResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Kind        string     `json:"kind"`
	Value       string     `json:"value"`
	MinAmount   *string    `json:"min_amount"`
	Active      bool       `json:"active"`
	Status      string     `json:"status"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toPromotionResponse(p model.Promotion, now time.Time) promotionResponse {
	resp := promotionResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Kind:        p.Kind.String(),
		Value:       p.Value.StringFixed(2),
		Active:      p.Active,
		Status:      promotion.StatusAt(p, now),
		CreatedAt:   p.CreatedAt,
	}
	if p.MinAmount != nil {
		s := p.MinAmount.StringFixed(2)
		resp.MinAmount = &s
	}
	if !p.StartDate.IsZero() {
		t := p.StartDate
		resp.StartDate = &t
	}
	if !p.EndDate.IsZero() {
		t := p.EndDate
		resp.EndDate = &t
	}
	return resp
}

// toModel parses and validates the request into a promotion.
func (req promotionRequest) toModel() (model.Promotion, string) {
	kind, err := model.ParseDiscountKind(req.Kind)
	if err != nil {
		return model.Promotion{}, "kind must be percentage or fixed"
	}
	if req.Value == "" {
		return model.Promotion{}, "value is required"
	}
	value, err := decimal.NewFromString(req.Value)
	if err != nil {
		return model.Promotion{}, "invalid value"
	}
	p := model.Promotion{
		Name:        req.Name,
		Description: req.Description,
		Kind:        kind,
		Value:       value,
		Active:      true,
	}
	if req.MinAmount != "" {
		m, err := decimal.NewFromString(req.MinAmount)
		if err != nil {
			return model.Promotion{}, "invalid min_amount"
		}
		p.MinAmount = &m
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	if req.StartDate != nil {
		p.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		p.EndDate = *req.EndDate
	}
	if err := promotion.Validate(p); err != nil {
		return model.Promotion{}, err.Error()
	}
	return p, ""
}

// promotionsFromRows converts rows, skipping any with an unknown type.
func promotionsFromRows(rows []database.Promotion, logger *zap.Logger) []model.Promotion {
	out := make([]model.Promotion, 0, len(rows))
	for _, row := range rows {
		p, err := service.PromotionFromRow(row)
		if err != nil {
			logger.Warn("skip promotion", zap.String("promotion_id", row.ID.String()), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out
}

func (h *PromotionHandler) notify(id uuid.UUID) {
	if h.notifier != nil {
		h.notifier.CatalogChanged(enum.EventPromotionUpdated, id)
	}
}

func (h *PromotionHandler) writePromotion(w http.ResponseWriter, status int, row database.Promotion) {
	p, err := service.PromotionFromRow(row)
	if err != nil {
		internalError(w, h.logger, "convert promotion", err)
		return
	}
	writeJSON(w, status, toPromotionResponse(p, h.now()))
}

// --- Handlers ---

// List returns promotions; ?active=true limits the list to active ones.
func (h *PromotionHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if s := r.URL.Query().Get("active"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid active filter"})
			return
		}
		activeOnly = b
	}

	rows, err := h.store.ListPromotions(r.Context(), activeOnly)
	if err != nil {
		storeUnavailable(w, h.logger, "list promotions", err)
		return
	}

	now := h.now()
	promos := promotionsFromRows(rows, h.logger)
	resp := make([]promotionResponse, len(promos))
	for i, p := range promos {
		resp[i] = toPromotionResponse(p, now)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Eligible returns the promotions a cart with ?subtotal= may use right now.
func (h *PromotionHandler) Eligible(w http.ResponseWriter, r *http.Request) {
	subtotal, err := parseMoney(r.URL.Query().Get("subtotal"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": moneyError("subtotal", err)})
		return
	}

	rows, err := h.store.ListPromotions(r.Context(), true)
	if err != nil {
		storeUnavailable(w, h.logger, "list promotions", err)
		return
	}

	now := h.now()
	eligible := promotion.Eligible(promotionsFromRows(rows, h.logger), subtotal, now)
	resp := make([]promotionResponse, len(eligible))
	for i, p := range eligible {
		resp[i] = toPromotionResponse(p, now)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single promotion by ID.
func (h *PromotionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid promotion ID"})
		return
	}

	row, err := h.store.GetPromotion(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "promotion not found"})
			return
		}
		storeUnavailable(w, h.logger, "get promotion", err)
		return
	}
	h.writePromotion(w, http.StatusOK, row)
}

// Create adds a promotion.
func (h *PromotionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	p, msg := req.toModel()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	row, err := h.store.CreatePromotion(r.Context(), database.CreatePromotionParams{
		Name:        p.Name,
		Description: service.TextOrNull(p.Description),
		Type:        p.Kind.String(),
		Value:       service.DecimalToNumeric(p.Value),
		MinAmount:   service.OptionalNumeric(p.MinAmount),
		Active:      p.Active,
		StartDate:   service.TimeOrNull(p.StartDate),
		EndDate:     service.TimeOrNull(p.EndDate),
	})
	if err != nil {
		internalError(w, h.logger, "create promotion", err)
		return
	}

	h.notify(row.ID)
	h.writePromotion(w, http.StatusCreated, row)
}

// Update replaces a promotion. Orders already finalized keep their snapshot.
func (h *PromotionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid promotion ID"})
		return
	}

	var req promotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	p, msg := req.toModel()
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	row, err := h.store.UpdatePromotion(r.Context(), database.UpdatePromotionParams{
		ID:          id,
		Name:        p.Name,
		Description: service.TextOrNull(p.Description),
		Type:        p.Kind.String(),
		Value:       service.DecimalToNumeric(p.Value),
		MinAmount:   service.OptionalNumeric(p.MinAmount),
		Active:      p.Active,
		StartDate:   service.TimeOrNull(p.StartDate),
		EndDate:     service.TimeOrNull(p.EndDate),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "promotion not found"})
			return
		}
		internalError(w, h.logger, "update promotion", err)
		return
	}

	h.notify(row.ID)
	h.writePromotion(w, http.StatusOK, row)
}

// SetActive toggles a promotion on or off.
func (h *PromotionHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid promotion ID"})
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "active is required"})
		return
	}

	row, err := h.store.SetPromotionActive(r.Context(), database.SetPromotionActiveParams{ID: id, Active: *req.Active})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "promotion not found"})
			return
		}
		internalError(w, h.logger, "set promotion active", err)
		return
	}

	h.notify(row.ID)
	h.writePromotion(w, http.StatusOK, row)
}

// Delete removes a promotion.
func (h *PromotionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid promotion ID"})
		return
	}

	if _, err := h.store.DeletePromotion(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "promotion not found"})
			return
		}
		internalError(w, h.logger, "delete promotion", err)
		return
	}

	h.notify(id)
	w.WriteHeader(http.StatusNoContent)
}
