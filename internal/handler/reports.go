package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chamarodfai/pos-api/internal/analytics"
	"github.com/chamarodfai/pos-api/internal/database"
	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/chamarodfai/pos-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultRecentOrders = 10
	maxRecentOrders     = 100
)

// SalesSource reads the ledger window a report needs.
// Satisfied by *service.OrderService.
type SalesSource interface {
	OrdersBetween(ctx context.Context, start, end time.Time) ([]model.Order, error)
}

// MenuLister reads the catalog used to resolve categories.
// Satisfied by *database.Queries.
type MenuLister interface {
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
}

// ReportMetrics counts reports that fell back to zeros.
// Satisfied by *metrics.Registry.
type ReportMetrics interface {
	AnalyticsFailed()
}

// ReportsHandler serves the sales dashboard.
type ReportsHandler struct {
	sales   SalesSource
	menu    MenuLister
	loc     *time.Location
	metrics ReportMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. Periods are evaluated in
// loc; m may be nil.
func NewReportsHandler(sales SalesSource, menu MenuLister, loc *time.Location, m ReportMetrics, logger *zap.Logger) *ReportsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportsHandler{sales: sales, menu: menu, loc: loc, metrics: m, logger: orNop(logger), now: time.Now}
}

// RegisterRoutes registers report endpoints. Mounted at /reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/sales", h.Sales)
}

// --- Response types ---

type currentStatsResponse struct {
	Revenue           string `json:"revenue"`
	OrderCount        int    `json:"order_count"`
	Discount          string `json:"discount"`
	AverageOrderValue string `json:"average_order_value"`
	Cost              string `json:"cost"`
	GrossProfit       string `json:"gross_profit"`
}

type previousStatsResponse struct {
	Revenue    string `json:"revenue"`
	OrderCount int    `json:"order_count"`
	Discount   string `json:"discount"`
}

type changesResponse struct {
	RevenuePct    string `json:"revenue_pct"`
	OrderCountPct string `json:"order_count_pct"`
}

type topItemResponse struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	Revenue   string    `json:"revenue"`
}

type categoryResponse struct {
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Revenue  string `json:"revenue"`
}

type salesReportResponse struct {
	Period        string                `json:"period"`
	Start         time.Time             `json:"start"`
	End           time.Time             `json:"end"`
	PreviousStart time.Time             `json:"previous_start"`
	PreviousEnd   time.Time             `json:"previous_end"`
	Current       currentStatsResponse  `json:"current"`
	Previous      previousStatsResponse `json:"previous"`
	Changes       changesResponse       `json:"changes"`
	TopItems      []topItemResponse     `json:"top_items"`
	Categories    []categoryResponse    `json:"categories"`
	RecentOrders  []orderResponse       `json:"recent_orders"`
}

func toSalesReportResponse(rep analytics.Report, g analytics.Granularity, current, previous analytics.Period, recent int) salesReportResponse {
	resp := salesReportResponse{
		Period:        g.String(),
		Start:         current.Start,
		End:           current.End,
		PreviousStart: previous.Start,
		PreviousEnd:   previous.End,
		Current: currentStatsResponse{
			Revenue:           rep.Current.Revenue.StringFixed(2),
			OrderCount:        rep.Current.OrderCount,
			Discount:          rep.Current.Discount.StringFixed(2),
			AverageOrderValue: rep.Current.AverageOrderValue.StringFixed(2),
			Cost:              rep.Current.Cost.StringFixed(2),
			GrossProfit:       rep.Current.GrossProfit.StringFixed(2),
		},
		Previous: previousStatsResponse{
			Revenue:    rep.Previous.Revenue.StringFixed(2),
			OrderCount: rep.Previous.OrderCount,
			Discount:   rep.Previous.Discount.StringFixed(2),
		},
		Changes: changesResponse{
			RevenuePct:    rep.Changes.RevenuePct.StringFixed(2),
			OrderCountPct: rep.Changes.OrderCountPct.StringFixed(2),
		},
		TopItems:     make([]topItemResponse, len(rep.TopItems)),
		Categories:   make([]categoryResponse, len(rep.Categories)),
		RecentOrders: toOrderResponses(rep.RecentOrders(recent)),
	}
	for i, t := range rep.TopItems {
		resp.TopItems[i] = topItemResponse{
			ItemID:    t.ItemID,
			Name:      t.Name,
			UnitPrice: t.UnitPrice.StringFixed(2),
			Quantity:  t.Quantity,
			Revenue:   t.Revenue.StringFixed(2),
		}
	}
	for i, c := range rep.Categories {
		resp.Categories[i] = categoryResponse{
			Category: c.Category,
			Quantity: c.Quantity,
			Revenue:  c.Revenue.StringFixed(2),
		}
	}
	return resp
}

// --- Handlers ---

// Sales returns the period report.
//
//	GET /reports/sales?period=day|week|month|year&date=YYYY-MM-DD&recent=N
//
// period defaults to day, date to today in the configured timezone and
// recent to 10. recent is capped at 100, and 0 asks for the cap.
func (h *ReportsHandler) Sales(w http.ResponseWriter, r *http.Request) {
	g, ref, recent, err := h.parseSalesQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	current, err := analytics.Bounds(ref, g, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	previous, err := analytics.Previous(ref, g, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	orders, err := h.sales.OrdersBetween(r.Context(), previous.Start, current.End)
	if err != nil {
		storeUnavailable(w, h.logger, "list orders for report", err)
		return
	}
	rows, err := h.menu.ListMenuItems(r.Context(), database.ListMenuItemsParams{})
	if err != nil {
		storeUnavailable(w, h.logger, "list menu items for report", err)
		return
	}
	menu := make([]model.MenuItem, len(rows))
	for i, row := range rows {
		menu[i] = service.MenuItemFromRow(row)
	}

	engine := analytics.Engine{
		Location: h.loc,
		OnError: func(err error) {
			h.logger.Error("compute sales report", zap.String("period", g.String()), zap.Error(err))
			if h.metrics != nil {
				h.metrics.AnalyticsFailed()
			}
		},
	}
	rep := engine.Report(orders, menu, ref, g)

	writeJSON(w, http.StatusOK, toSalesReportResponse(rep, g, current, previous, recent))
}

// --- Helpers ---

func (h *ReportsHandler) parseSalesQuery(r *http.Request) (analytics.Granularity, time.Time, int, error) {
	const layout = "2006-01-02"
	q := r.URL.Query()

	g := analytics.Day
	if s := q.Get("period"); s != "" {
		parsed, err := analytics.ParseGranularity(s)
		if err != nil {
			return 0, time.Time{}, 0, errors.New("period must be day, week, month or year")
		}
		g = parsed
	}

	ref := h.now().In(h.loc)
	if s := q.Get("date"); s != "" {
		t, err := time.ParseInLocation(layout, s, h.loc)
		if err != nil {
			return 0, time.Time{}, 0, errors.New("invalid date format, expected YYYY-MM-DD")
		}
		ref = t
	}

	recent := defaultRecentOrders
	if s := q.Get("recent"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, time.Time{}, 0, errors.New("recent must be a non-negative integer")
		}
		if n == 0 || n > maxRecentOrders {
			n = maxRecentOrders
		}
		recent = n
	}
	return g, ref, recent, nil
}
