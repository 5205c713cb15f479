package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chamarodfai/pos-api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock catalog ---

// mockCatalog is an in-memory menu and promotion table. It satisfies
// MenuItemStore, PromotionStore, CartCatalog and MenuLister.
type mockCatalog struct {
	menu       map[uuid.UUID]database.MenuItem
	menuOrder  []uuid.UUID
	promos     map[uuid.UUID]database.Promotion
	promoOrder []uuid.UUID

	readErr  error // returned by every read
	writeErr error // returned by every write
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		menu:   make(map[uuid.UUID]database.MenuItem),
		promos: make(map[uuid.UUID]database.Promotion),
	}
}

func (m *mockCatalog) addMenuItem(name, price, cost, category string, available bool) database.MenuItem {
	now := time.Now()
	row := database.MenuItem{
		ID: uuid.New(), Name: name, Price: testNumeric(price), Cost: testNumeric(cost),
		Category: category, Available: available, CreatedAt: now, UpdatedAt: now,
	}
	m.menu[row.ID] = row
	m.menuOrder = append(m.menuOrder, row.ID)
	return row
}

func (m *mockCatalog) addPromotion(name, kind, value, minAmount string, active bool) database.Promotion {
	row := database.Promotion{
		ID: uuid.New(), Name: name, Type: kind, Value: testNumeric(value),
		Active: active, CreatedAt: time.Now(),
	}
	if minAmount != "" {
		row.MinAmount = testNumeric(minAmount)
	}
	m.promos[row.ID] = row
	m.promoOrder = append(m.promoOrder, row.ID)
	return row
}

func (m *mockCatalog) ListMenuItems(_ context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []database.MenuItem
	for _, id := range m.menuOrder {
		row, ok := m.menu[id]
		if !ok {
			continue
		}
		if arg.AvailableOnly && !row.Available {
			continue
		}
		if arg.Category.Valid && row.Category != arg.Category.String {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *mockCatalog) GetMenuItem(_ context.Context, id uuid.UUID) (database.MenuItem, error) {
	if m.readErr != nil {
		return database.MenuItem{}, m.readErr
	}
	row, ok := m.menu[id]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return row, nil
}

func (m *mockCatalog) CreateMenuItem(_ context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error) {
	if m.writeErr != nil {
		return database.MenuItem{}, m.writeErr
	}
	now := time.Now()
	row := database.MenuItem{
		ID: uuid.New(), Name: arg.Name, Price: arg.Price, Cost: arg.Cost, Category: arg.Category,
		Description: arg.Description, ImageUrl: arg.ImageUrl, Available: arg.Available,
		CreatedAt: now, UpdatedAt: now,
	}
	m.menu[row.ID] = row
	m.menuOrder = append(m.menuOrder, row.ID)
	return row, nil
}

func (m *mockCatalog) UpdateMenuItem(_ context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error) {
	if m.writeErr != nil {
		return database.MenuItem{}, m.writeErr
	}
	row, ok := m.menu[arg.ID]
	if !ok {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	row.Name, row.Price, row.Cost, row.Category = arg.Name, arg.Price, arg.Cost, arg.Category
	row.Description, row.ImageUrl, row.Available = arg.Description, arg.ImageUrl, arg.Available
	row.UpdatedAt = time.Now()
	m.menu[row.ID] = row
	return row, nil
}

func (m *mockCatalog) DeleteMenuItem(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if m.writeErr != nil {
		return uuid.Nil, m.writeErr
	}
	if _, ok := m.menu[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.menu, id)
	return id, nil
}

func (m *mockCatalog) ListPromotions(_ context.Context, activeOnly bool) ([]database.Promotion, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []database.Promotion
	for _, id := range m.promoOrder {
		row, ok := m.promos[id]
		if !ok || (activeOnly && !row.Active) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *mockCatalog) GetPromotion(_ context.Context, id uuid.UUID) (database.Promotion, error) {
	if m.readErr != nil {
		return database.Promotion{}, m.readErr
	}
	row, ok := m.promos[id]
	if !ok {
		return database.Promotion{}, pgx.ErrNoRows
	}
	return row, nil
}

func (m *mockCatalog) CreatePromotion(_ context.Context, arg database.CreatePromotionParams) (database.Promotion, error) {
	if m.writeErr != nil {
		return database.Promotion{}, m.writeErr
	}
	row := database.Promotion{
		ID: uuid.New(), Name: arg.Name, Description: arg.Description, Type: arg.Type,
		Value: arg.Value, MinAmount: arg.MinAmount, Active: arg.Active,
		StartDate: arg.StartDate, EndDate: arg.EndDate, CreatedAt: time.Now(),
	}
	m.promos[row.ID] = row
	m.promoOrder = append(m.promoOrder, row.ID)
	return row, nil
}

func (m *mockCatalog) UpdatePromotion(_ context.Context, arg database.UpdatePromotionParams) (database.Promotion, error) {
	if m.writeErr != nil {
		return database.Promotion{}, m.writeErr
	}
	row, ok := m.promos[arg.ID]
	if !ok {
		return database.Promotion{}, pgx.ErrNoRows
	}
	row.Name, row.Description, row.Type, row.Value = arg.Name, arg.Description, arg.Type, arg.Value
	row.MinAmount, row.Active, row.StartDate, row.EndDate = arg.MinAmount, arg.Active, arg.StartDate, arg.EndDate
	m.promos[row.ID] = row
	return row, nil
}

func (m *mockCatalog) SetPromotionActive(_ context.Context, arg database.SetPromotionActiveParams) (database.Promotion, error) {
	if m.writeErr != nil {
		return database.Promotion{}, m.writeErr
	}
	row, ok := m.promos[arg.ID]
	if !ok {
		return database.Promotion{}, pgx.ErrNoRows
	}
	row.Active = arg.Active
	m.promos[row.ID] = row
	return row, nil
}

func (m *mockCatalog) DeletePromotion(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	if m.writeErr != nil {
		return uuid.Nil, m.writeErr
	}
	if _, ok := m.promos[id]; !ok {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.promos, id)
	return id, nil
}

// recordingNotifier captures catalog change notifications.
type recordingNotifier struct {
	events []string
	ids    []uuid.UUID
}

func (n *recordingNotifier) CatalogChanged(eventType string, id uuid.UUID) {
	n.events = append(n.events, eventType)
	n.ids = append(n.ids, id)
}

// --- Helpers ---

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func testNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(decimal.RequireFromString(val).String())
	return n
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return doRequestWithHeaders(t, router, method, path, body, nil)
}

func doRequestWithHeaders(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeObject(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, want, rr.Body.String())
	}
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	resp := decodeObject(t, rr)
	if resp["error"] != want {
		t.Errorf("error: got %v, want %q", resp["error"], want)
	}
}
