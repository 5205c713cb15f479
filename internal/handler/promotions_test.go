package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/chamarodfai/pos-api/internal/enum"
	"github.com/chamarodfai/pos-api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func setupPromotionRouter(store *mockCatalog, notifier handler.CatalogNotifier) *chi.Mux {
	h := handler.NewPromotionHandler(store, notifier, nil)
	r := chi.NewRouter()
	r.Route("/promotions", h.RegisterRoutes)
	return r
}

func TestPromotionList(t *testing.T) {
	store := newMockCatalog()
	store.addPromotion("ลด 10%", "percentage", "10", "200", true)
	store.addPromotion("ลด 50 บาท", "fixed", "50", "300", false)
	router := setupPromotionRouter(store, nil)

	rr := doRequest(t, router, "GET", "/promotions", nil)
	assertStatus(t, rr, http.StatusOK)
	resp := decodeList(t, rr)
	if len(resp) != 2 {
		t.Fatalf("got %d promotions, want 2", len(resp))
	}
	if resp[0]["status"] != enum.PromotionStatusActive || resp[1]["status"] != enum.PromotionStatusInactive {
		t.Errorf("statuses: got %v, %v", resp[0]["status"], resp[1]["status"])
	}
	if resp[0]["min_amount"] != "200.00" || resp[0]["value"] != "10.00" {
		t.Errorf("money: got value %v min_amount %v", resp[0]["value"], resp[0]["min_amount"])
	}

	rr = doRequest(t, router, "GET", "/promotions?active=true", nil)
	assertStatus(t, rr, http.StatusOK)
	if resp := decodeList(t, rr); len(resp) != 1 {
		t.Fatalf("active only: got %d, want 1", len(resp))
	}
}

func TestPromotionList_SkipsUnknownKind(t *testing.T) {
	store := newMockCatalog()
	store.addPromotion("ลด 10%", "percentage", "10", "", true)
	store.addPromotion("bogus", "bogo", "1", "", true)
	router := setupPromotionRouter(store, nil)

	rr := doRequest(t, router, "GET", "/promotions", nil)
	assertStatus(t, rr, http.StatusOK)
	if resp := decodeList(t, rr); len(resp) != 1 {
		t.Fatalf("got %d promotions, want 1", len(resp))
	}
}

func TestPromotionEligible(t *testing.T) {
	store := newMockCatalog()
	pct := store.addPromotion("ลด 10%", "percentage", "10", "200", true)
	store.addPromotion("ลด 50 บาท", "fixed", "50", "300", true)
	store.addPromotion("ปิดไว้", "fixed", "5", "", false)
	expired := store.addPromotion("หมดเขต", "fixed", "5", "", true)
	expired.EndDate = pgtype.Timestamptz{Time: time.Now().Add(-time.Hour), Valid: true}
	store.promos[expired.ID] = expired
	router := setupPromotionRouter(store, nil)

	tests := []struct {
		subtotal string
		want     int
	}{
		{"100", 0},
		{"200", 1},
		{"300", 2},
	}
	for _, tt := range tests {
		rr := doRequest(t, router, "GET", "/promotions/eligible?subtotal="+tt.subtotal, nil)
		assertStatus(t, rr, http.StatusOK)
		resp := decodeList(t, rr)
		if len(resp) != tt.want {
			t.Errorf("subtotal %s: got %d eligible, want %d", tt.subtotal, len(resp), tt.want)
		}
		if len(resp) > 0 && resp[0]["id"] != pct.ID.String() {
			t.Errorf("subtotal %s: first eligible %v, want %s", tt.subtotal, resp[0]["id"], pct.ID)
		}
	}
}

func TestPromotionEligible_InvalidSubtotal(t *testing.T) {
	router := setupPromotionRouter(newMockCatalog(), nil)

	rr := doRequest(t, router, "GET", "/promotions/eligible?subtotal=abc", nil)
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, rr, "invalid subtotal")

	rr = doRequest(t, router, "GET", "/promotions/eligible?subtotal=-5", nil)
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, rr, "subtotal must be >= 0")
}

func TestPromotionGet(t *testing.T) {
	store := newMockCatalog()
	p := store.addPromotion("ลด 10%", "percentage", "10", "", true)
	router := setupPromotionRouter(store, nil)

	rr := doRequest(t, router, "GET", "/promotions/"+p.ID.String(), nil)
	assertStatus(t, rr, http.StatusOK)
	resp := decodeObject(t, rr)
	if resp["kind"] != "percentage" || resp["min_amount"] != nil {
		t.Errorf("got kind %v min_amount %v", resp["kind"], resp["min_amount"])
	}

	rr = doRequest(t, router, "GET", "/promotions/"+uuid.New().String(), nil)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestPromotionCreate_Valid(t *testing.T) {
	store := newMockCatalog()
	notifier := &recordingNotifier{}
	router := setupPromotionRouter(store, notifier)

	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	rr := doRequest(t, router, "POST", "/promotions", map[string]interface{}{
		"name":       "ลด 50 บาท",
		"kind":       "fixed",
		"value":      "50",
		"min_amount": "300",
		"start_date": start,
	})
	assertStatus(t, rr, http.StatusCreated)

	resp := decodeObject(t, rr)
	if resp["status"] != enum.PromotionStatusUpcoming {
		t.Errorf("status: got %v, want upcoming", resp["status"])
	}
	if resp["active"] != true {
		t.Errorf("active should default to true, got %v", resp["active"])
	}
	if len(notifier.events) != 1 || notifier.events[0] != enum.EventPromotionUpdated {
		t.Errorf("notifications: got %v", notifier.events)
	}
}

func TestPromotionCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{"unknown kind", map[string]interface{}{"name": "x", "kind": "bogo", "value": "1"}, "kind must be percentage or fixed"},
		{"missing value", map[string]interface{}{"name": "x", "kind": "fixed"}, "value is required"},
		{"bad value", map[string]interface{}{"name": "x", "kind": "fixed", "value": "abc"}, "invalid value"},
		{"missing name", map[string]interface{}{"kind": "fixed", "value": "1"}, "name is required"},
		{"percentage over 100", map[string]interface{}{"name": "x", "kind": "percentage", "value": "150"}, "percentage value must be between 0 and 100"},
		{"negative fixed", map[string]interface{}{"name": "x", "kind": "fixed", "value": "-1"}, "value must be >= 0"},
		{"negative min", map[string]interface{}{"name": "x", "kind": "fixed", "value": "1", "min_amount": "-1"}, "min_amount must be >= 0"},
		{"window reversed", map[string]interface{}{
			"name": "x", "kind": "fixed", "value": "1",
			"start_date": "2026-03-02T00:00:00Z", "end_date": "2026-03-01T00:00:00Z",
		}, "end_date must not be before start_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupPromotionRouter(newMockCatalog(), nil)
			rr := doRequest(t, router, "POST", "/promotions", tt.body)
			assertStatus(t, rr, http.StatusBadRequest)
			assertError(t, rr, tt.want)
		})
	}
}

func TestPromotionUpdate(t *testing.T) {
	store := newMockCatalog()
	p := store.addPromotion("ลด 10%", "percentage", "10", "", true)
	router := setupPromotionRouter(store, nil)

	rr := doRequest(t, router, "PUT", "/promotions/"+p.ID.String(), map[string]interface{}{
		"name": "ลด 15%", "kind": "percentage", "value": "15",
	})
	assertStatus(t, rr, http.StatusOK)
	if resp := decodeObject(t, rr); resp["name"] != "ลด 15%" || resp["value"] != "15.00" {
		t.Errorf("got name %v value %v", resp["name"], resp["value"])
	}

	rr = doRequest(t, router, "PUT", "/promotions/"+uuid.New().String(), map[string]interface{}{
		"name": "x", "kind": "fixed", "value": "1",
	})
	assertStatus(t, rr, http.StatusNotFound)
}

func TestPromotionSetActive(t *testing.T) {
	store := newMockCatalog()
	p := store.addPromotion("ลด 10%", "percentage", "10", "", true)
	notifier := &recordingNotifier{}
	router := setupPromotionRouter(store, notifier)

	rr := doRequest(t, router, "PATCH", "/promotions/"+p.ID.String()+"/active", map[string]interface{}{"active": false})
	assertStatus(t, rr, http.StatusOK)
	resp := decodeObject(t, rr)
	if resp["active"] != false || resp["status"] != enum.PromotionStatusInactive {
		t.Errorf("got active %v status %v", resp["active"], resp["status"])
	}
	if len(notifier.ids) != 1 || notifier.ids[0] != p.ID {
		t.Errorf("notifications: got %v", notifier.ids)
	}

	rr = doRequest(t, router, "PATCH", "/promotions/"+p.ID.String()+"/active", map[string]interface{}{})
	assertStatus(t, rr, http.StatusBadRequest)
	assertError(t, rr, "active is required")
}

func TestPromotionDelete(t *testing.T) {
	store := newMockCatalog()
	p := store.addPromotion("ลด 10%", "percentage", "10", "", true)
	router := setupPromotionRouter(store, nil)

	rr := doRequest(t, router, "DELETE", "/promotions/"+p.ID.String(), nil)
	assertStatus(t, rr, http.StatusNoContent)

	rr = doRequest(t, router, "DELETE", "/promotions/"+p.ID.String(), nil)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestPromotionList_StoreUnavailable(t *testing.T) {
	store := newMockCatalog()
	store.readErr = errConnRefused
	router := setupPromotionRouter(store, nil)

	rr := doRequest(t, router, "GET", "/promotions", nil)
	assertStatus(t, rr, http.StatusServiceUnavailable)
}
