package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chamarodfai/pos-api/internal/enum"
	"github.com/chamarodfai/pos-api/internal/events"
	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, feeds ...string) *Client {
	return &Client{
		hub:   hub,
		feeds: feeds,
		send:  make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) wireEvent {
	t.Helper()
	select {
	case msg := <-c.send:
		var ev wireEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client did not receive message")
	}
	return wireEvent{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.send:
		t.Fatal("client should not have received a message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)
	client := mockClient(hub, enum.FeedOrders, enum.FeedCatalog)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if !hub.rooms[enum.FeedOrders][client] || !hub.rooms[enum.FeedCatalog][client] {
		t.Fatal("client not registered in both feeds")
	}
	if hub.count != 1 {
		t.Fatalf("count = %d, want 1", hub.count)
	}
}

func TestHubUnregistrationCleansRooms(t *testing.T) {
	hub := startHub(t)
	client := mockClient(hub, enum.FeedOrders, enum.FeedCatalog)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	if n := hub.Clients(); n != 0 {
		t.Fatalf("Clients() = %d, want 0", n)
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if len(hub.rooms) != 0 {
		t.Fatalf("rooms not cleaned up: %v", hub.rooms)
	}
	if _, ok := <-client.send; ok {
		t.Fatal("send channel should be closed")
	}
}

func TestOrderCreatedReachesOrdersFeedOnly(t *testing.T) {
	hub := startHub(t)
	ordersClient := mockClient(hub, enum.FeedOrders)
	catalogClient := mockClient(hub, enum.FeedCatalog)
	hub.register <- ordersClient
	hub.register <- catalogClient
	time.Sleep(10 * time.Millisecond)

	order := model.Order{
		ID:        uuid.New(),
		Items:     []model.LineItem{{ItemID: uuid.New(), Name: "กาแฟดำ", UnitPrice: decimal.NewFromInt(45), Quantity: 2}},
		Subtotal:  decimal.NewFromInt(90),
		Discount:  decimal.Zero,
		Total:     decimal.NewFromInt(90),
		CreatedAt: time.Now(),
	}
	if err := hub.OrderCreated(context.Background(), order); err != nil {
		t.Fatalf("OrderCreated: %v", err)
	}

	ev := receive(t, ordersClient)
	if ev.Type != enum.EventOrderCreated {
		t.Errorf("type = %q, want %q", ev.Type, enum.EventOrderCreated)
	}
	var payload events.OrderPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID != order.ID || payload.Total != "90.00" {
		t.Errorf("payload = %+v", payload)
	}
	expectNothing(t, catalogClient)
}

func TestCatalogChangedReachesEveryCatalogClient(t *testing.T) {
	hub := startHub(t)
	clients := []*Client{
		mockClient(hub, enum.FeedCatalog),
		mockClient(hub, enum.FeedCatalog, enum.FeedOrders),
		mockClient(hub, enum.FeedCatalog),
	}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	hub.CatalogChanged(enum.EventPromotionUpdated, uuid.New())

	for i, c := range clients {
		if ev := receive(t, c); ev.Type != enum.EventPromotionUpdated {
			t.Errorf("client%d: type = %q", i+1, ev.Type)
		}
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := startHub(t)
	slow := &Client{hub: hub, feeds: []string{enum.FeedOrders}, send: make(chan []byte)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(enum.FeedOrders, events.Event{Type: enum.EventOrderCreated})
	time.Sleep(10 * time.Millisecond)

	if n := hub.Clients(); n != 0 {
		t.Fatalf("Clients() = %d, want 0", n)
	}
}

func TestOnClientsTracksCount(t *testing.T) {
	hub := NewHub(nil)
	var last atomic.Int64
	hub.OnClients = func(n int) { last.Store(int64(n)) }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a, b := mockClient(hub, enum.FeedOrders), mockClient(hub, enum.FeedOrders)
	hub.register <- a
	hub.register <- b
	time.Sleep(10 * time.Millisecond)
	if got := last.Load(); got != 2 {
		t.Fatalf("OnClients = %d, want 2", got)
	}

	hub.unregister <- a
	time.Sleep(10 * time.Millisecond)
	if got := last.Load(); got != 1 {
		t.Fatalf("OnClients = %d, want 1", got)
	}
}

func TestParseFeeds(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
		ok   bool
	}{
		{"", []string{enum.FeedOrders, enum.FeedCatalog}, true},
		{"orders", []string{enum.FeedOrders}, true},
		{" Catalog , orders,catalog", []string{enum.FeedCatalog, enum.FeedOrders}, true},
		{"kitchen", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseFeeds(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("feeds = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandlerStreamsEvents(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(NewHandler(hub, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?feeds=catalog"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	id := uuid.New()
	hub.CatalogChanged(enum.EventMenuUpdated, id)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var ev wireEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != enum.EventMenuUpdated || !strings.Contains(string(ev.Data), id.String()) {
		t.Fatalf("event = %+v", ev)
	}
}

func TestHandlerRejectsUnknownFeed(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(NewHandler(hub, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?feeds=kitchen"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("response = %v", resp)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://pos.example.com"})
	req := httptest.NewRequest("GET", "/ws/orders", nil)
	if !check(req) {
		t.Error("request without Origin should pass")
	}
	req.Header.Set("Origin", "https://pos.example.com")
	if !check(req) {
		t.Error("allowed origin rejected")
	}
	req.Header.Set("Origin", "https://evil.example.com")
	if check(req) {
		t.Error("foreign origin accepted")
	}
}
