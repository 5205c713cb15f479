package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/chamarodfai/pos-api/internal/enum"
	"github.com/chamarodfai/pos-api/internal/events"
	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// feedEvent routes an event to the clients of one feed
type feedEvent struct {
	Feed  string
	Event events.Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by feed
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *feedEvent
	done       chan struct{}

	// OnClients, when set, is called with the connected client count after
	// every change.
	OnClients func(n int)

	logger *zap.Logger
	mu     sync.RWMutex
	count  int
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *feedEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done, closing every
// client. Call it as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clientsLocked() {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			for _, feed := range client.feeds {
				if h.rooms[feed] == nil {
					h.rooms[feed] = make(map[*Client]bool)
				}
				h.rooms[feed][client] = true
			}
			h.count++
			h.mu.Unlock()
			h.notify()

		case client := <-h.unregister:
			h.mu.Lock()
			dropped := h.dropLocked(client)
			h.mu.Unlock()
			if dropped {
				h.notify()
			}

		case ev := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(ev.Event)
			if err != nil {
				h.logger.Error("marshal websocket event", zap.String("type", ev.Event.Type), zap.Error(err))
				continue
			}

			h.mu.Lock()
			var slow []*Client
			for client := range h.rooms[ev.Feed] {
				select {
				case client.send <- message:
				default:
					slow = append(slow, client)
				}
			}
			for _, c := range slow {
				h.dropLocked(c)
			}
			h.mu.Unlock()
			if len(slow) > 0 {
				h.logger.Warn("dropped slow websocket clients", zap.Int("count", len(slow)))
				h.notify()
			}
		}
	}
}

// dropLocked removes c from all its rooms and closes its send channel. It
// reports whether c was registered. Caller holds h.mu.
func (h *Hub) dropLocked(c *Client) bool {
	found := false
	for _, feed := range c.feeds {
		clients, ok := h.rooms[feed]
		if !ok || !clients[c] {
			continue
		}
		found = true
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, feed)
		}
	}
	if found {
		close(c.send)
		h.count--
	}
	return found
}

func (h *Hub) clientsLocked() map[*Client]bool {
	all := make(map[*Client]bool)
	for _, clients := range h.rooms {
		for c := range clients {
			all[c] = true
		}
	}
	return all
}

func (h *Hub) notify() {
	if h.OnClients == nil {
		return
	}
	h.OnClients(h.Clients())
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Broadcast sends an event to all clients subscribed to feed. It is a no-op
// once the hub has stopped.
func (h *Hub) Broadcast(feed string, event events.Event) {
	select {
	case h.broadcast <- &feedEvent{Feed: feed, Event: event}:
	case <-h.done:
	}
}

// OrderCreated pushes a committed order to the orders feed.
func (h *Hub) OrderCreated(_ context.Context, o model.Order) error {
	h.Broadcast(enum.FeedOrders, events.OrderCreated(o))
	return nil
}

// CatalogChanged pushes a menu or promotion write to the catalog feed.
func (h *Hub) CatalogChanged(eventType string, id uuid.UUID) {
	h.Broadcast(enum.FeedCatalog, events.CatalogChanged(eventType, id, time.Now()))
}
