// Package events defines the envelope for order and catalog events and
// publishes finalized orders to Kafka for downstream consumers.
package events

import (
	"time"

	"github.com/chamarodfai/pos-api/internal/enum"
	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/google/uuid"
)

// Event is the JSON envelope shared by the Kafka topic and the websocket feed.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPayload is the wire form of a ledger order. Money is fixed to two
// decimal places.
type OrderPayload struct {
	ID               uuid.UUID         `json:"id"`
	Items            []LineItemPayload `json:"items"`
	Subtotal         string            `json:"subtotal"`
	Discount         string            `json:"discount"`
	Total            string            `json:"total"`
	AppliedPromotion *PromotionPayload `json:"applied_promotion,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

type LineItemPayload struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
	Quantity  int       `json:"quantity"`
}

type PromotionPayload struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Kind  string    `json:"kind"`
	Value string    `json:"value"`
}

func NewOrderPayload(o model.Order) OrderPayload {
	p := OrderPayload{
		ID:        o.ID,
		Items:     make([]LineItemPayload, len(o.Items)),
		Subtotal:  o.Subtotal.StringFixed(2),
		Discount:  o.Discount.StringFixed(2),
		Total:     o.Total.StringFixed(2),
		Timestamp: o.CreatedAt,
	}
	for i, li := range o.Items {
		p.Items[i] = LineItemPayload{
			ItemID:    li.ItemID,
			Name:      li.Name,
			UnitPrice: li.UnitPrice.StringFixed(2),
			Quantity:  li.Quantity,
		}
	}
	if o.Promotion != nil {
		p.AppliedPromotion = &PromotionPayload{
			ID:    o.Promotion.ID,
			Name:  o.Promotion.Name,
			Kind:  o.Promotion.Kind.String(),
			Value: o.Promotion.Value.StringFixed(2),
		}
	}
	return p
}

// OrderCreated wraps a committed order.
func OrderCreated(o model.Order) Event {
	return Event{Type: enum.EventOrderCreated, Data: NewOrderPayload(o), Timestamp: o.CreatedAt}
}

// CatalogChanged announces a menu or promotion write. eventType is
// enum.EventMenuUpdated or enum.EventPromotionUpdated.
func CatalogChanged(eventType string, id uuid.UUID, at time.Time) Event {
	return Event{Type: eventType, Data: map[string]string{"id": id.String()}, Timestamp: at}
}
