// Package cart implements the in-progress order of a single POS terminal.
//
// An Engine owns its line items and at most one applied promotion. Subtotal,
// discount and total are never set directly: every mutation ends with
// recompute, so the totals are always a function of (items, promotion).
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/chamarodfai/pos-api/internal/promotion"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Errors returned by the cart engine.
var (
	ErrEmptyOrder       = errors.New("order has no items")
	ErrOrderPersistence = errors.New("order could not be saved")
	ErrInvalidItem      = errors.New("invalid menu item")
	ErrItemUnavailable  = errors.New("menu item is not available")
	ErrItemNotInCart    = errors.New("item not in cart")
	ErrInvalidPromotion = errors.New("invalid promotion")
)

// Ledger appends finalized orders. It assigns the order ID (and timestamp
// when missing) and returns the persisted order.
type Ledger interface {
	CreateOrder(ctx context.Context, order model.Order) (model.Order, error)
}

// State is the mutable part of a cart: line items in insertion order and the
// applied promotion, if any.
type State struct {
	Items     []model.LineItem
	Promotion *model.Promotion
}

// Totals are the derived money fields of a cart.
type Totals struct {
	Subtotal model.Money
	Discount model.Money
	Total    model.Money
}

// Snapshot is a read-only copy of a cart.
type Snapshot struct {
	State
	Totals
}

// Engine is a single-writer cart. It is not safe for concurrent use; callers
// serialise access per session.
type Engine struct {
	state  State
	totals Totals
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to timestamp finalized orders.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an empty cart.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.recompute()
	return e
}

// Restore replaces the cart contents with s, dropping any line whose
// quantity is not positive, and recomputes the totals.
func (e *Engine) Restore(s State) {
	items := make([]model.LineItem, 0, len(s.Items))
	for _, li := range s.Items {
		if li.Quantity > 0 {
			items = append(items, li)
		}
	}
	e.state = State{Items: items, Promotion: clonePromotion(s.Promotion)}
	e.recompute()
}

// AddItem adds one unit of item. An item already in the cart keeps the unit
// price captured when it was first added.
func (e *Engine) AddItem(item model.MenuItem) error {
	if item.ID == uuid.Nil || item.Price.IsNegative() {
		return ErrInvalidItem
	}
	if !item.Available {
		return fmt.Errorf("%w: %s", ErrItemUnavailable, item.Name)
	}

	if i := e.indexOf(item.ID); i >= 0 {
		e.state.Items[i].Quantity++
	} else {
		e.state.Items = append(e.state.Items, model.LineItem{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			UnitCost:  item.Cost,
			Quantity:  1,
		})
	}
	e.recompute()
	return nil
}

// RemoveItem deletes the line for itemID. Removing an absent item is a no-op.
func (e *Engine) RemoveItem(itemID uuid.UUID) {
	if i := e.indexOf(itemID); i >= 0 {
		e.state.Items = append(e.state.Items[:i], e.state.Items[i+1:]...)
	}
	e.recompute()
}

// SetQuantity sets the quantity of itemID. A quantity <= 0 removes the line.
func (e *Engine) SetQuantity(itemID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		e.RemoveItem(itemID)
		return nil
	}
	i := e.indexOf(itemID)
	if i < 0 {
		return ErrItemNotInCart
	}
	e.state.Items[i].Quantity = quantity
	e.recompute()
	return nil
}

// ApplyPromotion replaces the applied promotion. The threshold is not checked
// here; an unmet threshold simply yields the discount ComputeDiscount gives.
func (e *Engine) ApplyPromotion(p *model.Promotion) error {
	if p == nil {
		return ErrInvalidPromotion
	}
	e.state.Promotion = clonePromotion(p)
	e.recompute()
	return nil
}

// RemovePromotion clears the applied promotion.
func (e *Engine) RemovePromotion() {
	e.state.Promotion = nil
	e.recompute()
}

// Clear empties the cart.
func (e *Engine) Clear() {
	e.state = State{}
	e.recompute()
}

// IsEmpty reports whether the cart has no line items.
func (e *Engine) IsEmpty() bool {
	return len(e.state.Items) == 0
}

// Totals returns the current derived totals.
func (e *Engine) Totals() Totals {
	return e.totals
}

// Snapshot returns a deep copy of the cart.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		State: State{
			Items:     model.CloneItems(e.state.Items),
			Promotion: clonePromotion(e.state.Promotion),
		},
		Totals: e.totals,
	}
}

// Order builds the immutable order snapshot for the current cart, stamped
// with the engine clock. The ID is left for the ledger to assign.
func (e *Engine) Order() model.Order {
	o := model.Order{
		Items:     model.CloneItems(e.state.Items),
		Subtotal:  e.totals.Subtotal,
		Discount:  e.totals.Discount,
		Total:     e.totals.Total,
		CreatedAt: e.now(),
	}
	if e.state.Promotion != nil {
		snap := e.state.Promotion.Snapshot()
		o.Promotion = &snap
	}
	return o
}

// Finalize appends the cart to the ledger and resets the engine. On a ledger
// failure the cart is left untouched so the checkout can be retried.
func (e *Engine) Finalize(ctx context.Context, ledger Ledger) (model.Order, error) {
	if e.IsEmpty() {
		return model.Order{}, ErrEmptyOrder
	}
	if ledger == nil {
		return model.Order{}, fmt.Errorf("%w: no ledger configured", ErrOrderPersistence)
	}

	saved, err := ledger.CreateOrder(ctx, e.Order())
	if err != nil {
		return model.Order{}, fmt.Errorf("%w: %w", ErrOrderPersistence, err)
	}

	e.Clear()
	return saved, nil
}

// recompute derives subtotal, discount and total from the current state.
func (e *Engine) recompute() {
	subtotal := model.Subtotal(e.state.Items)
	discount := decimal.Zero
	if e.state.Promotion != nil {
		// Rounded once here so every stored field agrees at two places.
		discount = promotion.ComputeDiscount(subtotal, e.state.Promotion).Round(2)
	}
	e.totals = Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    model.ClampTotal(subtotal, discount),
	}
}

func (e *Engine) indexOf(itemID uuid.UUID) int {
	for i, li := range e.state.Items {
		if li.ItemID == itemID {
			return i
		}
	}
	return -1
}

func clonePromotion(p *model.Promotion) *model.Promotion {
	if p == nil {
		return nil
	}
	c := *p
	if p.MinAmount != nil {
		m := *p.MinAmount
		c.MinAmount = &m
	}
	return &c
}
