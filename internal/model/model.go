// Package model holds the data shapes shared by the cart, promotion and
// analytics engines and the helpers that keep their derived money fields
// consistent.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/chamarodfai/pos-api/internal/enum"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Money is a non-negative currency amount. Arithmetic stays in decimal;
// rendering uses StringFixed(2).
type Money = decimal.Decimal

// ErrUnknownDiscountKind is returned when a discount kind label is not recognised.
var ErrUnknownDiscountKind = errors.New("unknown discount kind")

// DiscountKind is the closed set of promotion kinds.
type DiscountKind int

const (
	DiscountPercentage DiscountKind = iota + 1
	DiscountFixedAmount
)

// String returns the wire label ("percentage" or "fixed").
func (k DiscountKind) String() string {
	switch k {
	case DiscountPercentage:
		return enum.DiscountKindPercentage
	case DiscountFixedAmount:
		return enum.DiscountKindFixed
	}
	return fmt.Sprintf("DiscountKind(%d)", int(k))
}

// ParseDiscountKind maps a wire label onto a DiscountKind.
func ParseDiscountKind(s string) (DiscountKind, error) {
	switch s {
	case enum.DiscountKindPercentage:
		return DiscountPercentage, nil
	case enum.DiscountKindFixed, "fixed_amount":
		return DiscountFixedAmount, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDiscountKind, s)
}

// MenuItem is a sellable catalog entry.
type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Price       Money
	Cost        Money
	Category    string
	Description string
	ImageURL    string
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Promotion is a discount rule. MinAmount is nil when no threshold is set.
type Promotion struct {
	ID          uuid.UUID
	Name        string
	Description string
	Kind        DiscountKind
	Value       Money
	MinAmount   *Money
	Active      bool
	StartDate   time.Time
	EndDate     time.Time
	CreatedAt   time.Time
}

// Threshold returns the minimum order amount, or zero when none is set.
func (p Promotion) Threshold() Money {
	if p.MinAmount == nil {
		return decimal.Zero
	}
	return *p.MinAmount
}

// Snapshot captures the fields of p that are frozen into a finalized order.
func (p Promotion) Snapshot() PromotionSnapshot {
	return PromotionSnapshot{ID: p.ID, Name: p.Name, Kind: p.Kind, Value: p.Value}
}

// PromotionSnapshot is the immutable copy of a promotion stored on an order.
type PromotionSnapshot struct {
	ID    uuid.UUID
	Name  string
	Kind  DiscountKind
	Value Money
}

// LineItem is one distinct menu item and its quantity. Name, UnitPrice and
// UnitCost are captured when the item is first added.
type LineItem struct {
	ItemID    uuid.UUID
	Name      string
	UnitPrice Money
	UnitCost  Money
	Quantity  int
}

// LineTotal is UnitPrice × Quantity.
func (li LineItem) LineTotal() Money {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// LineCost is UnitCost × Quantity.
func (li LineItem) LineCost() Money {
	return li.UnitCost.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is a finalized ledger entry.
type Order struct {
	ID        uuid.UUID
	Items     []LineItem
	Subtotal  Money
	Discount  Money
	Total     Money
	Promotion *PromotionSnapshot
	CreatedAt time.Time
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	c := o
	c.Items = CloneItems(o.Items)
	if o.Promotion != nil {
		p := *o.Promotion
		c.Promotion = &p
	}
	return c
}

// CloneItems copies a line item slice.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// Subtotal is Σ(unitPrice × quantity) over items.
func Subtotal(items []LineItem) Money {
	sum := decimal.Zero
	for _, li := range items {
		sum = sum.Add(li.LineTotal())
	}
	return sum
}

// ClampTotal returns max(0, subtotal - discount).
func ClampTotal(subtotal, discount Money) Money {
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}
