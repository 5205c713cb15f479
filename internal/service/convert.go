package service

import (
	"time"

	"github.com/chamarodfai/pos-api/internal/database"
	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NumericToDecimal converts a NUMERIC column to a decimal. NULL and
// unparseable values become zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalToNumeric converts a money amount to a NUMERIC parameter rounded to
// two places.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// OptionalNumeric is DecimalToNumeric for nullable columns.
func OptionalNumeric(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{}
	}
	return DecimalToNumeric(*d)
}

// TextOrNull maps an empty string to NULL.
func TextOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// TimeOrNull maps the zero time to NULL.
func TimeOrNull(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// MenuItemFromRow converts a catalog row.
func MenuItemFromRow(r database.MenuItem) model.MenuItem {
	return model.MenuItem{
		ID:          r.ID,
		Name:        r.Name,
		Price:       NumericToDecimal(r.Price),
		Cost:        NumericToDecimal(r.Cost),
		Category:    r.Category,
		Description: r.Description.String,
		ImageURL:    r.ImageUrl.String,
		Available:   r.Available,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// PromotionFromRow converts a promotion row. An unrecognised type is
// returned as an error so it never reaches ComputeDiscount.
func PromotionFromRow(r database.Promotion) (model.Promotion, error) {
	kind, err := model.ParseDiscountKind(r.Type)
	if err != nil {
		return model.Promotion{}, err
	}
	p := model.Promotion{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description.String,
		Kind:        kind,
		Value:       NumericToDecimal(r.Value),
		Active:      r.Active,
		CreatedAt:   r.CreatedAt,
	}
	if r.MinAmount.Valid {
		m := NumericToDecimal(r.MinAmount)
		p.MinAmount = &m
	}
	if r.StartDate.Valid {
		p.StartDate = r.StartDate.Time
	}
	if r.EndDate.Valid {
		p.EndDate = r.EndDate.Time
	}
	return p, nil
}

// OrderFromRows assembles a ledger order from its header and item rows.
// items must already be in position order.
func OrderFromRows(o database.Order, items []database.OrderItem) model.Order {
	out := model.Order{
		ID:        o.ID,
		Items:     make([]model.LineItem, 0, len(items)),
		Subtotal:  NumericToDecimal(o.Subtotal),
		Discount:  NumericToDecimal(o.Discount),
		Total:     NumericToDecimal(o.Total),
		CreatedAt: o.CreatedAt,
	}
	for _, it := range items {
		out.Items = append(out.Items, model.LineItem{
			ItemID:    it.MenuItemID,
			Name:      it.Name,
			UnitPrice: NumericToDecimal(it.Price),
			UnitCost:  NumericToDecimal(it.Cost),
			Quantity:  int(it.Quantity),
		})
	}
	if o.PromotionID.Valid {
		snap := &model.PromotionSnapshot{
			ID:    uuid.UUID(o.PromotionID.Bytes),
			Name:  o.PromotionName.String,
			Value: NumericToDecimal(o.PromotionValue),
		}
		if kind, err := model.ParseDiscountKind(o.PromotionType.String); err == nil {
			snap.Kind = kind
		}
		out.Promotion = snap
	}
	return out
}
