// Package promotion computes promotion discounts and classifies promotions for
// the checkout screen.
//
// ComputeDiscount applies the minimum-order threshold to fixed-amount
// promotions only. Percentage promotions apply regardless of MinAmount. The
// UI gates both kinds through MeetsThreshold before offering them.
package promotion

import (
	"errors"
	"time"

	"github.com/chamarodfai/pos-api/internal/enum"
	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/shopspring/decimal"
)

// Errors returned by Validate.
var (
	ErrNameRequired      = errors.New("name is required")
	ErrInvalidKind       = errors.New("invalid discount kind")
	ErrPercentageRange   = errors.New("percentage value must be between 0 and 100")
	ErrNegativeValue     = errors.New("value must be >= 0")
	ErrNegativeMinAmount = errors.New("min_amount must be >= 0")
	ErrInvalidDateWindow = errors.New("end_date must not be before start_date")
)

var hundred = decimal.NewFromInt(100)

// ComputeDiscount returns the discount p grants on subtotal. A nil promotion
// yields zero. The result is never negative; callers clamp the total.
func ComputeDiscount(subtotal model.Money, p *model.Promotion) model.Money {
	if p == nil {
		return decimal.Zero
	}

	var discount model.Money
	switch p.Kind {
	case model.DiscountPercentage:
		discount = subtotal.Mul(p.Value).Div(hundred)
	case model.DiscountFixedAmount:
		if subtotal.GreaterThanOrEqual(p.Threshold()) {
			discount = p.Value
		} else {
			discount = decimal.Zero
		}
	default:
		discount = decimal.Zero
	}

	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

// MeetsThreshold reports whether subtotal reaches p's minimum order amount.
func MeetsThreshold(p model.Promotion, subtotal model.Money) bool {
	return subtotal.GreaterThanOrEqual(p.Threshold())
}

// StatusAt classifies p at instant now. An inactive promotion is always
// "inactive"; otherwise the validity window decides.
func StatusAt(p model.Promotion, now time.Time) string {
	if !p.Active {
		return enum.PromotionStatusInactive
	}
	if !p.EndDate.IsZero() && p.EndDate.Before(now) {
		return enum.PromotionStatusExpired
	}
	if !p.StartDate.IsZero() && p.StartDate.After(now) {
		return enum.PromotionStatusUpcoming
	}
	return enum.PromotionStatusActive
}

// Eligible returns the promotions that are currently active and whose
// threshold subtotal meets, preserving input order.
func Eligible(promos []model.Promotion, subtotal model.Money, now time.Time) []model.Promotion {
	out := make([]model.Promotion, 0, len(promos))
	for _, p := range promos {
		if StatusAt(p, now) != enum.PromotionStatusActive {
			continue
		}
		if !MeetsThreshold(p, subtotal) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Validate checks a promotion before it is written to the catalog.
func Validate(p model.Promotion) error {
	if p.Name == "" {
		return ErrNameRequired
	}
	switch p.Kind {
	case model.DiscountPercentage:
		if p.Value.IsNegative() || p.Value.GreaterThan(hundred) {
			return ErrPercentageRange
		}
	case model.DiscountFixedAmount:
		if p.Value.IsNegative() {
			return ErrNegativeValue
		}
	default:
		return ErrInvalidKind
	}
	if p.MinAmount != nil && p.MinAmount.IsNegative() {
		return ErrNegativeMinAmount
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
		return ErrInvalidDateWindow
	}
	return nil
}
