// Package analytics aggregates the order ledger into period-bucketed sales
// statistics for the dashboard.
//
// Report never fails. Anything that goes wrong while aggregating is passed
// to Engine.OnError as a *ComputeError and an all-zero report is returned.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/chamarodfai/pos-api/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnspecifiedCategory buckets line items whose menu item is unknown.
const UnspecifiedCategory = "unspecified"

// TopItemsLimit is the number of best sellers in a report.
const TopItemsLimit = 5

var hundred = decimal.NewFromInt(100)

// ComputeError wraps a failure inside aggregation.
type ComputeError struct {
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("analytics compute: %v", e.Err)
}

func (e *ComputeError) Unwrap() error { return e.Err }

// Stats summarises the orders of the reporting period.
type Stats struct {
	Revenue           model.Money
	OrderCount        int
	Discount          model.Money
	AverageOrderValue model.Money
	Cost              model.Money
	GrossProfit       model.Money
}

// PreviousStats summarises the orders of the preceding period.
type PreviousStats struct {
	Revenue    model.Money
	OrderCount int
	Discount   model.Money
}

// Changes are period-over-period percentages. A zero baseline reports 0.
type Changes struct {
	RevenuePct    decimal.Decimal
	OrderCountPct decimal.Decimal
}

// TopItem is a best seller aggregated by menu item id.
type TopItem struct {
	ItemID    uuid.UUID
	Name      string
	UnitPrice model.Money
	Quantity  int
	Revenue   model.Money
}

// CategoryStat is revenue and quantity per menu category.
type CategoryStat struct {
	Category string
	Quantity int
	Revenue  model.Money
}

// Report is the dashboard view of the ledger.
type Report struct {
	Granularity    Granularity
	Period         Period
	PreviousPeriod Period
	Current        Stats
	Previous       PreviousStats
	Changes        Changes
	TopItems       []TopItem
	Categories     []CategoryStat
	CurrentOrders  []model.Order
}

// Empty returns the all-zero report.
func Empty() Report {
	return Report{
		Current: Stats{
			Revenue:           decimal.Zero,
			Discount:          decimal.Zero,
			AverageOrderValue: decimal.Zero,
			Cost:              decimal.Zero,
			GrossProfit:       decimal.Zero,
		},
		Previous: PreviousStats{
			Revenue:  decimal.Zero,
			Discount: decimal.Zero,
		},
		Changes: Changes{
			RevenuePct:    decimal.Zero,
			OrderCountPct: decimal.Zero,
		},
		TopItems:      []TopItem{},
		Categories:    []CategoryStat{},
		CurrentOrders: []model.Order{},
	}
}

// RecentOrders returns up to n of the report's current orders, newest first.
// n <= 0 returns all of them.
func (r Report) RecentOrders(n int) []model.Order {
	out := make([]model.Order, len(r.CurrentOrders))
	copy(out, r.CurrentOrders)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Engine computes reports. The zero value evaluates periods in the
// reference time's location and discards compute errors.
type Engine struct {
	Location *time.Location
	OnError  func(error)
}

// Report aggregates orders into the period of granularity g containing ref
// and compares it with the period before. menu resolves line items to
// categories.
func (e Engine) Report(orders []model.Order, menu []model.MenuItem, ref time.Time, g Granularity) (rep Report) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("panic: %v", r))
			rep = Empty()
		}
	}()

	rep, err := e.compute(orders, menu, ref, g)
	if err != nil {
		e.fail(err)
		return Empty()
	}
	return rep
}

func (e Engine) fail(err error) {
	if e.OnError != nil {
		e.OnError(&ComputeError{Err: err})
	}
}

func (e Engine) compute(orders []model.Order, menu []model.MenuItem, ref time.Time, g Granularity) (Report, error) {
	current, err := Bounds(ref, g, e.Location)
	if err != nil {
		return Report{}, err
	}
	previous, err := Previous(ref, g, e.Location)
	if err != nil {
		return Report{}, err
	}

	rep := Empty()
	rep.Granularity = g
	rep.Period = current
	rep.PreviousPeriod = previous

	var prevOrders []model.Order
	for _, o := range orders {
		if o.CreatedAt.IsZero() {
			continue
		}
		switch {
		case current.Contains(o.CreatedAt):
			rep.CurrentOrders = append(rep.CurrentOrders, o.Clone())
		case previous.Contains(o.CreatedAt):
			prevOrders = append(prevOrders, o)
		}
	}

	for _, o := range rep.CurrentOrders {
		rep.Current.Revenue = rep.Current.Revenue.Add(o.Total)
		rep.Current.Discount = rep.Current.Discount.Add(o.Discount)
		for _, li := range o.Items {
			rep.Current.Cost = rep.Current.Cost.Add(li.LineCost())
		}
	}
	rep.Current.OrderCount = len(rep.CurrentOrders)
	rep.Current.GrossProfit = rep.Current.Revenue.Sub(rep.Current.Cost)
	if rep.Current.OrderCount > 0 {
		rep.Current.AverageOrderValue = rep.Current.Revenue.Div(decimal.NewFromInt(int64(rep.Current.OrderCount)))
	}

	for _, o := range prevOrders {
		rep.Previous.Revenue = rep.Previous.Revenue.Add(o.Total)
		rep.Previous.Discount = rep.Previous.Discount.Add(o.Discount)
	}
	rep.Previous.OrderCount = len(prevOrders)

	rep.Changes = Changes{
		RevenuePct: changePct(rep.Current.Revenue, rep.Previous.Revenue),
		OrderCountPct: changePct(
			decimal.NewFromInt(int64(rep.Current.OrderCount)),
			decimal.NewFromInt(int64(rep.Previous.OrderCount)),
		),
	}

	rep.TopItems = topItems(rep.CurrentOrders, TopItemsLimit)
	rep.Categories = categoryBreakdown(rep.CurrentOrders, menu)
	return rep, nil
}

// changePct is (current - previous) / previous × 100, or 0 when previous is 0.
func changePct(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred)
}

func topItems(orders []model.Order, limit int) []TopItem {
	index := map[uuid.UUID]int{}
	items := []TopItem{}
	for _, o := range orders {
		for _, li := range o.Items {
			i, ok := index[li.ItemID]
			if !ok {
				i = len(items)
				index[li.ItemID] = i
				items = append(items, TopItem{
					ItemID:    li.ItemID,
					Name:      li.Name,
					UnitPrice: li.UnitPrice,
					Revenue:   decimal.Zero,
				})
			}
			items[i].Quantity += li.Quantity
			items[i].Revenue = items[i].Revenue.Add(li.LineTotal())
		}
	}

	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Quantity > items[b].Quantity
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func categoryBreakdown(orders []model.Order, menu []model.MenuItem) []CategoryStat {
	categoryOf := make(map[uuid.UUID]string, len(menu))
	for _, m := range menu {
		categoryOf[m.ID] = m.Category
	}

	index := map[string]int{}
	stats := []CategoryStat{}
	for _, o := range orders {
		for _, li := range o.Items {
			category, ok := categoryOf[li.ItemID]
			if !ok || category == "" {
				category = UnspecifiedCategory
			}
			i, seen := index[category]
			if !seen {
				i = len(stats)
				index[category] = i
				stats = append(stats, CategoryStat{Category: category, Revenue: decimal.Zero})
			}
			stats[i].Quantity += li.Quantity
			stats[i].Revenue = stats[i].Revenue.Add(li.LineTotal())
		}
	}
	return stats
}
