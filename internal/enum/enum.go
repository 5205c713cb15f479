package enum

// ── Group A: Wire labels (CHECK constrained in DB) ──

const (
	DiscountKindPercentage = "percentage"
	DiscountKindFixed      = "fixed"
)

// ── Group B: Derived labels (never stored) ──

const (
	PromotionStatusActive   = "active"
	PromotionStatusInactive = "inactive"
	PromotionStatusExpired  = "expired"
	PromotionStatusUpcoming = "upcoming"
)

const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// ── Group C: Realtime feed ──

const (
	FeedOrders  = "orders"
	FeedCatalog = "catalog"
)

const (
	EventOrderCreated     = "order.created"
	EventMenuUpdated      = "menu.updated"
	EventPromotionUpdated = "promotion.updated"
)
