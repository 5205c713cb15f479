package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type MenuItem struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Price       pgtype.Numeric `json:"price"`
	Cost        pgtype.Numeric `json:"cost"`
	Category    string         `json:"category"`
	Description pgtype.Text    `json:"description"`
	ImageUrl    pgtype.Text    `json:"image_url"`
	Available   bool           `json:"available"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Promotion struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Description pgtype.Text        `json:"description"`
	Type        string             `json:"type"`
	Value       pgtype.Numeric     `json:"value"`
	MinAmount   pgtype.Numeric     `json:"min_amount"`
	Active      bool               `json:"active"`
	StartDate   pgtype.Timestamptz `json:"start_date"`
	EndDate     pgtype.Timestamptz `json:"end_date"`
	CreatedAt   time.Time          `json:"created_at"`
}

type Order struct {
	ID             uuid.UUID      `json:"id"`
	Subtotal       pgtype.Numeric `json:"subtotal"`
	Discount       pgtype.Numeric `json:"discount"`
	Total          pgtype.Numeric `json:"total"`
	PromotionID    pgtype.UUID    `json:"promotion_id"`
	PromotionName  pgtype.Text    `json:"promotion_name"`
	PromotionType  pgtype.Text    `json:"promotion_type"`
	PromotionValue pgtype.Numeric `json:"promotion_value"`
	CreatedAt      time.Time      `json:"created_at"`
}

type OrderItem struct {
	ID         uuid.UUID      `json:"id"`
	OrderID    uuid.UUID      `json:"order_id"`
	Position   int32          `json:"position"`
	MenuItemID uuid.UUID      `json:"menu_item_id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	Cost       pgtype.Numeric `json:"cost"`
	Quantity   int32          `json:"quantity"`
	Subtotal   pgtype.Numeric `json:"subtotal"`
	TotalCost  pgtype.Numeric `json:"total_cost"`
}
