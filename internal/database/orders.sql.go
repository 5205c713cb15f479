package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, subtotal, discount, total, promotion_id, promotion_name, promotion_type, promotion_value, created_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.Subtotal,
		&i.Discount,
		&i.Total,
		&i.PromotionID,
		&i.PromotionName,
		&i.PromotionType,
		&i.PromotionValue,
		&i.CreatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (subtotal, discount, total, promotion_id, promotion_name, promotion_type, promotion_value, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
RETURNING ` + orderColumns

type CreateOrderParams struct {
	Subtotal       pgtype.Numeric     `json:"subtotal"`
	Discount       pgtype.Numeric     `json:"discount"`
	Total          pgtype.Numeric     `json:"total"`
	PromotionID    pgtype.UUID        `json:"promotion_id"`
	PromotionName  pgtype.Text        `json:"promotion_name"`
	PromotionType  pgtype.Text        `json:"promotion_type"`
	PromotionValue pgtype.Numeric     `json:"promotion_value"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.Subtotal,
		arg.Discount,
		arg.Total,
		arg.PromotionID,
		arg.PromotionName,
		arg.PromotionType,
		arg.PromotionValue,
		arg.CreatedAt,
	))
}

const orderItemColumns = `id, order_id, position, menu_item_id, name, price, cost, quantity, subtotal, total_cost`

func scanOrderItem(row interface{ Scan(...any) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Position,
		&i.MenuItemID,
		&i.Name,
		&i.Price,
		&i.Cost,
		&i.Quantity,
		&i.Subtotal,
		&i.TotalCost,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, position, menu_item_id, name, price, cost, quantity, subtotal, total_cost)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
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

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.Position,
		arg.MenuItemID,
		arg.Name,
		arg.Price,
		arg.Cost,
		arg.Quantity,
		arg.Subtotal,
		arg.TotalCost,
	))
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
ORDER BY created_at DESC
LIMIT $1
`

func (q *Queries) ListOrders(ctx context.Context, limit int32) ([]Order, error) {
	return q.queryOrders(ctx, listOrders, limit)
}

const listOrdersBetween = `-- name: ListOrdersBetween :many
SELECT ` + orderColumns + ` FROM orders
WHERE created_at >= $1 AND created_at <= $2
ORDER BY created_at DESC
`

type ListOrdersBetweenParams struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (q *Queries) ListOrdersBetween(ctx context.Context, arg ListOrdersBetweenParams) ([]Order, error) {
	return q.queryOrders(ctx, listOrdersBetween, arg.Start, arg.End)
}

func (q *Queries) queryOrders(ctx context.Context, query string, args ...interface{}) ([]Order, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrderIDs = `-- name: ListOrderItemsByOrderIDs :many
SELECT ` + orderItemColumns + ` FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id, position
`

func (q *Queries) ListOrderItemsByOrderIDs(ctx context.Context, orderIDs []uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrderIDs, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
