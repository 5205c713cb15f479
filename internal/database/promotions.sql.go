package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const promotionColumns = `id, name, description, type, value, min_amount, active, start_date, end_date, created_at`

func scanPromotion(row interface{ Scan(...any) error }) (Promotion, error) {
	var i Promotion
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Type,
		&i.Value,
		&i.MinAmount,
		&i.Active,
		&i.StartDate,
		&i.EndDate,
		&i.CreatedAt,
	)
	return i, err
}

const listPromotions = `-- name: ListPromotions :many
SELECT ` + promotionColumns + ` FROM promotions
WHERE ($1::boolean = false OR active = true)
ORDER BY created_at DESC
`

func (q *Queries) ListPromotions(ctx context.Context, activeOnly bool) ([]Promotion, error) {
	rows, err := q.db.Query(ctx, listPromotions, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Promotion{}
	for rows.Next() {
		i, err := scanPromotion(rows)
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

const getPromotion = `-- name: GetPromotion :one
SELECT ` + promotionColumns + ` FROM promotions
WHERE id = $1
`

func (q *Queries) GetPromotion(ctx context.Context, id uuid.UUID) (Promotion, error) {
	return scanPromotion(q.db.QueryRow(ctx, getPromotion, id))
}

const createPromotion = `-- name: CreatePromotion :one
INSERT INTO promotions (name, description, type, value, min_amount, active, start_date, end_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + promotionColumns

type CreatePromotionParams struct {
	Name        string             `json:"name"`
	Description pgtype.Text        `json:"description"`
	Type        string             `json:"type"`
	Value       pgtype.Numeric     `json:"value"`
	MinAmount   pgtype.Numeric     `json:"min_amount"`
	Active      bool               `json:"active"`
	StartDate   pgtype.Timestamptz `json:"start_date"`
	EndDate     pgtype.Timestamptz `json:"end_date"`
}

func (q *Queries) CreatePromotion(ctx context.Context, arg CreatePromotionParams) (Promotion, error) {
	return scanPromotion(q.db.QueryRow(ctx, createPromotion,
		arg.Name,
		arg.Description,
		arg.Type,
		arg.Value,
		arg.MinAmount,
		arg.Active,
		arg.StartDate,
		arg.EndDate,
	))
}

const updatePromotion = `-- name: UpdatePromotion :one
UPDATE promotions
SET name = $2, description = $3, type = $4, value = $5, min_amount = $6,
    active = $7, start_date = $8, end_date = $9
WHERE id = $1
RETURNING ` + promotionColumns

type UpdatePromotionParams struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Description pgtype.Text        `json:"description"`
	Type        string             `json:"type"`
	Value       pgtype.Numeric     `json:"value"`
	MinAmount   pgtype.Numeric     `json:"min_amount"`
	Active      bool               `json:"active"`
	StartDate   pgtype.Timestamptz `json:"start_date"`
	EndDate     pgtype.Timestamptz `json:"end_date"`
}

func (q *Queries) UpdatePromotion(ctx context.Context, arg UpdatePromotionParams) (Promotion, error) {
	return scanPromotion(q.db.QueryRow(ctx, updatePromotion,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Type,
		arg.Value,
		arg.MinAmount,
		arg.Active,
		arg.StartDate,
		arg.EndDate,
	))
}

const setPromotionActive = `-- name: SetPromotionActive :one
UPDATE promotions
SET active = $2
WHERE id = $1
RETURNING ` + promotionColumns

type SetPromotionActiveParams struct {
	ID     uuid.UUID `json:"id"`
	Active bool      `json:"active"`
}

func (q *Queries) SetPromotionActive(ctx context.Context, arg SetPromotionActiveParams) (Promotion, error) {
	return scanPromotion(q.db.QueryRow(ctx, setPromotionActive, arg.ID, arg.Active))
}

const deletePromotion = `-- name: DeletePromotion :one
DELETE FROM promotions
WHERE id = $1
RETURNING id
`

func (q *Queries) DeletePromotion(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deletePromotion, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}
