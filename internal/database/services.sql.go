package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const serviceColumns = `id, vendor_id, name, type, description, price, price_type, details,
image_url, is_active, ranking_score, created_at, updated_at`

func scanService(row pgx.Row) (Service, error) {
	var i Service
	err := row.Scan(
		&i.ID,
		&i.VendorID,
		&i.Name,
		&i.Type,
		&i.Description,
		&i.Price,
		&i.PriceType,
		&i.Details,
		&i.ImageUrl,
		&i.IsActive,
		&i.RankingScore,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const serviceFilter = `is_active = true
  AND ($1::text IS NULL OR type = $1)
  AND ($2::text IS NULL OR name ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
  AND ($3::numeric IS NULL OR price >= $3)
  AND ($4::numeric IS NULL OR price <= $4)
  AND ($5::uuid IS NULL OR vendor_id = $5)`

const listServices = `SELECT ` + serviceColumns + ` FROM services
WHERE ` + serviceFilter + `
ORDER BY ranking_score DESC, created_at DESC
LIMIT $6 OFFSET $7`

type ListServicesParams struct {
	Type     pgtype.Text    `json:"type"`
	Search   pgtype.Text    `json:"search"`
	MinPrice pgtype.Numeric `json:"min_price"`
	MaxPrice pgtype.Numeric `json:"max_price"`
	VendorID pgtype.UUID    `json:"vendor_id"`
	Limit    int32          `json:"limit"`
	Offset   int32          `json:"offset"`
}

func (q *Queries) ListServices(ctx context.Context, arg ListServicesParams) ([]Service, error) {
	rows, err := q.db.Query(ctx, listServices,
		arg.Type,
		arg.Search,
		arg.MinPrice,
		arg.MaxPrice,
		arg.VendorID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanService)
}

const countServices = `SELECT count(*) FROM services WHERE ` + serviceFilter

type CountServicesParams struct {
	Type     pgtype.Text    `json:"type"`
	Search   pgtype.Text    `json:"search"`
	MinPrice pgtype.Numeric `json:"min_price"`
	MaxPrice pgtype.Numeric `json:"max_price"`
	VendorID pgtype.UUID    `json:"vendor_id"`
}

func (q *Queries) CountServices(ctx context.Context, arg CountServicesParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countServices,
		arg.Type,
		arg.Search,
		arg.MinPrice,
		arg.MaxPrice,
		arg.VendorID,
	).Scan(&count)
	return count, err
}

const getServiceByID = `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`

func (q *Queries) GetServiceByID(ctx context.Context, id uuid.UUID) (Service, error) {
	return scanService(q.db.QueryRow(ctx, getServiceByID, id))
}

const createService = `INSERT INTO services (vendor_id, name, type, description, price, price_type, details, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + serviceColumns

type CreateServiceParams struct {
	VendorID    uuid.UUID      `json:"vendor_id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description pgtype.Text    `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	PriceType   string         `json:"price_type"`
	Details     []byte         `json:"details"`
	ImageUrl    pgtype.Text    `json:"image_url"`
}

func (q *Queries) CreateService(ctx context.Context, arg CreateServiceParams) (Service, error) {
	return scanService(q.db.QueryRow(ctx, createService,
		arg.VendorID,
		arg.Name,
		arg.Type,
		arg.Description,
		arg.Price,
		arg.PriceType,
		arg.Details,
		arg.ImageUrl,
	))
}

const updateService = `UPDATE services
SET name = $3, description = $4, price = $5, price_type = $6, details = $7,
    image_url = $8, is_active = $9, updated_at = now()
WHERE id = $1 AND vendor_id = $2
RETURNING ` + serviceColumns

type UpdateServiceParams struct {
	ID          uuid.UUID      `json:"id"`
	VendorID    uuid.UUID      `json:"vendor_id"`
	Name        string         `json:"name"`
	Description pgtype.Text    `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	PriceType   string         `json:"price_type"`
	Details     []byte         `json:"details"`
	ImageUrl    pgtype.Text    `json:"image_url"`
	IsActive    bool           `json:"is_active"`
}

func (q *Queries) UpdateService(ctx context.Context, arg UpdateServiceParams) (Service, error) {
	return scanService(q.db.QueryRow(ctx, updateService,
		arg.ID,
		arg.VendorID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.PriceType,
		arg.Details,
		arg.ImageUrl,
		arg.IsActive,
	))
}

const updateAllServiceRankings = `SELECT update_all_service_rankings()`

// UpdateAllServiceRankings recomputes ranking_score for every service and
// returns the number of rows touched.
func (q *Queries) UpdateAllServiceRankings(ctx context.Context) (int32, error) {
	var updated int32
	err := q.db.QueryRow(ctx, updateAllServiceRankings).Scan(&updated)
	return updated, err
}
