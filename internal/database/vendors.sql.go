package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const vendorColumns = `id, user_id, business_name, email, phone, address, lat, lng,
stripe_account_id, commission_rate, boost_percentage, created_at, updated_at`

func scanVendor(row pgx.Row) (Vendor, error) {
	var i Vendor
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.BusinessName,
		&i.Email,
		&i.Phone,
		&i.Address,
		&i.Lat,
		&i.Lng,
		&i.StripeAccountID,
		&i.CommissionRate,
		&i.BoostPercentage,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getVendorByID = `SELECT ` + vendorColumns + ` FROM vendors WHERE id = $1`

func (q *Queries) GetVendorByID(ctx context.Context, id uuid.UUID) (Vendor, error) {
	return scanVendor(q.db.QueryRow(ctx, getVendorByID, id))
}

const getVendorByUserID = `SELECT ` + vendorColumns + ` FROM vendors WHERE user_id = $1`

func (q *Queries) GetVendorByUserID(ctx context.Context, userID uuid.UUID) (Vendor, error) {
	return scanVendor(q.db.QueryRow(ctx, getVendorByUserID, userID))
}

const listVendorsByIDs = `SELECT ` + vendorColumns + ` FROM vendors WHERE id = ANY($1::uuid[])`

func (q *Queries) ListVendorsByIDs(ctx context.Context, ids []uuid.UUID) ([]Vendor, error) {
	rows, err := q.db.Query(ctx, listVendorsByIDs, ids)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanVendor)
}

const createVendor = `INSERT INTO vendors (user_id, business_name, email, phone, address, lat, lng)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + vendorColumns

type CreateVendorParams struct {
	UserID       uuid.UUID     `json:"user_id"`
	BusinessName string        `json:"business_name"`
	Email        string        `json:"email"`
	Phone        pgtype.Text   `json:"phone"`
	Address      pgtype.Text   `json:"address"`
	Lat          pgtype.Float8 `json:"lat"`
	Lng          pgtype.Float8 `json:"lng"`
}

func (q *Queries) CreateVendor(ctx context.Context, arg CreateVendorParams) (Vendor, error) {
	return scanVendor(q.db.QueryRow(ctx, createVendor,
		arg.UserID,
		arg.BusinessName,
		arg.Email,
		arg.Phone,
		arg.Address,
		arg.Lat,
		arg.Lng,
	))
}

const updateVendorStripeAccount = `UPDATE vendors SET stripe_account_id = $2, updated_at = now()
WHERE id = $1
RETURNING ` + vendorColumns

type UpdateVendorStripeAccountParams struct {
	ID              uuid.UUID   `json:"id"`
	StripeAccountID pgtype.Text `json:"stripe_account_id"`
}

func (q *Queries) UpdateVendorStripeAccount(ctx context.Context, arg UpdateVendorStripeAccountParams) (Vendor, error) {
	return scanVendor(q.db.QueryRow(ctx, updateVendorStripeAccount, arg.ID, arg.StripeAccountID))
}

const updateVendorBoost = `UPDATE vendors SET boost_percentage = $2, updated_at = now()
WHERE id = $1
RETURNING ` + vendorColumns

type UpdateVendorBoostParams struct {
	ID              uuid.UUID      `json:"id"`
	BoostPercentage pgtype.Numeric `json:"boost_percentage"`
}

func (q *Queries) UpdateVendorBoost(ctx context.Context, arg UpdateVendorBoostParams) (Vendor, error) {
	return scanVendor(q.db.QueryRow(ctx, updateVendorBoost, arg.ID, arg.BoostPercentage))
}
