package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const leadColumns = `id, company_name, contact_name, email, phone, source, status, notes, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var i Lead
	err := row.Scan(
		&i.ID,
		&i.CompanyName,
		&i.ContactName,
		&i.Email,
		&i.Phone,
		&i.Source,
		&i.Status,
		&i.Notes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createLead = `INSERT INTO leads (company_name, contact_name, email, phone, source, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + leadColumns

type CreateLeadParams struct {
	CompanyName string      `json:"company_name"`
	ContactName string      `json:"contact_name"`
	Email       string      `json:"email"`
	Phone       pgtype.Text `json:"phone"`
	Source      pgtype.Text `json:"source"`
	Status      string      `json:"status"`
	Notes       pgtype.Text `json:"notes"`
}

func (q *Queries) CreateLead(ctx context.Context, arg CreateLeadParams) (Lead, error) {
	return scanLead(q.db.QueryRow(ctx, createLead,
		arg.CompanyName,
		arg.ContactName,
		arg.Email,
		arg.Phone,
		arg.Source,
		arg.Status,
		arg.Notes,
	))
}

const getLeadByID = `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

func (q *Queries) GetLeadByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(q.db.QueryRow(ctx, getLeadByID, id))
}

const updateLead = `UPDATE leads
SET company_name = $2, contact_name = $3, email = $4, phone = $5, source = $6,
    status = $7, notes = $8, updated_at = now()
WHERE id = $1
RETURNING ` + leadColumns

type UpdateLeadParams struct {
	ID          uuid.UUID   `json:"id"`
	CompanyName string      `json:"company_name"`
	ContactName string      `json:"contact_name"`
	Email       string      `json:"email"`
	Phone       pgtype.Text `json:"phone"`
	Source      pgtype.Text `json:"source"`
	Status      string      `json:"status"`
	Notes       pgtype.Text `json:"notes"`
}

func (q *Queries) UpdateLead(ctx context.Context, arg UpdateLeadParams) (Lead, error) {
	return scanLead(q.db.QueryRow(ctx, updateLead,
		arg.ID,
		arg.CompanyName,
		arg.ContactName,
		arg.Email,
		arg.Phone,
		arg.Source,
		arg.Status,
		arg.Notes,
	))
}

const deleteLead = `DELETE FROM leads WHERE id = $1 RETURNING id`

func (q *Queries) DeleteLead(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteLead, id).Scan(&deleted)
	return deleted, err
}

const leadFilter = `($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR company_name ILIKE '%' || $2 || '%'
       OR contact_name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')`

const listLeads = `SELECT ` + leadColumns + ` FROM leads
WHERE ` + leadFilter + `
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

type ListLeadsParams struct {
	Status pgtype.Text `json:"status"`
	Search pgtype.Text `json:"search"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListLeads(ctx context.Context, arg ListLeadsParams) ([]Lead, error) {
	rows, err := q.db.Query(ctx, listLeads, arg.Status, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLead)
}

const countLeads = `SELECT count(*) FROM leads WHERE ` + leadFilter

type CountLeadsParams struct {
	Status pgtype.Text `json:"status"`
	Search pgtype.Text `json:"search"`
}

func (q *Queries) CountLeads(ctx context.Context, arg CountLeadsParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countLeads, arg.Status, arg.Search).Scan(&count)
	return count, err
}

const listAllLeads = `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC`

func (q *Queries) ListAllLeads(ctx context.Context) ([]Lead, error) {
	rows, err := q.db.Query(ctx, listAllLeads)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLead)
}

const listLeadsByEmailDomain = `SELECT ` + leadColumns + ` FROM leads
WHERE lower(split_part(email, '@', 2)) = lower($1)
  AND ($2::uuid IS NULL OR id <> $2)
ORDER BY created_at DESC`

type ListLeadsByEmailDomainParams struct {
	Domain    string      `json:"domain"`
	ExcludeID pgtype.UUID `json:"exclude_id"`
}

func (q *Queries) ListLeadsByEmailDomain(ctx context.Context, arg ListLeadsByEmailDomainParams) ([]Lead, error) {
	rows, err := q.db.Query(ctx, listLeadsByEmailDomain, arg.Domain, arg.ExcludeID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLead)
}

const updateLeadStatus = `UPDATE leads SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + leadColumns

type UpdateLeadStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateLeadStatus(ctx context.Context, arg UpdateLeadStatusParams) (Lead, error) {
	return scanLead(q.db.QueryRow(ctx, updateLeadStatus, arg.ID, arg.Status))
}
