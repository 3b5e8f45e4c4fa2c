package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const invoiceColumns = `id, invoice_number, order_id, client_name, client_email, client_phone,
client_company, status, token, pricing_snapshot, notes, client_feedback, pdf_url,
payment_intent_id, sent_at, responded_at, paid_at, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.InvoiceNumber,
		&i.OrderID,
		&i.ClientName,
		&i.ClientEmail,
		&i.ClientPhone,
		&i.ClientCompany,
		&i.Status,
		&i.Token,
		&i.PricingSnapshot,
		&i.Notes,
		&i.ClientFeedback,
		&i.PdfUrl,
		&i.PaymentIntentID,
		&i.SentAt,
		&i.RespondedAt,
		&i.PaidAt,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createInvoice = `INSERT INTO invoices (
    invoice_number, order_id, client_name, client_email, client_phone, client_company,
    pricing_snapshot, notes, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + invoiceColumns

type CreateInvoiceParams struct {
	InvoiceNumber   string      `json:"invoice_number"`
	OrderID         uuid.UUID   `json:"order_id"`
	ClientName      string      `json:"client_name"`
	ClientEmail     string      `json:"client_email"`
	ClientPhone     pgtype.Text `json:"client_phone"`
	ClientCompany   pgtype.Text `json:"client_company"`
	PricingSnapshot []byte      `json:"pricing_snapshot"`
	Notes           pgtype.Text `json:"notes"`
	CreatedBy       uuid.UUID   `json:"created_by"`
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, createInvoice,
		arg.InvoiceNumber,
		arg.OrderID,
		arg.ClientName,
		arg.ClientEmail,
		arg.ClientPhone,
		arg.ClientCompany,
		arg.PricingSnapshot,
		arg.Notes,
		arg.CreatedBy,
	))
}

const getInvoiceByID = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`

func (q *Queries) GetInvoiceByID(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceByID, id))
}

const getInvoiceForUpdate = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`

func (q *Queries) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceForUpdate, id))
}

const getInvoiceByToken = `SELECT ` + invoiceColumns + ` FROM invoices WHERE token = $1`

func (q *Queries) GetInvoiceByToken(ctx context.Context, token uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceByToken, token))
}

const getLatestInvoiceByOrder = `SELECT ` + invoiceColumns + ` FROM invoices
WHERE order_id = $1
ORDER BY created_at DESC
LIMIT 1`

func (q *Queries) GetLatestInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getLatestInvoiceByOrder, orderID))
}

const listInvoices = `SELECT ` + invoiceColumns + ` FROM invoices
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListInvoicesParams struct {
	Status pgtype.Text `json:"status"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListInvoices(ctx context.Context, arg ListInvoicesParams) ([]Invoice, error) {
	rows, err := q.db.Query(ctx, listInvoices, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanInvoice)
}

const countInvoices = `SELECT count(*) FROM invoices WHERE ($1::text IS NULL OR status = $1)`

func (q *Queries) CountInvoices(ctx context.Context, status pgtype.Text) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countInvoices, status).Scan(&count)
	return count, err
}

const updateInvoiceDetails = `UPDATE invoices
SET client_name = $2, client_email = $3, client_phone = $4, client_company = $5,
    notes = $6, pricing_snapshot = $7, updated_at = now()
WHERE id = $1
RETURNING ` + invoiceColumns

type UpdateInvoiceDetailsParams struct {
	ID              uuid.UUID   `json:"id"`
	ClientName      string      `json:"client_name"`
	ClientEmail     string      `json:"client_email"`
	ClientPhone     pgtype.Text `json:"client_phone"`
	ClientCompany   pgtype.Text `json:"client_company"`
	Notes           pgtype.Text `json:"notes"`
	PricingSnapshot []byte      `json:"pricing_snapshot"`
}

func (q *Queries) UpdateInvoiceDetails(ctx context.Context, arg UpdateInvoiceDetailsParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, updateInvoiceDetails,
		arg.ID,
		arg.ClientName,
		arg.ClientEmail,
		arg.ClientPhone,
		arg.ClientCompany,
		arg.Notes,
		arg.PricingSnapshot,
	))
}

const transitionInvoice = `UPDATE invoices
SET status = $3,
    client_feedback = COALESCE($4, client_feedback),
    sent_at = CASE WHEN $3 = 'sent' THEN now() ELSE sent_at END,
    responded_at = CASE WHEN $3 IN ('accepted', 'declined', 'revision_requested') THEN now() ELSE responded_at END,
    paid_at = CASE WHEN $3 = 'paid' THEN now() ELSE paid_at END,
    updated_at = now()
WHERE id = $1 AND status = ANY($2::text[])
RETURNING ` + invoiceColumns

type TransitionInvoiceParams struct {
	ID             uuid.UUID   `json:"id"`
	FromStatuses   []string    `json:"from_statuses"`
	Status         string      `json:"status"`
	ClientFeedback pgtype.Text `json:"client_feedback"`
}

// TransitionInvoice moves an invoice to Status only when its current status
// is one of FromStatuses. It returns pgx.ErrNoRows when the guard fails.
func (q *Queries) TransitionInvoice(ctx context.Context, arg TransitionInvoiceParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, transitionInvoice,
		arg.ID,
		arg.FromStatuses,
		arg.Status,
		arg.ClientFeedback,
	))
}

const setInvoicePaymentIntent = `UPDATE invoices SET payment_intent_id = $2, updated_at = now()
WHERE id = $1
RETURNING ` + invoiceColumns

type SetInvoicePaymentIntentParams struct {
	ID              uuid.UUID   `json:"id"`
	PaymentIntentID pgtype.Text `json:"payment_intent_id"`
}

func (q *Queries) SetInvoicePaymentIntent(ctx context.Context, arg SetInvoicePaymentIntentParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, setInvoicePaymentIntent, arg.ID, arg.PaymentIntentID))
}

const getInvoiceByPaymentIntent = `SELECT ` + invoiceColumns + ` FROM invoices
WHERE payment_intent_id = $1 FOR UPDATE`

func (q *Queries) GetInvoiceByPaymentIntent(ctx context.Context, paymentIntentID string) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, getInvoiceByPaymentIntent, paymentIntentID))
}

const setInvoicePdfUrl = `UPDATE invoices SET pdf_url = $2, updated_at = now()
WHERE id = $1
RETURNING ` + invoiceColumns

type SetInvoicePdfUrlParams struct {
	ID     uuid.UUID   `json:"id"`
	PdfUrl pgtype.Text `json:"pdf_url"`
}

func (q *Queries) SetInvoicePdfUrl(ctx context.Context, arg SetInvoicePdfUrlParams) (Invoice, error) {
	return scanInvoice(q.db.QueryRow(ctx, setInvoicePdfUrl, arg.ID, arg.PdfUrl))
}
