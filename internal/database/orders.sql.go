package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, host_id, event_name, event_date, event_location, guest_count,
status, selected_services, selected_items, custom_adjustments, is_tax_exempt,
is_service_fee_waived, subtotal, service_fee, delivery_fee, adjustments_total, tax, total,
created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.HostID,
		&i.EventName,
		&i.EventDate,
		&i.EventLocation,
		&i.GuestCount,
		&i.Status,
		&i.SelectedServices,
		&i.SelectedItems,
		&i.CustomAdjustments,
		&i.IsTaxExempt,
		&i.IsServiceFeeWaived,
		&i.Subtotal,
		&i.ServiceFee,
		&i.DeliveryFee,
		&i.AdjustmentsTotal,
		&i.Tax,
		&i.Total,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `INSERT INTO orders (
    order_number, host_id, event_name, event_date, event_location, guest_count,
    selected_services, selected_items, custom_adjustments, is_tax_exempt, is_service_fee_waived,
    subtotal, service_fee, delivery_fee, adjustments_total, tax, total, created_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber        string             `json:"order_number"`
	HostID             pgtype.UUID        `json:"host_id"`
	EventName          string             `json:"event_name"`
	EventDate          pgtype.Timestamptz `json:"event_date"`
	EventLocation      string             `json:"event_location"`
	GuestCount         int32              `json:"guest_count"`
	SelectedServices   []byte             `json:"selected_services"`
	SelectedItems      []byte             `json:"selected_items"`
	CustomAdjustments  []byte             `json:"custom_adjustments"`
	IsTaxExempt        bool               `json:"is_tax_exempt"`
	IsServiceFeeWaived bool               `json:"is_service_fee_waived"`
	Subtotal           pgtype.Numeric     `json:"subtotal"`
	ServiceFee         pgtype.Numeric     `json:"service_fee"`
	DeliveryFee        pgtype.Numeric     `json:"delivery_fee"`
	AdjustmentsTotal   pgtype.Numeric     `json:"adjustments_total"`
	Tax                pgtype.Numeric     `json:"tax"`
	Total              pgtype.Numeric     `json:"total"`
	CreatedBy          uuid.UUID          `json:"created_by"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.HostID,
		arg.EventName,
		arg.EventDate,
		arg.EventLocation,
		arg.GuestCount,
		arg.SelectedServices,
		arg.SelectedItems,
		arg.CustomAdjustments,
		arg.IsTaxExempt,
		arg.IsServiceFeeWaived,
		arg.Subtotal,
		arg.ServiceFee,
		arg.DeliveryFee,
		arg.AdjustmentsTotal,
		arg.Tax,
		arg.Total,
		arg.CreatedBy,
	))
}

const updateOrderPricing = `UPDATE orders
SET event_name = $2, event_date = $3, event_location = $4, guest_count = $5,
    selected_services = $6, selected_items = $7, custom_adjustments = $8,
    is_tax_exempt = $9, is_service_fee_waived = $10,
    subtotal = $11, service_fee = $12, delivery_fee = $13, adjustments_total = $14,
    tax = $15, total = $16, updated_at = now()
WHERE id = $1 AND status IN ('pending', 'confirmed')
RETURNING ` + orderColumns

type UpdateOrderPricingParams struct {
	ID                 uuid.UUID          `json:"id"`
	EventName          string             `json:"event_name"`
	EventDate          pgtype.Timestamptz `json:"event_date"`
	EventLocation      string             `json:"event_location"`
	GuestCount         int32              `json:"guest_count"`
	SelectedServices   []byte             `json:"selected_services"`
	SelectedItems      []byte             `json:"selected_items"`
	CustomAdjustments  []byte             `json:"custom_adjustments"`
	IsTaxExempt        bool               `json:"is_tax_exempt"`
	IsServiceFeeWaived bool               `json:"is_service_fee_waived"`
	Subtotal           pgtype.Numeric     `json:"subtotal"`
	ServiceFee         pgtype.Numeric     `json:"service_fee"`
	DeliveryFee        pgtype.Numeric     `json:"delivery_fee"`
	AdjustmentsTotal   pgtype.Numeric     `json:"adjustments_total"`
	Tax                pgtype.Numeric     `json:"tax"`
	Total              pgtype.Numeric     `json:"total"`
}

// UpdateOrderPricing only touches orders that have not started; it returns
// pgx.ErrNoRows otherwise.
func (q *Queries) UpdateOrderPricing(ctx context.Context, arg UpdateOrderPricingParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderPricing,
		arg.ID,
		arg.EventName,
		arg.EventDate,
		arg.EventLocation,
		arg.GuestCount,
		arg.SelectedServices,
		arg.SelectedItems,
		arg.CustomAdjustments,
		arg.IsTaxExempt,
		arg.IsServiceFeeWaived,
		arg.Subtotal,
		arg.ServiceFee,
		arg.DeliveryFee,
		arg.AdjustmentsTotal,
		arg.Tax,
		arg.Total,
	))
}

const getOrderByID = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrderByID(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByID, id))
}

const getOrderForUpdate = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const orderFilter = `($1::text IS NULL OR status = $1)
  AND ($2::uuid IS NULL OR host_id = $2)`

const listOrders = `SELECT ` + orderColumns + ` FROM orders
WHERE ` + orderFilter + `
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

type ListOrdersParams struct {
	Status pgtype.Text `json:"status"`
	HostID pgtype.UUID `json:"host_id"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.HostID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOrder)
}

const countOrders = `SELECT count(*) FROM orders WHERE ` + orderFilter

type CountOrdersParams struct {
	Status pgtype.Text `json:"status"`
	HostID pgtype.UUID `json:"host_id"`
}

func (q *Queries) CountOrders(ctx context.Context, arg CountOrdersParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countOrders, arg.Status, arg.HostID).Scan(&count)
	return count, err
}

const updateOrderStatus = `UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID       uuid.UUID `json:"id"`
	Status   string    `json:"status"`
	Status_2 string    `json:"status_2"`
}

// UpdateOrderStatus only applies when the order is still in Status_2.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.Status_2))
}

const listVendorOrders = `SELECT ` + orderColumns + ` FROM orders
WHERE selected_services @> jsonb_build_array(jsonb_build_object('vendor_id', $1::text))
  AND status = ANY($2::text[])
ORDER BY created_at DESC`

type ListVendorOrdersParams struct {
	VendorID string   `json:"vendor_id"`
	Statuses []string `json:"statuses"`
}

// ListVendorOrders returns orders with at least one service from the vendor.
func (q *Queries) ListVendorOrders(ctx context.Context, arg ListVendorOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listVendorOrders, arg.VendorID, arg.Statuses)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOrder)
}

const upsertOrderV2 = `INSERT INTO orders_v2 (order_id, order_number, status, vendor_ids, subtotal, total)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (order_id) DO UPDATE
SET order_number = EXCLUDED.order_number,
    status = EXCLUDED.status,
    vendor_ids = EXCLUDED.vendor_ids,
    subtotal = EXCLUDED.subtotal,
    total = EXCLUDED.total,
    synced_at = now()`

type UpsertOrderV2Params struct {
	OrderID     uuid.UUID      `json:"order_id"`
	OrderNumber string         `json:"order_number"`
	Status      string         `json:"status"`
	VendorIds   []uuid.UUID    `json:"vendor_ids"`
	Subtotal    pgtype.Numeric `json:"subtotal"`
	Total       pgtype.Numeric `json:"total"`
}

func (q *Queries) UpsertOrderV2(ctx context.Context, arg UpsertOrderV2Params) error {
	_, err := q.db.Exec(ctx, upsertOrderV2,
		arg.OrderID,
		arg.OrderNumber,
		arg.Status,
		arg.VendorIds,
		arg.Subtotal,
		arg.Total,
	)
	return err
}
