package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEarningsStore struct {
	vendor    database.Vendor
	vendorErr error
	orders    []database.Order
	arg       database.ListVendorOrdersParams
	invoices  map[uuid.UUID]database.Invoice
}

func (m *mockEarningsStore) GetVendorByID(ctx context.Context, id uuid.UUID) (database.Vendor, error) {
	return m.vendor, m.vendorErr
}

func (m *mockEarningsStore) ListVendorOrders(ctx context.Context, arg database.ListVendorOrdersParams) ([]database.Order, error) {
	m.arg = arg
	return m.orders, nil
}

func (m *mockEarningsStore) GetLatestInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error) {
	inv, ok := m.invoices[orderID]
	if !ok {
		return database.Invoice{}, pgx.ErrNoRows
	}
	return inv, nil
}

type zeroTax struct{}

func (zeroTax) RateFor(string) decimal.Decimal { return decimal.Zero }

func TestCommissionFor(t *testing.T) {
	got := CommissionFor(decimal.RequireFromString("1000"), decimal.NewFromInt(10), decimal.RequireFromString("2.5"))
	assert.True(t, got.Equal(decimal.NewFromInt(125)), got.String())
}

func TestVendorEarnings(t *testing.T) {
	vendorID := uuid.New()
	otherVendor := uuid.New()
	services := `[
		{"id":"v1","type":"venue","name":"Loft","vendor_id":"` + vendorID.String() + `","price":"1,000.00","price_type":"flat","quantity":1},
		{"id":"v2","type":"venue","name":"Garden","vendor_id":"` + otherVendor.String() + `","price":"800","price_type":"flat","quantity":1}
	]`
	store := &mockEarningsStore{
		vendor: database.Vendor{
			ID:              vendorID,
			CommissionRate:  decimalToNumeric(decimal.NewFromInt(10)),
			BoostPercentage: decimalToNumeric(decimal.NewFromInt(5)),
		},
		orders: []database.Order{
			{ID: uuid.New(), OrderNumber: "ORD-1", Status: "confirmed", SelectedServices: []byte(services)},
			{ID: uuid.New(), OrderNumber: "ORD-2", Status: "completed", SelectedServices: []byte(`not json`)},
		},
	}
	calc := pricing.NewCalculator(zeroTax{}, nil, pricing.Options{})
	svc := NewEarningsService(store, calc, nil)

	e, err := svc.VendorEarnings(context.Background(), vendorID)
	require.NoError(t, err)

	assert.Equal(t, vendorID.String(), store.arg.VendorID)
	assert.Equal(t, []string{"confirmed", "completed"}, store.arg.Statuses)
	require.Len(t, e.Orders, 1)
	assert.True(t, e.Gross.Equal(decimal.NewFromInt(1000)), e.Gross.String())
	assert.True(t, e.Commission.Equal(decimal.NewFromInt(150)), e.Commission.String())
	assert.True(t, e.Net.Equal(decimal.NewFromInt(850)), e.Net.String())
}

func TestVendorEarnings_UnknownVendor(t *testing.T) {
	svc := NewEarningsService(&mockEarningsStore{vendorErr: pgx.ErrNoRows}, nil, nil)
	_, err := svc.VendorEarnings(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrVendorNotFound))
}

func TestVendorEarnings_UsesInvoiceSnapshot(t *testing.T) {
	vendorID := uuid.New()
	otherVendor := uuid.New()
	orderID := uuid.New()
	services := `[{"id":"st1","type":"staffing","name":"Event Staff","vendor_id":"` + vendorID.String() + `","price":"30",
		"service_details":{"staff":{"roles":[{"id":"server","name":"Server"}]}}}]`
	items := `{"server":2,"server_duration":2}`

	snap, err := json.Marshal(pricing.Snapshot{
		Subtotal: decimal.NewFromInt(290),
		LineItems: []pricing.LineItem{
			{ServiceID: "st1", VendorID: vendorID.String(), Quantity: decimal.NewFromInt(2), Duration: decimal.NewFromInt(4),
				UnitPrice: decimal.NewFromInt(30), LineTotal: decimal.NewFromInt(240)},
			{ServiceID: "v9", VendorID: otherVendor.String(), LineTotal: decimal.NewFromInt(50)},
		},
	})
	require.NoError(t, err)

	store := &mockEarningsStore{
		vendor: database.Vendor{ID: vendorID, CommissionRate: decimalToNumeric(decimal.NewFromInt(10))},
		orders: []database.Order{{
			ID: orderID, OrderNumber: "ORD-7", Status: "confirmed",
			SelectedServices: []byte(services), SelectedItems: []byte(items),
		}},
		invoices: map[uuid.UUID]database.Invoice{orderID: {OrderID: orderID, PricingSnapshot: snap}},
	}
	// Minimum hours raised after the proposal was priced at four hours.
	calc := pricing.NewCalculator(zeroTax{}, nil, pricing.Options{StaffMinimumHours: decimal.NewFromInt(6)})
	svc := NewEarningsService(store, calc, nil)

	e, err := svc.VendorEarnings(context.Background(), vendorID)
	require.NoError(t, err)
	require.Len(t, e.Orders, 1)
	assert.Equal(t, pricing.SourceSnapshot, e.Orders[0].Source)
	assert.True(t, e.Gross.Equal(decimal.NewFromInt(240)), e.Gross.String())
	assert.True(t, e.Commission.Equal(decimal.NewFromInt(24)), e.Commission.String())

	// Without an invoice the same order is priced live at the new minimum.
	store.invoices = nil
	e, err = svc.VendorEarnings(context.Background(), vendorID)
	require.NoError(t, err)
	require.Len(t, e.Orders, 1)
	assert.Equal(t, pricing.SourceLive, e.Orders[0].Source)
	assert.True(t, e.Gross.Equal(decimal.NewFromInt(360)), e.Gross.String())
}
