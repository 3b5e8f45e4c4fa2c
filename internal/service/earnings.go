package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/enum"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrVendorNotFound = errors.New("vendor not found")

var earningStatuses = []string{enum.OrderStatusConfirmed, enum.OrderStatusCompleted}

type EarningsStore interface {
	GetVendorByID(ctx context.Context, id uuid.UUID) (database.Vendor, error)
	ListVendorOrders(ctx context.Context, arg database.ListVendorOrdersParams) ([]database.Order, error)
	GetLatestInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (database.Invoice, error)
}

// LineItemExtractor is satisfied by *pricing.Calculator.
type LineItemExtractor interface {
	LineItems(services []pricing.Service, items pricing.SelectedItems) []pricing.LineItem
}

type OrderEarning struct {
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	EventName   string          `json:"eventName"`
	Status      string          `json:"status"`
	Gross       decimal.Decimal `json:"gross"`
	Source      pricing.Source  `json:"source"`
}

type Earnings struct {
	VendorID        uuid.UUID       `json:"vendorId"`
	Gross           decimal.Decimal `json:"gross"`
	CommissionRate  decimal.Decimal `json:"commissionRate"`
	BoostPercentage decimal.Decimal `json:"boostPercentage"`
	Commission      decimal.Decimal `json:"commission"`
	Net             decimal.Decimal `json:"net"`
	Orders          []OrderEarning  `json:"orders"`
}

type EarningsService struct {
	store  EarningsStore
	lines  LineItemExtractor
	logger *zap.Logger
}

func NewEarningsService(store EarningsStore, lines LineItemExtractor, logger *zap.Logger) *EarningsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EarningsService{store: store, lines: lines, logger: logger}
}

// VendorEarnings sums the vendor's line totals over confirmed and completed
// orders and applies commission plus boost. Orders priced by a proposal are
// read from its snapshot so later catalog or config changes never rewrite
// what was charged.
func (s *EarningsService) VendorEarnings(ctx context.Context, vendorID uuid.UUID) (*Earnings, error) {
	vendor, err := s.store.GetVendorByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("get vendor: %w", err)
	}

	orders, err := s.store.ListVendorOrders(ctx, database.ListVendorOrdersParams{
		VendorID: vendorID.String(),
		Statuses: earningStatuses,
	})
	if err != nil {
		return nil, fmt.Errorf("list vendor orders: %w", err)
	}

	e := &Earnings{
		VendorID:        vendorID,
		Gross:           decimal.Zero,
		CommissionRate:  numericToDecimal(vendor.CommissionRate),
		BoostPercentage: numericToDecimal(vendor.BoostPercentage),
		Orders:          []OrderEarning{},
	}

	for _, o := range orders {
		gross, source, err := s.orderGross(ctx, o, vendorID.String())
		if err != nil {
			s.logger.Warn("skipping unreadable order in earnings",
				zap.String("order_id", o.ID.String()), zap.Error(err))
			continue
		}
		e.Gross = e.Gross.Add(gross)
		e.Orders = append(e.Orders, OrderEarning{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			EventName:   o.EventName,
			Status:      o.Status,
			Gross:       gross,
			Source:      source,
		})
	}

	e.Gross = e.Gross.Round(2)
	e.Commission = CommissionFor(e.Gross, e.CommissionRate, e.BoostPercentage)
	e.Net = e.Gross.Sub(e.Commission)
	return e, nil
}

// CommissionFor returns gross × (rate + boost) / 100, rounded to cents.
func CommissionFor(gross, rate, boost decimal.Decimal) decimal.Decimal {
	return gross.Mul(rate.Add(boost)).Div(decimal.NewFromInt(100)).Round(2)
}

func (s *EarningsService) orderGross(ctx context.Context, o database.Order, vendorID string) (decimal.Decimal, pricing.Source, error) {
	inv, err := s.store.GetLatestInvoiceByOrder(ctx, o.ID)
	switch {
	case err == nil:
		snap, perr := pricing.ParseSnapshot(inv.PricingSnapshot)
		if perr != nil {
			s.logger.Warn("unreadable pricing snapshot, using live pricing",
				zap.String("order_id", o.ID.String()), zap.Error(perr))
		} else if snap != nil {
			return vendorTotal(snap.LineItems, vendorID), pricing.SourceSnapshot, nil
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return decimal.Zero, "", fmt.Errorf("get latest invoice: %w", err)
	}

	gross, err := s.liveGross(o, vendorID)
	return gross, pricing.SourceLive, err
}

func (s *EarningsService) liveGross(o database.Order, vendorID string) (decimal.Decimal, error) {
	services, err := pricing.DecodeServices(o.SelectedServices)
	if err != nil {
		return decimal.Zero, err
	}
	var items pricing.SelectedItems
	if len(o.SelectedItems) > 0 {
		if err := json.Unmarshal(o.SelectedItems, &items); err != nil {
			return decimal.Zero, fmt.Errorf("decode selected items: %w", err)
		}
	}

	own := services[:0]
	for _, svc := range services {
		if svc.VendorID == vendorID {
			own = append(own, svc)
		}
	}
	return vendorTotal(s.lines.LineItems(own, items), ""), nil
}

// vendorTotal sums line totals, restricted to vendorID unless it is empty.
func vendorTotal(lines []pricing.LineItem, vendorID string) decimal.Decimal {
	total := decimal.Zero
	for _, li := range lines {
		if vendorID == "" || li.VendorID == vendorID {
			total = total.Add(li.LineTotal)
		}
	}
	return total
}
