package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventmarket/api/internal/database"
	"github.com/eventmarket/api/internal/delivery"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNoServices = errors.New("at least one service is required")

// VendorLocator resolves vendor coordinates for distance-based delivery fees.
type VendorLocator interface {
	ListVendorsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.Vendor, error)
}

// QuoteRequest is an unsaved selection as posted by the booking flow or the
// proposal editor.
type QuoteRequest struct {
	Services           []pricing.RawService
	SelectedItems      pricing.SelectedItems
	EventLocation      string
	EventPoint         *delivery.Point
	Adjustments        []pricing.Adjustment
	IsTaxExempt        bool
	IsServiceFeeWaived bool
}

type Quote struct {
	Services []pricing.Service
	Totals   pricing.Totals
}

// Quoter is the single pricing entry point shared by booking previews and
// proposal persistence.
type Quoter struct {
	calc    pricing.TotalsCalculator
	fees    pricing.Fees
	vendors VendorLocator
}

func NewQuoter(calc pricing.TotalsCalculator, fees pricing.Fees, vendors VendorLocator) *Quoter {
	return &Quoter{calc: calc, fees: fees, vendors: vendors}
}

func (q *Quoter) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if len(req.Services) == 0 {
		return nil, ErrNoServices
	}

	services := pricing.NormalizeServices(req.Services)
	if err := pricing.Validate(services, req.SelectedItems); err != nil {
		return nil, err
	}

	distances, err := q.distances(ctx, services, req.EventPoint)
	if err != nil {
		return nil, err
	}

	totals, err := q.calc.Calculate(pricing.Input{
		Services:           services,
		SelectedItems:      req.SelectedItems,
		EventLocation:      req.EventLocation,
		Fees:               q.fees,
		Adjustments:        req.Adjustments,
		Distances:          distances,
		IsTaxExempt:        req.IsTaxExempt,
		IsServiceFeeWaived: req.IsServiceFeeWaived,
	})
	if err != nil {
		return nil, err
	}
	return &Quote{Services: services, Totals: totals}, nil
}

func (q *Quoter) distances(ctx context.Context, services []pricing.Service, event *delivery.Point) (map[string]decimal.Decimal, error) {
	if event == nil || q.vendors == nil {
		return nil, nil
	}

	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, svc := range services {
		id, err := uuid.Parse(svc.VendorID)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	vendors, err := q.vendors.ListVendorsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}

	points := make(map[string]delivery.Point, len(vendors))
	for _, v := range vendors {
		if v.Lat.Valid && v.Lng.Valid {
			points[v.ID.String()] = delivery.Point{Lat: v.Lat.Float64, Lng: v.Lng.Float64}
		}
	}
	return delivery.Distances(services, points, *event), nil
}
