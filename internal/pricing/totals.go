package pricing

import (
	"errors"
	"fmt"

	"github.com/eventmarket/api/internal/enum"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownFeeType        = errors.New("unknown service fee type")
	ErrUnknownAdjustmentType = errors.New("unknown adjustment type")
	ErrUnknownAdjustmentMode = errors.New("unknown adjustment mode")
	ErrNegativeAdjustment    = errors.New("adjustment value must be >= 0")
)

var hundred = decimal.NewFromInt(100)

// TaxRateResolver returns the tax rate (0.08 for 8%) for an event location.
type TaxRateResolver interface {
	RateFor(location string) decimal.Decimal
}

// DeliveryPolicy derives a delivery fee from the distance to the event.
type DeliveryPolicy interface {
	FeeFor(svc Service, miles decimal.Decimal) decimal.Decimal
}

type Fees struct {
	ServiceFeePercentage decimal.Decimal `json:"serviceFeePercentage"`
	ServiceFeeFixed      decimal.Decimal `json:"serviceFeeFixed"`
	ServiceFeeType       string          `json:"serviceFeeType"`
}

// Adjustment is an admin-entered surcharge or discount. A nil Taxable counts
// as taxable.
type Adjustment struct {
	ID      string          `json:"id"`
	Label   string          `json:"label"`
	Type    string          `json:"type"`
	Mode    string          `json:"mode"`
	Value   decimal.Decimal `json:"value"`
	Taxable *bool           `json:"taxable,omitempty"`
}

func (a Adjustment) IsTaxable() bool {
	return a.Taxable == nil || *a.Taxable
}

// AdjustmentLine is an applied adjustment. Amount is negative for discounts.
type AdjustmentLine struct {
	ID      string          `json:"id"`
	Label   string          `json:"label"`
	Type    string          `json:"type"`
	Mode    string          `json:"mode"`
	Value   decimal.Decimal `json:"value"`
	Amount  decimal.Decimal `json:"amount"`
	Taxable bool            `json:"taxable"`
}

type Input struct {
	Services      []Service
	SelectedItems SelectedItems
	EventLocation string
	Fees          Fees
	Adjustments   []Adjustment
	// Distances holds miles from each service's vendor to the event, keyed
	// by service id.
	Distances map[string]decimal.Decimal
	// StoredDeliveryFee is the distance-derived fee persisted with an order.
	// It stands in for the policy when Distances is empty.
	StoredDeliveryFee  decimal.NullDecimal
	IsTaxExempt        bool
	IsServiceFeeWaived bool
}

type Totals struct {
	Subtotal             decimal.Decimal  `json:"subtotal"`
	ServiceFee           decimal.Decimal  `json:"serviceFee"`
	ServiceFeeRate       decimal.Decimal  `json:"serviceFeeRate"`
	ServiceFeeType       string           `json:"serviceFeeType"`
	DeliveryFee          decimal.Decimal  `json:"deliveryFee"`
	AdjustmentsTotal     decimal.Decimal  `json:"adjustmentsTotal"`
	AdjustmentsBreakdown []AdjustmentLine `json:"adjustmentsBreakdown"`
	TaxableBase          decimal.Decimal  `json:"taxableBase"`
	Tax                  decimal.Decimal  `json:"tax"`
	TaxRate              decimal.Decimal  `json:"taxRate"`
	Total                decimal.Decimal  `json:"total"`
	LineItems            []LineItem       `json:"lineItems"`
	IsTaxExempt          bool             `json:"isTaxExempt"`
	IsServiceFeeWaived   bool             `json:"isServiceFeeWaived"`
}

// Calculator aggregates line items into order totals. It holds no mutable
// state; the same Input always yields the same Totals.
type Calculator struct {
	tax      TaxRateResolver
	delivery DeliveryPolicy
	opts     Options
}

func NewCalculator(tax TaxRateResolver, delivery DeliveryPolicy, opts Options) *Calculator {
	return &Calculator{tax: tax, delivery: delivery, opts: opts}
}

// LineItems extracts the rows of every service in order.
func (c *Calculator) LineItems(services []Service, items SelectedItems) []LineItem {
	rows := []LineItem{}
	for _, svc := range services {
		rows = append(rows, Extract(svc, items, c.opts)...)
	}
	return rows
}

func (c *Calculator) Calculate(in Input) (Totals, error) {
	t := Totals{
		LineItems:          c.LineItems(in.Services, in.SelectedItems),
		IsTaxExempt:        in.IsTaxExempt,
		IsServiceFeeWaived: in.IsServiceFeeWaived,
		Subtotal:           decimal.Zero,
		AdjustmentsTotal:   decimal.Zero,
	}

	for _, row := range t.LineItems {
		t.Subtotal = t.Subtotal.Add(row.LineTotal)
	}

	fee, err := c.serviceFee(in, t.Subtotal)
	if err != nil {
		return Totals{}, err
	}
	t.ServiceFeeType = fee.feeType
	t.ServiceFeeRate = fee.rate
	t.ServiceFee = fee.amount

	t.DeliveryFee = c.deliveryFee(in)

	taxableAdjustments := decimal.Zero
	nonTaxableAdjustments := decimal.Zero
	t.AdjustmentsBreakdown = make([]AdjustmentLine, 0, len(in.Adjustments))
	for i, adj := range in.Adjustments {
		line, err := applyAdjustment(adj, t.Subtotal)
		if err != nil {
			return Totals{}, fmt.Errorf("adjustments[%d]: %w", i, err)
		}
		t.AdjustmentsBreakdown = append(t.AdjustmentsBreakdown, line)
		t.AdjustmentsTotal = t.AdjustmentsTotal.Add(line.Amount)
		if line.Taxable {
			taxableAdjustments = taxableAdjustments.Add(line.Amount)
		} else {
			nonTaxableAdjustments = nonTaxableAdjustments.Add(line.Amount)
		}
	}

	t.TaxableBase = t.Subtotal.Add(t.ServiceFee).Add(t.DeliveryFee).Add(taxableAdjustments)

	t.TaxRate = decimal.Zero
	if c.tax != nil {
		t.TaxRate = c.tax.RateFor(in.EventLocation)
	}
	t.Tax = decimal.Zero
	if !in.IsTaxExempt {
		t.Tax = roundCents(t.TaxableBase.Mul(t.TaxRate))
	}

	t.Total = t.TaxableBase.Add(t.Tax).Add(nonTaxableAdjustments)
	return t, nil
}

type serviceFee struct {
	feeType string
	rate    decimal.Decimal
	amount  decimal.Decimal
}

// serviceFee keeps the nominal rate even when the fee itself is waived.
func (c *Calculator) serviceFee(in Input, subtotal decimal.Decimal) (serviceFee, error) {
	f := serviceFee{feeType: in.Fees.ServiceFeeType, amount: decimal.Zero}
	if f.feeType == "" {
		f.feeType = enum.ServiceFeeTypePercentage
	}
	switch f.feeType {
	case enum.ServiceFeeTypePercentage:
		f.rate = in.Fees.ServiceFeePercentage
		f.amount = roundCents(subtotal.Mul(f.rate).Div(hundred))
	case enum.ServiceFeeTypeFixed:
		f.rate = in.Fees.ServiceFeeFixed
		f.amount = roundCents(f.rate)
	default:
		return serviceFee{}, fmt.Errorf("%w: %q", ErrUnknownFeeType, in.Fees.ServiceFeeType)
	}
	if in.IsServiceFeeWaived {
		f.amount = decimal.Zero
	}
	return f, nil
}

// deliveryFee uses explicit per-service fees when any are set and falls back
// to the distance policy otherwise.
func (c *Calculator) deliveryFee(in Input) decimal.Decimal {
	explicit := decimal.Zero
	for _, svc := range in.Services {
		explicit = explicit.Add(svc.DeliveryFee)
	}
	if !explicit.IsZero() {
		return roundCents(explicit)
	}
	if len(in.Distances) == 0 && in.StoredDeliveryFee.Valid {
		return roundCents(in.StoredDeliveryFee.Decimal)
	}
	if c.delivery == nil {
		return decimal.Zero
	}
	derived := decimal.Zero
	for _, svc := range in.Services {
		miles, ok := in.Distances[svc.ID]
		if !ok {
			continue
		}
		derived = derived.Add(c.delivery.FeeFor(svc, miles))
	}
	return roundCents(derived)
}

func applyAdjustment(adj Adjustment, subtotal decimal.Decimal) (AdjustmentLine, error) {
	if adj.Value.IsNegative() {
		return AdjustmentLine{}, ErrNegativeAdjustment
	}
	var amount decimal.Decimal
	switch adj.Type {
	case enum.AdjustmentTypePercentage:
		amount = subtotal.Mul(adj.Value).Div(hundred)
	case enum.AdjustmentTypeFixed:
		amount = adj.Value
	default:
		return AdjustmentLine{}, fmt.Errorf("%w: %q", ErrUnknownAdjustmentType, adj.Type)
	}
	switch adj.Mode {
	case enum.AdjustmentModeSurcharge, "":
	case enum.AdjustmentModeDiscount:
		amount = amount.Neg()
	default:
		return AdjustmentLine{}, fmt.Errorf("%w: %q", ErrUnknownAdjustmentMode, adj.Mode)
	}
	mode := adj.Mode
	if mode == "" {
		mode = enum.AdjustmentModeSurcharge
	}
	return AdjustmentLine{
		ID:      adj.ID,
		Label:   adj.Label,
		Type:    adj.Type,
		Mode:    mode,
		Value:   adj.Value,
		Amount:  roundCents(amount),
		Taxable: adj.IsTaxable(),
	}, nil
}
