package pricing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Source reports where resolved totals came from.
type Source string

const (
	SourceSnapshot Source = "snapshot"
	SourceLive     Source = "live"
)

type Overrides struct {
	IsTaxExempt        bool `json:"isTaxExempt"`
	IsServiceFeeWaived bool `json:"isServiceFeeWaived"`
}

// Snapshot is the frozen pricing stored on an invoice. Once present it is the
// source of truth for every monetary figure of that proposal.
type Snapshot struct {
	Subtotal             decimal.Decimal  `json:"subtotal"`
	ServiceFee           decimal.Decimal  `json:"serviceFee"`
	ServiceFeeRate       decimal.Decimal  `json:"serviceFeeRate"`
	ServiceFeeType       string           `json:"serviceFeeType"`
	DeliveryFee          decimal.Decimal  `json:"deliveryFee"`
	AdjustmentsTotal     decimal.Decimal  `json:"adjustmentsTotal"`
	AdjustmentsBreakdown []AdjustmentLine `json:"adjustmentsBreakdown"`
	Tax                  decimal.Decimal  `json:"tax"`
	TaxRate              decimal.Decimal  `json:"taxRate"`
	Total                decimal.Decimal  `json:"total"`
	LineItems            []LineItem       `json:"lineItems"`
	Overrides            Overrides        `json:"overrides"`
	ComputedAt           time.Time        `json:"computedAt"`
}

func NewSnapshot(t Totals, now time.Time) Snapshot {
	return Snapshot{
		Subtotal:             t.Subtotal,
		ServiceFee:           t.ServiceFee,
		ServiceFeeRate:       t.ServiceFeeRate,
		ServiceFeeType:       t.ServiceFeeType,
		DeliveryFee:          t.DeliveryFee,
		AdjustmentsTotal:     t.AdjustmentsTotal,
		AdjustmentsBreakdown: t.AdjustmentsBreakdown,
		Tax:                  t.Tax,
		TaxRate:              t.TaxRate,
		Total:                t.Total,
		LineItems:            t.LineItems,
		Overrides: Overrides{
			IsTaxExempt:        t.IsTaxExempt,
			IsServiceFeeWaived: t.IsServiceFeeWaived,
		},
		ComputedAt: now.UTC(),
	}
}

// Totals expands the snapshot back into Totals. The taxable base is derived
// from the stored components.
func (s Snapshot) Totals() Totals {
	base := s.Subtotal.Add(s.ServiceFee).Add(s.DeliveryFee)
	for _, adj := range s.AdjustmentsBreakdown {
		if adj.Taxable {
			base = base.Add(adj.Amount)
		}
	}
	return Totals{
		Subtotal:             s.Subtotal,
		ServiceFee:           s.ServiceFee,
		ServiceFeeRate:       s.ServiceFeeRate,
		ServiceFeeType:       s.ServiceFeeType,
		DeliveryFee:          s.DeliveryFee,
		AdjustmentsTotal:     s.AdjustmentsTotal,
		AdjustmentsBreakdown: s.AdjustmentsBreakdown,
		TaxableBase:          base,
		Tax:                  s.Tax,
		TaxRate:              s.TaxRate,
		Total:                s.Total,
		LineItems:            s.LineItems,
		IsTaxExempt:          s.Overrides.IsTaxExempt,
		IsServiceFeeWaived:   s.Overrides.IsServiceFeeWaived,
	}
}

// ParseSnapshot decodes a stored snapshot. Empty or null input means no
// snapshot was taken.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	if len(data) == 0 || string(data) == "null" || string(data) == "{}" {
		return nil, nil
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode pricing snapshot: %w", err)
	}
	return &s, nil
}

// TotalsCalculator is satisfied by *Calculator.
type TotalsCalculator interface {
	Calculate(in Input) (Totals, error)
}

// Reconciler picks between a stored snapshot and live calculation.
type Reconciler struct {
	calc TotalsCalculator
}

func NewReconciler(calc TotalsCalculator) *Reconciler {
	return &Reconciler{calc: calc}
}

// Resolve returns the snapshot's figures when one exists, without touching
// the calculator, and a live calculation otherwise.
func (r *Reconciler) Resolve(snapshot *Snapshot, in Input) (Totals, Source, error) {
	if snapshot != nil {
		return snapshot.Totals(), SourceSnapshot, nil
	}
	t, err := r.calc.Calculate(in)
	if err != nil {
		return Totals{}, SourceLive, err
	}
	return t, SourceLive, nil
}
