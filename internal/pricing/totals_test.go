package pricing_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/eventmarket/api/internal/enum"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRate decimal.Decimal

func (r fixedRate) RateFor(string) decimal.Decimal { return decimal.Decimal(r) }

type perMile decimal.Decimal

func (p perMile) FeeFor(_ pricing.Service, miles decimal.Decimal) decimal.Decimal {
	return decimal.Decimal(p).Mul(miles)
}

func boolPtr(b bool) *bool { return &b }

func newCalc() *pricing.Calculator {
	return pricing.NewCalculator(fixedRate(d("0.08")), perMile(d("1.5")), defaultOpts)
}

func singleItemInput() pricing.Input {
	return pricing.Input{
		Services: []pricing.Service{{
			ID:   "cat1",
			Type: enum.ServiceTypeCatering,
			Details: &pricing.CateringDetails{MenuItems: []pricing.MenuItem{
				{ID: "m1", Name: "Menu item", Price: d("10")},
			}},
		}},
		SelectedItems: pricing.SelectedItems{"m1": d("2")},
		EventLocation: "1 Main St, Austin, TX 78701",
		Fees: pricing.Fees{
			ServiceFeeType:       enum.ServiceFeeTypePercentage,
			ServiceFeePercentage: d("5"),
		},
	}
}

func TestCalculate_EndToEnd(t *testing.T) {
	totals, err := newCalc().Calculate(singleItemInput())
	require.NoError(t, err)

	assert.True(t, totals.Subtotal.Equal(d("20")), totals.Subtotal.String())
	assert.True(t, totals.ServiceFee.Equal(d("1")), totals.ServiceFee.String())
	assert.True(t, totals.DeliveryFee.IsZero())
	assert.True(t, totals.TaxableBase.Equal(d("21")), totals.TaxableBase.String())
	assert.True(t, totals.Tax.Equal(d("1.68")), totals.Tax.String())
	assert.True(t, totals.Total.Equal(d("22.68")), totals.Total.String())
	assert.Len(t, totals.LineItems, 1)
}

func TestCalculate_Idempotent(t *testing.T) {
	in := singleItemInput()
	in.Adjustments = []pricing.Adjustment{
		{ID: "a1", Label: "Rush", Type: enum.AdjustmentTypePercentage, Mode: enum.AdjustmentModeSurcharge, Value: d("7.5")},
	}
	in.Distances = map[string]decimal.Decimal{"cat1": d("3.3")}

	first, err := newCalc().Calculate(in)
	require.NoError(t, err)
	second, err := newCalc().Calculate(in)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))
}

func TestCalculate_TaxExempt(t *testing.T) {
	in := singleItemInput()
	in.IsTaxExempt = true
	in.Adjustments = []pricing.Adjustment{
		{ID: "a1", Type: enum.AdjustmentTypeFixed, Mode: enum.AdjustmentModeSurcharge, Value: d("50")},
	}

	totals, err := newCalc().Calculate(in)
	require.NoError(t, err)

	assert.True(t, totals.Tax.IsZero())
	assert.True(t, totals.TaxRate.Equal(d("0.08")))
	assert.True(t, totals.Total.Equal(d("71")))
}

func TestCalculate_ServiceFeeWaivedKeepsRate(t *testing.T) {
	in := singleItemInput()
	in.IsServiceFeeWaived = true

	totals, err := newCalc().Calculate(in)
	require.NoError(t, err)

	assert.True(t, totals.ServiceFee.IsZero())
	assert.True(t, totals.ServiceFeeRate.Equal(d("5")))
	assert.Equal(t, enum.ServiceFeeTypePercentage, totals.ServiceFeeType)
	assert.True(t, totals.Total.Equal(d("21.6")), totals.Total.String())
}

func TestCalculate_FixedServiceFee(t *testing.T) {
	in := singleItemInput()
	in.Fees = pricing.Fees{ServiceFeeType: enum.ServiceFeeTypeFixed, ServiceFeeFixed: d("15")}

	totals, err := newCalc().Calculate(in)
	require.NoError(t, err)
	assert.True(t, totals.ServiceFee.Equal(d("15")))
}

func TestCalculate_AdjustmentsTaxability(t *testing.T) {
	in := singleItemInput()
	in.Adjustments = []pricing.Adjustment{
		{ID: "disc", Type: enum.AdjustmentTypePercentage, Mode: enum.AdjustmentModeDiscount, Value: d("10")},
		{ID: "tip", Type: enum.AdjustmentTypeFixed, Mode: enum.AdjustmentModeSurcharge, Value: d("5"), Taxable: boolPtr(false)},
	}

	totals, err := newCalc().Calculate(in)
	require.NoError(t, err)

	require.Len(t, totals.AdjustmentsBreakdown, 2)
	assert.True(t, totals.AdjustmentsBreakdown[0].Amount.Equal(d("-2")))
	assert.False(t, totals.AdjustmentsBreakdown[1].Taxable)
	assert.True(t, totals.AdjustmentsTotal.Equal(d("3")))
	// taxable base 20 + 1 - 2 = 19, tax 1.52, plus the untaxed tip
	assert.True(t, totals.TaxableBase.Equal(d("19")))
	assert.True(t, totals.Tax.Equal(d("1.52")))
	assert.True(t, totals.Total.Equal(d("25.52")))
}

func TestCalculate_DeliveryFee(t *testing.T) {
	in := singleItemInput()
	in.Distances = map[string]decimal.Decimal{"cat1": d("4")}

	totals, err := newCalc().Calculate(in)
	require.NoError(t, err)
	assert.True(t, totals.DeliveryFee.Equal(d("6")))

	in.Services[0].DeliveryFee = d("25")
	totals, err = newCalc().Calculate(in)
	require.NoError(t, err)
	assert.True(t, totals.DeliveryFee.Equal(d("25")))
}

func TestCalculate_StoredDeliveryFee(t *testing.T) {
	in := singleItemInput()
	in.StoredDeliveryFee = decimal.NewNullDecimal(d("18.5"))

	totals, err := newCalc().Calculate(in)
	require.NoError(t, err)
	assert.True(t, totals.DeliveryFee.Equal(d("18.5")), totals.DeliveryFee.String())

	// Fresh distances take precedence over the stored fee.
	in.Distances = map[string]decimal.Decimal{"cat1": d("4")}
	totals, err = newCalc().Calculate(in)
	require.NoError(t, err)
	assert.True(t, totals.DeliveryFee.Equal(d("6")), totals.DeliveryFee.String())
}

func TestCalculate_InvariantHolds(t *testing.T) {
	in := singleItemInput()
	in.SelectedItems["m1"] = d("3")
	in.Services[0].Details.(*pricing.CateringDetails).MenuItems[0].Price = d("13.33")
	in.Fees.ServiceFeePercentage = d("4.75")
	in.Distances = map[string]decimal.Decimal{"cat1": d("2.17")}
	in.Adjustments = []pricing.Adjustment{
		{ID: "x", Type: enum.AdjustmentTypePercentage, Mode: enum.AdjustmentModeDiscount, Value: d("3.3")},
		{ID: "y", Type: enum.AdjustmentTypeFixed, Mode: enum.AdjustmentModeSurcharge, Value: d("1.11"), Taxable: boolPtr(false)},
	}

	tt, err := newCalc().Calculate(in)
	require.NoError(t, err)

	sum := tt.Subtotal.Add(tt.ServiceFee).Add(tt.DeliveryFee).Add(tt.AdjustmentsTotal).Add(tt.Tax)
	assert.True(t, tt.Total.Equal(sum), "total %s != %s", tt.Total, sum)
	assert.True(t, tt.Total.Equal(tt.Total.Round(2)))
}

func TestCalculate_UnknownTypes(t *testing.T) {
	in := singleItemInput()
	in.Fees.ServiceFeeType = "tiered"
	_, err := newCalc().Calculate(in)
	assert.True(t, errors.Is(err, pricing.ErrUnknownFeeType))

	in = singleItemInput()
	in.Adjustments = []pricing.Adjustment{{Type: "bogus", Value: d("1")}}
	_, err = newCalc().Calculate(in)
	assert.True(t, errors.Is(err, pricing.ErrUnknownAdjustmentType))

	in = singleItemInput()
	in.Adjustments = []pricing.Adjustment{{Type: enum.AdjustmentTypeFixed, Value: d("-1")}}
	_, err = newCalc().Calculate(in)
	assert.True(t, errors.Is(err, pricing.ErrNegativeAdjustment))
}

func TestCalculate_EmptyFeeTypeDefaultsToPercentage(t *testing.T) {
	in := singleItemInput()
	in.Fees.ServiceFeeType = ""

	totals, err := newCalc().Calculate(in)
	require.NoError(t, err)
	assert.Equal(t, enum.ServiceFeeTypePercentage, totals.ServiceFeeType)
	assert.True(t, totals.ServiceFee.Equal(d("1")))
}
