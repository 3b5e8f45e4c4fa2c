package pricing_test

import (
	"errors"
	"testing"

	"github.com/eventmarket/api/internal/enum"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultOpts = pricing.Options{StaffMinimumHours: d("4")}

func cateringService() pricing.Service {
	return pricing.Service{
		ID:   "cat1",
		Type: enum.ServiceTypeCatering,
		Name: "Taco Co",
		Details: &pricing.CateringDetails{MenuItems: []pricing.MenuItem{
			{ID: "tacos", Name: "Tacos", Price: d("10")},
			{ID: "steak", Name: "Steak", Price: d("20"), IsPremium: true, AdditionalCharge: d("5")},
			{ID: "flan", Name: "Flan", Price: d("3")},
		}},
	}
}

func comboService() pricing.Service {
	return pricing.Service{
		ID:   "cat2",
		Type: enum.ServiceTypeCatering,
		Details: &pricing.CateringDetails{MenuItems: []pricing.MenuItem{{
			ID: "bar", Name: "Taco Bar", Price: d("12"),
			ComboCategories: []pricing.ComboCategory{
				{ID: "p", Name: "Proteins", IsProtein: true, Items: []pricing.ComboItem{{ID: "chx", Name: "Chicken"}}},
				{ID: "s", Name: "Sides", Items: []pricing.ComboItem{{ID: "rice", Name: "Rice"}}},
			},
		}}},
	}
}

func TestExtract_CateringSkipsZeroQuantities(t *testing.T) {
	items := pricing.SelectedItems{
		"tacos":      d("2"),
		"cat1_steak": d("1"),
		"flan":       decimal.Zero,
	}

	rows := pricing.Extract(cateringService(), items, defaultOpts)

	require.Len(t, rows, 2)
	assert.Equal(t, "tacos", rows[0].ItemID)
	assert.True(t, rows[0].LineTotal.Equal(d("20")))
	assert.True(t, rows[1].UnitPrice.Equal(d("25")))
	assert.True(t, rows[1].AdditionalCharge.Equal(d("5")))
}

func TestExtract_Combo(t *testing.T) {
	items := pricing.SelectedItems{
		"bar":             d("4"),
		"bar_p_chx":       d("6"),
		"cat2_bar_s_rice": d("1"),
	}

	rows := pricing.Extract(comboService(), items, defaultOpts)

	require.Len(t, rows, 2)
	assert.Equal(t, "Taco Bar - Chicken", rows[0].Name)
	assert.True(t, rows[0].LineTotal.Equal(d("72")))
	assert.Equal(t, "Included for 6 servings", rows[1].Note)
}

func TestExtract_ComboNotSelected(t *testing.T) {
	assert.Empty(t, pricing.Extract(comboService(), pricing.SelectedItems{}, defaultOpts))
}

func TestValidate_IncompleteCombo(t *testing.T) {
	items := pricing.SelectedItems{"bar": d("4"), "bar_s_rice": d("1")}

	err := pricing.Validate([]pricing.Service{comboService()}, items)

	assert.True(t, errors.Is(err, pricing.ErrComboIncomplete))
	assert.NoError(t, pricing.Validate([]pricing.Service{comboService()}, pricing.SelectedItems{}))
}

func staffService() pricing.Service {
	return pricing.Service{
		ID:       "st1",
		Type:     enum.ServiceTypeStaff,
		Name:     "Event Staff",
		Price:    d("30"),
		Quantity: d("1"),
		Details: &pricing.StaffDetails{Roles: []pricing.StaffRole{
			{ID: "server"}, {ID: "bartender"},
		}},
	}
}

func TestExtract_StaffRolesAndDuration(t *testing.T) {
	items := pricing.SelectedItems{
		"server":                 d("2"),
		"st1_bartender":          d("1"),
		"server_duration":        d("5"),
		"st1_bartender_duration": d("6"),
	}

	rows := pricing.Extract(staffService(), items, defaultOpts)

	require.Len(t, rows, 1)
	assert.True(t, rows[0].Quantity.Equal(d("3")))
	assert.True(t, rows[0].Duration.Equal(d("6")))
	assert.True(t, rows[0].LineTotal.Equal(d("540")))
}

func TestExtract_StaffMinimumHours(t *testing.T) {
	svc := staffService()
	items := pricing.SelectedItems{"server": d("1"), "server_duration": d("2")}

	rows := pricing.Extract(svc, items, defaultOpts)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Duration.Equal(d("4")))

	svc.Details.(*pricing.StaffDetails).MinimumHours = d("3")
	rows = pricing.Extract(svc, items, defaultOpts)
	assert.True(t, rows[0].Duration.Equal(d("3")))
}

func TestExtract_StaffFallsBackToServiceQuantity(t *testing.T) {
	svc := staffService()
	svc.Duration = d("8")

	rows := pricing.Extract(svc, pricing.SelectedItems{}, defaultOpts)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Quantity.Equal(d("1")))
	assert.True(t, rows[0].LineTotal.Equal(d("240")))

	rows = pricing.Extract(svc, pricing.SelectedItems{"st1": d("2")}, defaultOpts)
	assert.True(t, rows[0].Quantity.Equal(d("2")))
}

func TestExtract_RentalsAndVenues(t *testing.T) {
	rental := pricing.Service{
		ID:    "r1",
		Type:  enum.ServiceTypePartyRentals,
		Price: d("100"),
		Details: &pricing.RentalDetails{Items: []pricing.CatalogItem{
			{ID: "chair", Name: "Chair", Price: d("2.5")},
			{ID: "table", Name: "Table", Price: d("12")},
		}},
	}
	rows := pricing.Extract(rental, pricing.SelectedItems{"chair": d("40")}, defaultOpts)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].LineTotal.Equal(d("100")))

	rows = pricing.Extract(rental, pricing.SelectedItems{"r1": d("2")}, defaultOpts)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].LineTotal.Equal(d("200")))

	venue := pricing.Service{
		ID:        "v1",
		Type:      enum.ServiceTypeVenue,
		Price:     d("150"),
		PriceType: enum.PriceTypeHourly,
		Duration:  d("3"),
		Quantity:  d("1"),
		Details:   &pricing.VenueDetails{},
	}
	rows = pricing.Extract(venue, pricing.SelectedItems{}, defaultOpts)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].LineTotal.Equal(d("450")))

	venue.Quantity = decimal.Zero
	assert.Empty(t, pricing.Extract(venue, pricing.SelectedItems{}, defaultOpts))
}
