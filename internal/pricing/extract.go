package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eventmarket/api/internal/enum"
	"github.com/shopspring/decimal"
)

var ErrComboIncomplete = errors.New("combo selection incomplete")

// SelectedItems maps selection keys to quantities. Keys are item ids, either
// bare or prefixed "<serviceId>_", staff hour entries "<roleKey>_duration",
// and combo picks "<menuItemId>_<categoryId>_<itemId>".
type SelectedItems map[string]decimal.Decimal

// UnmarshalJSON accepts numbers, numeric strings and booleans as quantities.
func (s *SelectedItems) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(SelectedItems, len(raw))
	for k, v := range raw {
		out[k] = parseQuantity(v)
	}
	*s = out
	return nil
}

// Quantity returns the quantity for key, preferring the service-scoped form.
func (s SelectedItems) Quantity(serviceID, key string) decimal.Decimal {
	if serviceID != "" {
		if q, ok := s[serviceID+"_"+key]; ok {
			return nonNegative(q)
		}
	}
	if q, ok := s[key]; ok {
		return nonNegative(q)
	}
	return decimal.Zero
}

// Options carries configuration the extractors need.
type Options struct {
	StaffMinimumHours decimal.Decimal
}

// LineItem is one priced row of a service.
type LineItem struct {
	ServiceID        string          `json:"serviceId"`
	ServiceType      string          `json:"serviceType"`
	VendorID         string          `json:"vendorId,omitempty"`
	ItemID           string          `json:"itemId,omitempty"`
	Name             string          `json:"name"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	Quantity         decimal.Decimal `json:"quantity"`
	Duration         decimal.Decimal `json:"duration"`
	AdditionalCharge decimal.Decimal `json:"additionalCharge"`
	LineTotal        decimal.Decimal `json:"lineTotal"`
	Note             string          `json:"note,omitempty"`
}

// Extract prices a single service against the selection. Items with a zero
// or missing quantity produce no row.
func Extract(svc Service, items SelectedItems, opts Options) []LineItem {
	switch d := svc.Details.(type) {
	case *CateringDetails:
		return extractCatering(svc, d, items)
	case *StaffDetails:
		return extractStaff(svc, d, items, opts)
	case *RentalDetails:
		return extractCatalog(svc, d.Items, items)
	case *VenueDetails:
		return extractCatalog(svc, d.Options, items)
	}
	return extractCatalog(svc, nil, items)
}

// Validate rejects selections that cannot be submitted, currently combos
// whose protein categories have nothing picked.
func Validate(services []Service, items SelectedItems) error {
	for _, svc := range services {
		d, ok := svc.Details.(*CateringDetails)
		if !ok {
			continue
		}
		for _, mi := range d.MenuItems {
			if !mi.IsCombo() {
				continue
			}
			cats, picked := comboSelection(svc.ID, mi, items)
			headcount := items.Quantity(svc.ID, mi.ID)
			if !picked && !headcount.IsPositive() {
				continue
			}
			res := CalculateCombo(mi.Price, cats, headcount)
			if !res.Complete {
				return fmt.Errorf("%s: %w: missing %v", mi.Name, ErrComboIncomplete, res.MissingCategories)
			}
		}
	}
	return nil
}

func extractCatering(svc Service, d *CateringDetails, items SelectedItems) []LineItem {
	var rows []LineItem
	for _, mi := range d.MenuItems {
		if mi.IsCombo() {
			rows = append(rows, extractCombo(svc, mi, items)...)
			continue
		}
		q := items.Quantity(svc.ID, mi.ID)
		if !q.IsPositive() {
			continue
		}
		charge := decimal.Zero
		if mi.IsPremium {
			charge = mi.AdditionalCharge
		}
		unit := mi.Price.Add(charge)
		rows = append(rows, LineItem{
			ServiceID:        svc.ID,
			ServiceType:      svc.Type,
			VendorID:         svc.VendorID,
			ItemID:           mi.ID,
			Name:             mi.Name,
			UnitPrice:        unit,
			Quantity:         q,
			AdditionalCharge: charge,
			LineTotal:        roundCents(unit.Mul(q)),
		})
	}
	if len(d.MenuItems) == 0 {
		return extractCatalog(svc, nil, items)
	}
	return rows
}

func extractCombo(svc Service, mi MenuItem, items SelectedItems) []LineItem {
	cats, picked := comboSelection(svc.ID, mi, items)
	headcount := items.Quantity(svc.ID, mi.ID)
	if !picked && !headcount.IsPositive() {
		return nil
	}
	res := CalculateCombo(mi.Price, cats, headcount)
	rows := make([]LineItem, 0, len(res.Lines))
	for _, l := range res.Lines {
		name := mi.Name
		if l.Name != "" {
			name = mi.Name + " - " + l.Name
		}
		itemID := mi.ID
		if l.ItemID != "" {
			itemID = mi.ID + "_" + l.CategoryID + "_" + l.ItemID
		}
		rows = append(rows, LineItem{
			ServiceID:        svc.ID,
			ServiceType:      svc.Type,
			VendorID:         svc.VendorID,
			ItemID:           itemID,
			Name:             name,
			UnitPrice:        l.UnitPrice,
			Quantity:         l.Quantity,
			AdditionalCharge: l.AdditionalCharge,
			LineTotal:        l.LineTotal,
			Note:             l.Note,
		})
	}
	return rows
}

func extractStaff(svc Service, d *StaffDetails, items SelectedItems, opts Options) []LineItem {
	qty := decimal.Zero
	duration := decimal.Zero
	for _, role := range d.Roles {
		q := items.Quantity(svc.ID, role.ID)
		if !q.IsPositive() {
			continue
		}
		qty = qty.Add(q)
		duration = decimal.Max(duration, items.Quantity(svc.ID, role.ID+"_duration"))
	}
	if qty.IsZero() {
		qty = fallbackQuantity(svc, items)
	}
	if !qty.IsPositive() {
		return nil
	}
	if duration.IsZero() {
		duration = svc.Duration
	}
	minimum := d.MinimumHours
	if !minimum.IsPositive() {
		minimum = opts.StaffMinimumHours
	}
	duration = decimal.Max(duration, minimum)

	return []LineItem{{
		ServiceID:   svc.ID,
		ServiceType: svc.Type,
		VendorID:    svc.VendorID,
		Name:        svc.Name,
		UnitPrice:   svc.Price,
		Quantity:    qty,
		Duration:    duration,
		LineTotal:   roundCents(qty.Mul(duration).Mul(svc.Price)),
	}}
}

// extractCatalog prices rentals, venues and any service without an item
// catalog. Selected catalog entries win over the service-level quantity.
func extractCatalog(svc Service, catalog []CatalogItem, items SelectedItems) []LineItem {
	var rows []LineItem
	for _, item := range catalog {
		q := items.Quantity(svc.ID, item.ID)
		if !q.IsPositive() {
			continue
		}
		unit := item.Price
		if unit.IsZero() {
			unit = svc.Price
		}
		priceType := svc.PriceType
		if item.PriceType == enum.PriceTypeHourly {
			priceType = item.PriceType
		}
		rows = append(rows, catalogRow(svc, item.ID, item.Name, unit, q, priceType))
	}
	if len(rows) > 0 {
		return rows
	}

	q := fallbackQuantity(svc, items)
	if !q.IsPositive() {
		return nil
	}
	return []LineItem{catalogRow(svc, "", svc.Name, svc.Price, q, svc.PriceType)}
}

func catalogRow(svc Service, itemID, name string, unit, qty decimal.Decimal, priceType string) LineItem {
	row := LineItem{
		ServiceID:   svc.ID,
		ServiceType: svc.Type,
		VendorID:    svc.VendorID,
		ItemID:      itemID,
		Name:        name,
		UnitPrice:   unit,
		Quantity:    qty,
	}
	total := unit.Mul(qty)
	if priceType == enum.PriceTypeHourly && svc.Duration.IsPositive() {
		row.Duration = svc.Duration
		total = total.Mul(svc.Duration)
	}
	row.LineTotal = roundCents(total)
	return row
}

func fallbackQuantity(svc Service, items SelectedItems) decimal.Decimal {
	if q, ok := items[svc.ID]; ok && q.IsPositive() {
		return q
	}
	return svc.Quantity
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
