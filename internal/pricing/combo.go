package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ComboCategorySelection is a combo category together with the quantities
// picked for each of its items.
type ComboCategorySelection struct {
	ID        string
	Name      string
	IsProtein bool
	Items     []ComboItemSelection
}

type ComboItemSelection struct {
	ComboItem
	Quantity decimal.Decimal
}

type ComboLine struct {
	CategoryID       string
	CategoryName     string
	ItemID           string
	Name             string
	UnitPrice        decimal.Decimal
	Quantity         decimal.Decimal
	AdditionalCharge decimal.Decimal
	LineTotal        decimal.Decimal
	Note             string
}

type ComboResult struct {
	Lines                []ComboLine
	TotalProteinQuantity decimal.Decimal
	IncludedServings     decimal.Decimal
	Total                decimal.Decimal
	// Complete is false when a protein category has nothing picked.
	Complete          bool
	MissingCategories []string
}

// CalculateCombo prices a combo menu item. Protein picks are charged per
// portion at basePrice plus the item price. Side picks are included for
// max(total protein portions, headcount) servings and only cost extra when
// the item is premium. A combo without any protein category is charged as
// basePrice per head.
func CalculateCombo(basePrice decimal.Decimal, categories []ComboCategorySelection, headcount decimal.Decimal) ComboResult {
	res := ComboResult{
		TotalProteinQuantity: decimal.Zero,
		Total:                decimal.Zero,
		Complete:             true,
	}

	hasProtein := false
	for _, cat := range categories {
		if !cat.IsProtein {
			continue
		}
		hasProtein = true
		picked := false
		for _, item := range cat.Items {
			if !item.Quantity.IsPositive() {
				continue
			}
			picked = true
			unit := basePrice.Add(itemPrice(item.ComboItem))
			res.TotalProteinQuantity = res.TotalProteinQuantity.Add(item.Quantity)
			res.Lines = append(res.Lines, ComboLine{
				CategoryID:       cat.ID,
				CategoryName:     cat.Name,
				ItemID:           item.ID,
				Name:             item.Name,
				UnitPrice:        unit,
				Quantity:         item.Quantity,
				AdditionalCharge: premiumCharge(item.ComboItem),
				LineTotal:        roundCents(unit.Mul(item.Quantity)),
			})
		}
		if !picked {
			res.Complete = false
			res.MissingCategories = append(res.MissingCategories, cat.Name)
		}
	}

	res.IncludedServings = decimal.Max(res.TotalProteinQuantity, headcount)

	if !hasProtein && headcount.IsPositive() {
		res.Lines = append(res.Lines, ComboLine{
			Name:      "Base",
			UnitPrice: basePrice,
			Quantity:  headcount,
			LineTotal: roundCents(basePrice.Mul(headcount)),
		})
	}

	for _, cat := range categories {
		if cat.IsProtein {
			continue
		}
		for _, item := range cat.Items {
			if !item.Quantity.IsPositive() {
				continue
			}
			unit := decimal.Zero
			if item.IsPremium {
				unit = itemPrice(item.ComboItem)
			}
			res.Lines = append(res.Lines, ComboLine{
				CategoryID:       cat.ID,
				CategoryName:     cat.Name,
				ItemID:           item.ID,
				Name:             item.Name,
				UnitPrice:        unit,
				Quantity:         res.IncludedServings,
				AdditionalCharge: premiumCharge(item.ComboItem),
				LineTotal:        roundCents(unit.Mul(res.IncludedServings)),
				Note:             fmt.Sprintf("Included for %s servings", res.IncludedServings.String()),
			})
		}
	}

	for _, l := range res.Lines {
		res.Total = res.Total.Add(l.LineTotal)
	}
	return res
}

// itemPrice is the item's own price plus its premium surcharge, if any.
func itemPrice(item ComboItem) decimal.Decimal {
	return item.Price.Add(premiumCharge(item))
}

func premiumCharge(item ComboItem) decimal.Decimal {
	if item.IsPremium {
		return item.AdditionalCharge
	}
	return decimal.Zero
}

// comboSelection pairs a combo menu item's categories with the picks found in
// items. Pick keys are "<menuItemId>_<categoryId>_<itemId>", optionally
// prefixed with the service id.
func comboSelection(serviceID string, menuItem MenuItem, items SelectedItems) ([]ComboCategorySelection, bool) {
	anyPicked := false
	cats := make([]ComboCategorySelection, 0, len(menuItem.ComboCategories))
	for _, cat := range menuItem.ComboCategories {
		sel := ComboCategorySelection{ID: cat.ID, Name: cat.Name, IsProtein: cat.IsProtein}
		for _, item := range cat.Items {
			q := items.Quantity(serviceID, menuItem.ID+"_"+cat.ID+"_"+item.ID)
			if q.IsPositive() {
				anyPicked = true
			}
			sel.Items = append(sel.Items, ComboItemSelection{ComboItem: item, Quantity: q})
		}
		cats = append(cats, sel)
	}
	return cats, anyPicked
}
