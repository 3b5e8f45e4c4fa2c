package pricing

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/eventmarket/api/internal/enum"
	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
)

// RawService is a booked service as it arrives from clients and as it is
// stored in orders.selected_services. Numeric fields are left loosely typed.
type RawService struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	VendorID    string         `json:"vendor_id,omitempty"`
	Quantity    any            `json:"quantity,omitempty"`
	Duration    any            `json:"duration,omitempty"`
	Price       any            `json:"price,omitempty"`
	PriceType   string         `json:"price_type,omitempty"`
	Details     map[string]any `json:"service_details,omitempty"`
	DeliveryFee any            `json:"deliveryFee,omitempty"`
}

// Service is a RawService after boundary normalization. Details holds one of
// *CateringDetails, *StaffDetails, *RentalDetails or *VenueDetails, or nil
// for unknown service types.
type Service struct {
	ID          string
	Type        string
	Name        string
	VendorID    string
	Quantity    decimal.Decimal
	Duration    decimal.Decimal
	Price       decimal.Decimal
	PriceType   string
	DeliveryFee decimal.Decimal
	Details     Details
}

// Details is the per-type payload of a service.
type Details interface {
	serviceType() string
}

type CateringDetails struct {
	MenuItems []MenuItem
}

type MenuItem struct {
	ID               string
	Name             string
	Price            decimal.Decimal
	IsPremium        bool
	AdditionalCharge decimal.Decimal
	ComboCategories  []ComboCategory
}

// IsCombo reports whether the item is priced through the combo calculator.
func (m MenuItem) IsCombo() bool { return len(m.ComboCategories) > 0 }

type ComboCategory struct {
	ID        string
	Name      string
	IsProtein bool
	Items     []ComboItem
}

type ComboItem struct {
	ID               string
	Name             string
	Price            decimal.Decimal
	IsPremium        bool
	AdditionalCharge decimal.Decimal
}

type StaffDetails struct {
	Roles        []StaffRole
	MinimumHours decimal.Decimal
}

type StaffRole struct {
	ID   string
	Name string
}

type RentalDetails struct {
	Items []CatalogItem
}

type VenueDetails struct {
	Options []CatalogItem
}

// CatalogItem is a rental item or a venue option.
type CatalogItem struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	PriceType string
}

func (*CateringDetails) serviceType() string { return enum.ServiceTypeCatering }
func (*StaffDetails) serviceType() string    { return enum.ServiceTypeStaff }
func (*RentalDetails) serviceType() string   { return enum.ServiceTypePartyRentals }
func (*VenueDetails) serviceType() string    { return enum.ServiceTypeVenue }

// DecodeServices parses a JSON array of raw services and normalizes them.
func DecodeServices(data []byte) ([]Service, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raw []RawService
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}
	return NormalizeServices(raw), nil
}

func NormalizeServices(raw []RawService) []Service {
	out := make([]Service, 0, len(raw))
	for _, r := range raw {
		out = append(out, NormalizeService(r))
	}
	return out
}

// NormalizeService resolves the service type alias, parses loose numbers and
// decodes service_details into the typed union. Malformed details degrade to
// an empty payload rather than an error.
func NormalizeService(r RawService) Service {
	svc := Service{
		ID:          r.ID,
		Type:        NormalizeServiceType(r.Type),
		Name:        r.Name,
		VendorID:    r.VendorID,
		Quantity:    parseQuantity(r.Quantity),
		Duration:    ParsePrice(r.Duration),
		Price:       ParsePrice(r.Price),
		PriceType:   normalizePriceType(r.PriceType),
		DeliveryFee: ParsePrice(r.DeliveryFee),
	}

	d := r.Details
	if d == nil {
		d = map[string]any{}
	}
	switch svc.Type {
	case enum.ServiceTypeCatering:
		svc.Details = decodeCatering(d)
	case enum.ServiceTypeStaff:
		svc.Details = decodeStaff(d)
	case enum.ServiceTypePartyRentals:
		svc.Details = &RentalDetails{Items: decodeCatalog(lookup(d, "partyRentals.items", "rentals.items", "rentalItems", "items"))}
	case enum.ServiceTypeVenue:
		svc.Details = &VenueDetails{Options: decodeCatalog(lookup(d, "venue.options", "venueOptions", "options", "spaces"))}
	}
	return svc
}

// NormalizeServiceType maps the aliases seen in stored data onto the
// canonical service types.
func NormalizeServiceType(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.NewReplacer("_", "-", " ", "-").Replace(t)
	switch t {
	case "catering", "caterer":
		return enum.ServiceTypeCatering
	case "venue", "venues":
		return enum.ServiceTypeVenue
	case "staff", "staffing":
		return enum.ServiceTypeStaff
	case "party-rentals", "partyrentals", "party-rental", "rentals", "rental":
		return enum.ServiceTypePartyRentals
	}
	return t
}

func normalizePriceType(s string) string {
	switch strings.ToLower(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s))) {
	case "hourly", "per_hour", "hour":
		return enum.PriceTypeHourly
	case "per_person", "perperson", "person", "per_guest":
		return enum.PriceTypePerPerson
	}
	return enum.PriceTypeFlat
}

type rawMenuItem struct {
	ID               string
	Name             string
	Title            string
	Price            any
	IsPremium        bool
	Premium          bool
	AdditionalCharge any
}

type rawComboCategory struct {
	ID        string
	Name      string
	IsProtein bool
	Type      string
}

type rawCatalogItem struct {
	ID        string
	Name      string
	Title     string
	Price     any
	PriceType string
}

func decodeCatering(d map[string]any) *CateringDetails {
	out := &CateringDetails{}
	for _, el := range asList(lookup(d, "catering.menuItems", "menuItems", "menu.items", "menu")) {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		var raw rawMenuItem
		if err := decode(m, &raw); err != nil || raw.ID == "" {
			continue
		}
		item := MenuItem{
			ID:               raw.ID,
			Name:             firstNonEmpty(raw.Name, raw.Title),
			Price:            ParsePrice(raw.Price),
			IsPremium:        raw.IsPremium || raw.Premium,
			AdditionalCharge: ParsePrice(raw.AdditionalCharge),
		}
		for _, c := range asList(lookup(m, "comboCategories", "combo.categories", "categories")) {
			if cat, ok := decodeComboCategory(c); ok {
				item.ComboCategories = append(item.ComboCategories, cat)
			}
		}
		out.MenuItems = append(out.MenuItems, item)
	}
	return out
}

func decodeComboCategory(v any) (ComboCategory, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return ComboCategory{}, false
	}
	var raw rawComboCategory
	if err := decode(m, &raw); err != nil || raw.ID == "" {
		return ComboCategory{}, false
	}
	cat := ComboCategory{
		ID:        raw.ID,
		Name:      raw.Name,
		IsProtein: raw.IsProtein || strings.EqualFold(raw.Type, "protein"),
	}
	for _, el := range asList(lookup(m, "items", "options")) {
		im, ok := el.(map[string]any)
		if !ok {
			continue
		}
		var ri rawMenuItem
		if err := decode(im, &ri); err != nil || ri.ID == "" {
			continue
		}
		cat.Items = append(cat.Items, ComboItem{
			ID:               ri.ID,
			Name:             firstNonEmpty(ri.Name, ri.Title),
			Price:            ParsePrice(ri.Price),
			IsPremium:        ri.IsPremium || ri.Premium,
			AdditionalCharge: ParsePrice(ri.AdditionalCharge),
		})
	}
	return cat, true
}

func decodeStaff(d map[string]any) *StaffDetails {
	out := &StaffDetails{
		MinimumHours: ParsePrice(lookup(d, "staff.minimumHours", "minimumHours", "minHours", "staff.minHours")),
	}
	for _, el := range asList(lookup(d, "staff.roles", "roles", "staffRoles", "positions")) {
		if name, ok := el.(string); ok && name != "" {
			out.Roles = append(out.Roles, StaffRole{ID: name, Name: name})
			continue
		}
		var raw rawCatalogItem
		if err := decode(el, &raw); err != nil || raw.ID == "" {
			continue
		}
		out.Roles = append(out.Roles, StaffRole{ID: raw.ID, Name: firstNonEmpty(raw.Name, raw.Title)})
	}
	return out
}

func decodeCatalog(v any) []CatalogItem {
	var out []CatalogItem
	for _, el := range asList(v) {
		var raw rawCatalogItem
		if err := decode(el, &raw); err != nil || raw.ID == "" {
			continue
		}
		out = append(out, CatalogItem{
			ID:        raw.ID,
			Name:      firstNonEmpty(raw.Name, raw.Title),
			Price:     ParsePrice(raw.Price),
			PriceType: normalizePriceType(raw.PriceType),
		})
	}
	return out
}

func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return canonicalKey(mapKey) == canonicalKey(fieldName)
		},
		Result: out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// lookup returns the first non-empty value found at any of the dotted paths.
func lookup(m map[string]any, paths ...string) any {
	for _, p := range paths {
		var cur any = m
		found := true
		for _, key := range strings.Split(p, ".") {
			obj, ok := cur.(map[string]any)
			if !ok {
				found = false
				break
			}
			if cur, ok = getKey(obj, key); !ok {
				found = false
				break
			}
		}
		if found && !isEmpty(cur) {
			return cur
		}
	}
	return nil
}

// getKey matches key exactly, then ignoring case and '_' / '-' separators.
func getKey(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	want := canonicalKey(key)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if canonicalKey(k) == want {
			return m[k], true
		}
	}
	return nil, false
}

func canonicalKey(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(s))
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case string:
		return t == ""
	}
	return false
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
