package delivery

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/eventmarket/api/internal/enum"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// Tier charges Fee for any distance up to UpToMiles.
type Tier struct {
	UpToMiles decimal.Decimal
	Fee       decimal.Decimal
}

// Policy derives a delivery fee from distance. Deliveries within FreeMiles
// cost nothing, tiers apply next, and every mile past the last tier costs
// PerMile on top of the last tier fee.
type Policy struct {
	FreeMiles decimal.Decimal
	PerMile   decimal.Decimal
	Tiers     []Tier
	// Types lists the service types that are delivered at all.
	Types []string
}

// DefaultTypes are the service types that ship goods to the event.
var DefaultTypes = []string{enum.ServiceTypeCatering, enum.ServiceTypePartyRentals}

// ParseTiers reads comma separated "miles:fee" pairs such as
// "15:25,30:45". An empty string means no tiers.
func ParseTiers(s string) ([]Tier, error) {
	var tiers []Tier
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		milesStr, feeStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("delivery tier %q: want miles:fee", part)
		}
		miles, err := decimal.NewFromString(strings.TrimSpace(milesStr))
		if err != nil || !miles.IsPositive() {
			return nil, fmt.Errorf("delivery tier %q: invalid miles", part)
		}
		fee, err := decimal.NewFromString(strings.TrimSpace(feeStr))
		if err != nil || fee.IsNegative() {
			return nil, fmt.Errorf("delivery tier %q: invalid fee", part)
		}
		tiers = append(tiers, Tier{UpToMiles: miles, Fee: fee})
	}
	return tiers, nil
}

func NewPolicy(freeMiles, perMile decimal.Decimal, tiers []Tier) *Policy {
	sorted := append([]Tier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UpToMiles.LessThan(sorted[j].UpToMiles) })
	return &Policy{FreeMiles: freeMiles, PerMile: perMile, Tiers: sorted, Types: DefaultTypes}
}

func (p *Policy) FeeFor(svc pricing.Service, miles decimal.Decimal) decimal.Decimal {
	if !p.delivers(svc.Type) || !miles.GreaterThan(p.FreeMiles) {
		return decimal.Zero
	}
	if len(p.Tiers) == 0 {
		return miles.Sub(p.FreeMiles).Mul(p.PerMile).Round(2)
	}
	for _, tier := range p.Tiers {
		if miles.LessThanOrEqual(tier.UpToMiles) {
			return tier.Fee
		}
	}
	last := p.Tiers[len(p.Tiers)-1]
	return last.Fee.Add(miles.Sub(last.UpToMiles).Mul(p.PerMile)).Round(2)
}

func (p *Policy) delivers(serviceType string) bool {
	for _, t := range p.Types {
		if t == serviceType {
			return true
		}
	}
	return false
}

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lng float64
}

const earthRadiusMiles = 3958.8

// Miles returns the great-circle distance between a and b.
func Miles(a, b Point) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMiles * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Distances maps each service id to the miles between its vendor and the
// event, rounded to a tenth of a mile. Services whose vendor location is
// unknown are left out, which means no distance-based fee for them.
func Distances(services []pricing.Service, vendors map[string]Point, event Point) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(services))
	for _, svc := range services {
		origin, ok := vendors[svc.VendorID]
		if !ok {
			continue
		}
		out[svc.ID] = decimal.NewFromFloat(Miles(origin, event)).Round(1)
	}
	return out
}
