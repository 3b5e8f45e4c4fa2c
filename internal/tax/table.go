package tax

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Table resolves sales tax rates by zip code, then city, then state, then a
// default. Rates are fractions (0.0825 for 8.25%).
type Table struct {
	defaultRate decimal.Decimal
	states      map[string]stateRates
}

type stateRates struct {
	rate    decimal.Decimal
	hasRate bool
	cities map[string]decimal.Decimal
	zips   map[string]decimal.Decimal
}

type fileFormat struct {
	DefaultRate *float64             `yaml:"default_rate"`
	States      map[string]stateFile `yaml:"states"`
}

type stateFile struct {
	Rate   *float64           `yaml:"rate"`
	Cities map[string]float64 `yaml:"cities"`
	Zips   map[string]float64 `yaml:"zips"`
}

var (
	zipPattern   = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	statePattern = regexp.MustCompile(`^([A-Za-z]{2})\b`)
)

// NewTable returns a table that applies defaultRate everywhere.
func NewTable(defaultRate decimal.Decimal) *Table {
	return &Table{defaultRate: defaultRate, states: map[string]stateRates{}}
}

// Load reads a YAML rate table. An empty path yields a default-only table.
func Load(path string, defaultRate decimal.Decimal) (*Table, error) {
	if path == "" {
		return NewTable(defaultRate), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tax table: %w", err)
	}
	return Parse(data, defaultRate)
}

// Parse decodes a YAML rate table. A default_rate in the file, zero included,
// overrides fallbackDefault.
func Parse(data []byte, fallbackDefault decimal.Decimal) (*Table, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tax table: %w", err)
	}

	t := NewTable(fallbackDefault)
	if f.DefaultRate != nil {
		t.defaultRate = decimal.NewFromFloat(*f.DefaultRate)
	}
	for code, s := range f.States {
		sr := stateRates{
			cities: make(map[string]decimal.Decimal, len(s.Cities)),
			zips:   make(map[string]decimal.Decimal, len(s.Zips)),
		}
		// A state listed with rate: 0 is tax free, not unset.
		if s.Rate != nil {
			sr.rate = decimal.NewFromFloat(*s.Rate)
			sr.hasRate = true
		}
		for city, rate := range s.Cities {
			sr.cities[normalizeCity(city)] = decimal.NewFromFloat(rate)
		}
		for zip, rate := range s.Zips {
			sr.zips[strings.TrimSpace(zip)] = decimal.NewFromFloat(rate)
		}
		t.states[strings.ToUpper(code)] = sr
	}
	return t, nil
}

// RateFor resolves a free-form US address such as
// "500 Congress Ave, Austin, TX 78701".
func (t *Table) RateFor(location string) decimal.Decimal {
	state, city, zip := parseLocation(location)

	s, ok := t.states[state]
	if !ok {
		if zip != "" {
			for _, candidate := range t.states {
				if rate, ok := candidate.zips[zip]; ok {
					return rate
				}
			}
		}
		return t.defaultRate
	}
	if rate, ok := s.zips[zip]; ok && zip != "" {
		return rate
	}
	if rate, ok := s.cities[city]; ok && city != "" {
		return rate
	}
	if s.hasRate {
		return s.rate
	}
	return t.defaultRate
}

func parseLocation(location string) (state, city, zip string) {
	parts := strings.Split(location, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if m := zipPattern.FindStringSubmatch(location); m != nil {
		zip = m[1]
	}

	// Walk back from the end: the state is the first part that starts with a
	// two-letter code, the city is the part before it.
	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		if strings.EqualFold(p, "usa") || strings.EqualFold(p, "us") || strings.EqualFold(p, "united states") {
			continue
		}
		m := statePattern.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		state = strings.ToUpper(m[1])
		if i > 0 {
			city = normalizeCity(parts[i-1])
		}
		break
	}
	return state, city, zip
}

func normalizeCity(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
