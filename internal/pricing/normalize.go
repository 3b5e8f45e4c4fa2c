package pricing

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// ParsePrice converts a loosely typed price into a non-negative decimal.
// Numbers, numeric strings and currency strings ("$1,250.50", "12.5 USD")
// are accepted. Anything else, including negative values, yields zero.
func ParsePrice(v any) decimal.Decimal {
	var d decimal.Decimal
	switch t := v.(type) {
	case nil, bool:
		return decimal.Zero
	case decimal.Decimal:
		d = t
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero
		}
		d = *t
	case json.Number:
		d = parseNumericString(t.String())
	case string:
		d = parseNumericString(t)
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(f)
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// parseQuantity is ParsePrice with checkbox semantics: true counts as one.
func parseQuantity(v any) decimal.Decimal {
	if b, ok := v.(bool); ok {
		if b {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	}
	return ParsePrice(v)
}

// parseNumericString accepts plain decimals (exponents included) and
// currency strings. Currency symbols, thousands separators and whitespace are
// dropped and a unit prefix or suffix is trimmed. Anything left that is not a
// number, such as letters between digits, yields zero.
func parseNumericString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if d, err := decimal.NewFromString(s); err == nil {
		return d
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == ',' || unicode.IsSpace(r) || unicode.Is(unicode.Sc, r):
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimLeftFunc(cleaned, func(r rune) bool { return unicode.IsLetter(r) })
	cleaned = strings.TrimRightFunc(cleaned, func(r rune) bool { return unicode.IsLetter(r) })
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func roundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
