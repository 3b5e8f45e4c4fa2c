package document

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatMoney renders an amount in dollars with grouping, e.g. "$1,250.50".
func FormatMoney(d decimal.Decimal) string {
	f := d.Round(2).Abs().InexactFloat64()
	if d.IsNegative() && !d.Round(2).IsZero() {
		return printer.Sprintf("-$%.2f", f)
	}
	return printer.Sprintf("$%.2f", f)
}

// FormatPercent renders a fractional rate (0.0825) as "8.25%".
func FormatPercent(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).Round(3).String() + "%"
}
