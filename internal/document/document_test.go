package document_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/eventmarket/api/internal/document"
	"github.com/eventmarket/api/internal/pricing"
	"github.com/eventmarket/api/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$12.50", document.FormatMoney(d("12.5")))
	assert.Equal(t, "$0.00", document.FormatMoney(decimal.Zero))
	assert.Equal(t, "-$5.00", document.FormatMoney(d("-5")))
	assert.Equal(t, "$0.01", document.FormatMoney(d("0.005")))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "8.25%", document.FormatPercent(d("0.0825")))
	assert.Equal(t, "0%", document.FormatPercent(decimal.Zero))
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := string(document.RenderMarkdown("**Menu** tasting included\n\n<script>alert(1)</script>"))
	assert.Contains(t, out, "<strong>Menu</strong>")
	assert.NotContains(t, out, "<script>")
	assert.Empty(t, document.RenderMarkdown(""))
}

func sampleData() document.ProposalData {
	return document.ProposalData{
		InvoiceNumber: "INV-1001",
		ClientName:    "Dana Reyes",
		ClientEmail:   "dana@acme.io",
		ClientCompany: "Acme",
		EventName:     "Launch Party",
		EventDate:     time.Date(2026, 6, 12, 18, 0, 0, 0, time.UTC),
		GuestCount:    40,
		Notes:         "Setup at **5pm**",
		IssuedAt:      time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Totals: pricing.Totals{
			Subtotal:   d("100"),
			ServiceFee: d("5"),
			TaxRate:    d("0.08"),
			Tax:        d("8.4"),
			Total:      d("113.4"),
			LineItems: []pricing.LineItem{
				{Name: "Tacos", UnitPrice: d("10"), Quantity: d("10"), LineTotal: d("100")},
			},
			IsTaxExempt: false,
		},
	}
}

func TestRenderProposal(t *testing.T) {
	html, err := document.RenderProposal(sampleData())
	require.NoError(t, err)

	assert.Contains(t, html, "Proposal INV-1001")
	assert.Contains(t, html, "Tacos")
	assert.Contains(t, html, "$113.40")
	assert.Contains(t, html, "Tax (8%)")
	assert.Contains(t, html, "June 12, 2026")
	assert.Contains(t, html, "<strong>5pm</strong>")
}

type fakePrinter struct {
	html string
	err  error
}

func (f *fakePrinter) PrintPDF(_ context.Context, html string) ([]byte, error) {
	f.html = html
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF"), nil
}

func TestGeneratorStoresPDF(t *testing.T) {
	printer := &fakePrinter{}
	gen := document.NewGenerator(printer, storage.NewLocal(t.TempDir(), "/documents"))

	url, err := gen.Generate(context.Background(), sampleData())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/documents/INV-1001-"))
	assert.True(t, strings.HasSuffix(url, ".pdf"))
	assert.Contains(t, printer.html, "INV-1001")
}

func TestGeneratorPrintFailure(t *testing.T) {
	gen := document.NewGenerator(&fakePrinter{err: errors.New("no chrome")}, storage.NewLocal(t.TempDir(), "/documents"))

	_, err := gen.Generate(context.Background(), sampleData())
	assert.Error(t, err)
}
