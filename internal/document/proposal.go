// Package document renders client-facing proposal documents as HTML and PDF.
package document

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/eventmarket/api/internal/pricing"
	"github.com/shopspring/decimal"
)

// ProposalData is everything the proposal template needs.
type ProposalData struct {
	InvoiceNumber string
	Status        string
	ClientName    string
	ClientEmail   string
	ClientCompany string
	EventName     string
	EventDate     time.Time
	EventLocation string
	GuestCount    int32
	Notes         string
	Totals        pricing.Totals
	IssuedAt      time.Time
	ProposalURL   string
}

var proposalTmpl = template.Must(template.New("proposal").Funcs(template.FuncMap{
	"money":   FormatMoney,
	"percent": FormatPercent,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "TBD"
		}
		return t.Format("January 2, 2006")
	},
	"qty": func(d decimal.Decimal) string { return d.String() },
	"positive": func(d decimal.Decimal) bool { return d.IsPositive() },
}).Parse(proposalHTML))

// RenderProposal returns the proposal as a standalone HTML page.
func RenderProposal(data ProposalData) (string, error) {
	view := struct {
		ProposalData
		NotesHTML template.HTML
	}{
		ProposalData: data,
		NotesHTML:    RenderMarkdown(data.Notes),
	}

	var buf bytes.Buffer
	if err := proposalTmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render proposal %s: %w", data.InvoiceNumber, err)
	}
	return buf.String(), nil
}

const proposalHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Proposal {{.InvoiceNumber}}</title>
<style>
  body { font-family: Helvetica, Arial, sans-serif; color: #1f2933; margin: 40px; }
  h1 { font-size: 24px; margin-bottom: 4px; }
  table { width: 100%; border-collapse: collapse; margin-top: 24px; }
  th, td { padding: 8px; border-bottom: 1px solid #e4e7eb; text-align: left; }
  td.num, th.num { text-align: right; }
  .totals td { border: none; }
  .grand td { font-weight: bold; font-size: 16px; border-top: 2px solid #1f2933; }
  .muted { color: #7b8794; font-size: 12px; }
  .notes { margin-top: 32px; }
</style>
</head>
<body>
<h1>Proposal {{.InvoiceNumber}}</h1>
<p class="muted">Issued {{date .IssuedAt}}</p>

<p>
  <strong>{{.ClientName}}</strong>{{if .ClientCompany}}, {{.ClientCompany}}{{end}}<br>
  {{.ClientEmail}}
</p>

<p>
  <strong>{{.EventName}}</strong><br>
  {{date .EventDate}}{{if .EventLocation}} &middot; {{.EventLocation}}{{end}}<br>
  {{if .GuestCount}}{{.GuestCount}} guests{{end}}
</p>

<table>
  <thead>
    <tr><th>Item</th><th class="num">Qty</th><th class="num">Unit</th><th class="num">Total</th></tr>
  </thead>
  <tbody>
  {{range .Totals.LineItems}}
    <tr>
      <td>{{.Name}}{{if .Note}}<br><span class="muted">{{.Note}}</span>{{end}}</td>
      <td class="num">{{qty .Quantity}}{{if positive .Duration}} &times; {{qty .Duration}}h{{end}}</td>
      <td class="num">{{money .UnitPrice}}</td>
      <td class="num">{{money .LineTotal}}</td>
    </tr>
  {{end}}
  </tbody>
</table>

<table class="totals">
  <tr><td>Subtotal</td><td class="num">{{money .Totals.Subtotal}}</td></tr>
  {{if .Totals.IsServiceFeeWaived}}
  <tr><td>Service fee (waived)</td><td class="num">{{money .Totals.ServiceFee}}</td></tr>
  {{else}}
  <tr><td>Service fee</td><td class="num">{{money .Totals.ServiceFee}}</td></tr>
  {{end}}
  {{if positive .Totals.DeliveryFee}}
  <tr><td>Delivery</td><td class="num">{{money .Totals.DeliveryFee}}</td></tr>
  {{end}}
  {{range .Totals.AdjustmentsBreakdown}}
  <tr><td>{{.Label}}</td><td class="num">{{money .Amount}}</td></tr>
  {{end}}
  {{if .Totals.IsTaxExempt}}
  <tr><td>Tax (exempt)</td><td class="num">{{money .Totals.Tax}}</td></tr>
  {{else}}
  <tr><td>Tax ({{percent .Totals.TaxRate}})</td><td class="num">{{money .Totals.Tax}}</td></tr>
  {{end}}
  <tr class="grand"><td>Total</td><td class="num">{{money .Totals.Total}}</td></tr>
</table>

{{if .NotesHTML}}
<div class="notes">{{.NotesHTML}}</div>
{{end}}

{{if .ProposalURL}}
<p class="muted">Review and respond online: {{.ProposalURL}}</p>
{{end}}
</body>
</html>
`
