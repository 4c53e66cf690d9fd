// Package invoice renders printable GST tax invoices.
package invoice

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Business is the seller block printed in the header.
type Business struct {
	Name    string
	Address string
	State   string
	GSTIN   string
	Email   string
	Phone   string
}

// Party is the billed customer and address.
type Party struct {
	Name       string
	Email      string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	GSTIN      string
}

// Line is one invoice row. Amounts are already computed by the pricing engine.
type Line struct {
	Name          string
	HSNCode       string
	Quantity      int
	Rate          float64
	TaxableValue  float64
	GSTPercentage float64
	GSTAmount     float64
	LineTotal     float64
}

// Data is everything needed to render one invoice. Either CGST and SGST or
// IGST is set; IGST wins when both are present.
type Data struct {
	Business      Business
	InvoiceNumber string
	Date          time.Time
	Customer      Party
	Currency      string
	Lines         []Line
	Subtotal      float64
	TotalTax      float64
	CGST          *float64
	SGST          *float64
	IGST          *float64
	Shipping      float64
	Discount      float64
	Total         float64
}

//go:embed invoice.html.tmpl
var invoiceHTML string

var tmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money":   Money,
	"percent": percent,
	"date":    formatDate,
	"add1":    func(i int) int { return i + 1 },
	"deref": func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	},
}).Parse(invoiceHTML))

type view struct {
	Data
	Symbol     string
	IntraState bool
	TaxAmount  float64
}

// Render produces a standalone HTML document for d. Data without a
// CGST+SGST pair is printed as inter-state, with IGST defaulting to
// TotalTax. The only error is a failed template execution.
func Render(d Data) (string, error) {
	v := view{Data: d, Symbol: symbol(d.Currency)}
	switch {
	case d.IGST != nil:
		v.TaxAmount = *d.IGST
	case d.CGST != nil && d.SGST != nil:
		v.IntraState = true
		v.TaxAmount = *d.CGST + *d.SGST
	default:
		igst := d.TotalTax
		v.IGST = &igst
		v.CGST, v.SGST = nil, nil
		v.TaxAmount = igst
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render invoice %s: %w", d.InvoiceNumber, err)
	}
	return buf.String(), nil
}

// Money rounds v half away from zero to two places for display.
func Money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006")
}

func percent(v float64) string {
	return decimal.NewFromFloat(v).Round(2).String() + "%"
}

func symbol(currency string) string {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "", "INR":
		return "₹"
	default:
		return strings.ToUpper(currency) + " "
	}
}
