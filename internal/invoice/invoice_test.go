package invoice

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func sample() Data {
	return Data{
		Business:      Business{Name: "Parfum House", Address: "12 Linking Rd, Mumbai", State: "Maharashtra", GSTIN: "27ABCDE1234F1Z5"},
		InvoiceNumber: "INV-000042",
		Date:          time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Customer: Party{
			Name: "Asha Rao", Line1: "4 MG Road", City: "Pune", State: "Maharashtra",
			PostalCode: "411001", Country: "IN", GSTIN: "27AAAPL1234C1ZV",
		},
		Currency: "INR",
		Lines: []Line{{
			Name: "Oud Noir <EDP>", HSNCode: "3303", Quantity: 2, Rate: 1180,
			TaxableValue: 2000, GSTPercentage: 18, GSTAmount: 360, LineTotal: 2360,
		}},
		Subtotal: 2000,
		TotalTax: 360,
		CGST:     ptr(180),
		SGST:     ptr(180),
		Shipping: 0,
		Total:    2360,
	}
}

func TestRenderIntraState(t *testing.T) {
	html, err := Render(sample())
	require.NoError(t, err)

	require.Contains(t, html, "INV-000042")
	require.Contains(t, html, "14 Mar 2026")
	require.Contains(t, html, "GSTIN: 27ABCDE1234F1Z5")
	require.Contains(t, html, "GSTIN: 27AAAPL1234C1ZV")
	require.Contains(t, html, "3303")
	require.Contains(t, html, "₹2000.00")
	require.Contains(t, html, "18%")
	require.Contains(t, html, `class="cgst"`)
	require.Contains(t, html, `class="sgst"`)
	require.NotContains(t, html, `class="igst"`)
	require.Contains(t, html, "₹2360.00")
	require.Contains(t, html, "Oud Noir &lt;EDP&gt;")
}

func TestRenderInterState(t *testing.T) {
	d := sample()
	d.Customer.State = "Karnataka"
	d.Customer.GSTIN = ""
	d.CGST, d.SGST = nil, nil
	d.IGST = ptr(360)
	d.Discount = 100
	d.Total = 2260

	html, err := Render(d)
	require.NoError(t, err)
	require.Contains(t, html, `class="igst"`)
	require.NotContains(t, html, `class="cgst"`)
	require.Equal(t, 1, strings.Count(html, "GSTIN:"))
	require.Contains(t, html, "-₹100.00")
	require.Contains(t, html, "₹2260.00")
}

func TestRenderWithoutSplitIsInterState(t *testing.T) {
	d := sample()
	d.CGST, d.SGST = nil, nil
	html, err := Render(d)
	require.NoError(t, err)
	require.Contains(t, html, `class="igst"`)
	require.NotContains(t, html, `class="cgst"`)
	require.NotContains(t, html, `class="sgst"`)
	require.Contains(t, html, `<tr class="igst"><td>IGST</td><td class="num">₹360.00</td></tr>`)
	require.Nil(t, d.IGST)
}

func TestRenderIsDeterministic(t *testing.T) {
	d := sample()
	d.Date = time.Time{}
	first, err := Render(d)
	require.NoError(t, err)
	second, err := Render(d)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Contains(t, first, "Date: </div>")
}

func TestMoneyRounding(t *testing.T) {
	require.Equal(t, "169.49", Money(169.4915))
	require.Equal(t, "0.01", Money(0.005))
	require.Equal(t, "-12.35", Money(-12.345))
	require.Equal(t, "10.00", Money(10))
}

func TestForeignCurrencySymbol(t *testing.T) {
	d := sample()
	d.Currency = "usd"
	html, err := Render(d)
	require.NoError(t, err)
	require.Contains(t, html, "USD 2360.00")
}
