package pricing

import "strings"

// DefaultGSTPercentage applies to lines whose product carries no rate.
const DefaultGSTPercentage = 18.0

// Line describes one cart line used for tax calculation. Nil pointers fall
// back to the documented defaults: DefaultGSTPercentage and tax-inclusive
// pricing.
type Line struct {
	ProductID           string
	Quantity            int
	UnitPrice           float64
	OriginalPrice       *float64
	GSTPercentage       *float64
	PriceInclusiveOfTax *bool
}

// GSTOptions carries the jurisdiction and the caller-resolved charges.
type GSTOptions struct {
	CustomerState string
	BusinessState string
	Shipping      float64
	Discount      float64
	// DefaultRate overrides DefaultGSTPercentage when positive.
	DefaultRate float64
}

// LineTax is the per-line result of ComputeGST.
type LineTax struct {
	ProductID     string  `json:"productId"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unitPrice"`
	GSTPercentage float64 `json:"gstPercentage"`
	Inclusive     bool    `json:"priceInclusiveOfTax"`
	LineTotal     float64 `json:"lineTotal"`
	TaxableValue  float64 `json:"taxableValue"`
	GSTAmount     float64 `json:"gstAmount"`
}

// Breakdown aggregates the computed tax components. Exactly one of
// CGST/SGST or IGST is set; CGST always equals SGST.
type Breakdown struct {
	Subtotal float64   `json:"subtotal"`
	TotalTax float64   `json:"totalTax"`
	CGST     *float64  `json:"cgst,omitempty"`
	SGST     *float64  `json:"sgst,omitempty"`
	IGST     *float64  `json:"igst,omitempty"`
	Shipping float64   `json:"shipping"`
	Discount float64   `json:"discount"`
	Total    float64   `json:"total"`
	Lines    []LineTax `json:"lines"`
}

// IntraState reports whether the breakdown uses the CGST+SGST split.
func (b Breakdown) IntraState() bool {
	return b.IGST == nil
}

// SameState reports whether a sale from businessState to customerState is intra-state.
// An unknown state on either side is treated as inter-state.
func SameState(customerState, businessState string) bool {
	c, b := strings.TrimSpace(customerState), strings.TrimSpace(businessState)
	return c != "" && b != "" && strings.EqualFold(c, b)
}

// ComputeGST calculates taxable value, GST and grand total for lines.
// Values are kept unrounded; callers round only for display. The total is
// not clamped, so a discount larger than the rest yields a negative total.
func ComputeGST(lines []Line, opts GSTOptions) Breakdown {
	defaultRate := DefaultGSTPercentage
	if opts.DefaultRate > 0 {
		defaultRate = opts.DefaultRate
	}

	out := Breakdown{
		Shipping: opts.Shipping,
		Discount: opts.Discount,
		Lines:    make([]LineTax, 0, len(lines)),
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		rate := defaultRate
		if line.GSTPercentage != nil {
			rate = *line.GSTPercentage
		}
		inclusive := true
		if line.PriceInclusiveOfTax != nil {
			inclusive = *line.PriceInclusiveOfTax
		}

		lineTotal := line.UnitPrice * float64(line.Quantity)
		var taxable, tax float64
		if inclusive {
			taxable = lineTotal * 100 / (100 + rate)
			tax = lineTotal - taxable
		} else {
			taxable = lineTotal
			tax = taxable * rate / 100
			lineTotal = taxable + tax
		}

		out.Subtotal += taxable
		out.TotalTax += tax
		out.Lines = append(out.Lines, LineTax{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			GSTPercentage: rate,
			Inclusive:     inclusive,
			LineTotal:     lineTotal,
			TaxableValue:  taxable,
			GSTAmount:     tax,
		})
	}

	if SameState(opts.CustomerState, opts.BusinessState) {
		half := out.TotalTax / 2
		cgst, sgst := half, half
		out.CGST = &cgst
		out.SGST = &sgst
	} else {
		igst := out.TotalTax
		out.IGST = &igst
	}
	out.Total = out.Subtotal + out.TotalTax + out.Shipping - out.Discount
	return out
}
