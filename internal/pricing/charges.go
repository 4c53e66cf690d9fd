package pricing

// ChargeSettings are the storefront rules for shipping and bulk discounts.
type ChargeSettings struct {
	FreeShippingThreshold float64 `json:"freeShippingThreshold"`
	ShippingCharge        float64 `json:"shippingCharge"`
	BulkDiscountThreshold int     `json:"bulkDiscountThreshold"`
	BulkDiscountPercent   float64 `json:"bulkDiscountPercent"`
}

// Charges are the resolved inputs fed into GSTOptions.
type Charges struct {
	Shipping float64 `json:"shipping"`
	Discount float64 `json:"discount"`
}

// ResolveCharges derives shipping and discount for a cart. orderValue is the
// tax-inclusive merchandise value and itemCount the total quantity. Shipping
// is waived once orderValue reaches a positive free-shipping threshold; the
// bulk discount applies to orderValue once itemCount reaches its threshold.
func ResolveCharges(s ChargeSettings, orderValue float64, itemCount int) Charges {
	var c Charges
	if itemCount <= 0 {
		return c
	}
	c.Shipping = s.ShippingCharge
	if s.FreeShippingThreshold > 0 && orderValue >= s.FreeShippingThreshold {
		c.Shipping = 0
	}
	if s.BulkDiscountThreshold > 0 && s.BulkDiscountPercent > 0 && itemCount >= s.BulkDiscountThreshold {
		c.Discount = orderValue * s.BulkDiscountPercent / 100
	}
	return c
}

// OrderValue sums the tax-inclusive value of lines, the figure thresholds compare against.
func OrderValue(lines []Line, defaultRate float64) (value float64, count int) {
	if defaultRate <= 0 {
		defaultRate = DefaultGSTPercentage
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		lineTotal := line.UnitPrice * float64(line.Quantity)
		if line.PriceInclusiveOfTax != nil && !*line.PriceInclusiveOfTax {
			rate := defaultRate
			if line.GSTPercentage != nil {
				rate = *line.GSTPercentage
			}
			lineTotal += lineTotal * rate / 100
		}
		value += lineTotal
		count += line.Quantity
	}
	return value, count
}

// Quote resolves charges from settings and computes the breakdown in one step.
func Quote(lines []Line, s ChargeSettings, opts GSTOptions) Breakdown {
	value, count := OrderValue(lines, opts.DefaultRate)
	charges := ResolveCharges(s, value, count)
	opts.Shipping = charges.Shipping
	opts.Discount = charges.Discount
	return ComputeGST(lines, opts)
}
