package payment

import (
	"context"
	"errors"
	"math"
)

// ErrGatewayUnavailable is returned when the upstream gateway cannot be reached.
var ErrGatewayUnavailable = errors.New("payment: gateway unavailable")

// OrderRequest opens a payment order for Amount in the smallest currency unit.
type OrderRequest struct {
	Receipt  string
	Amount   int64
	Currency string
	Notes    map[string]string
}

// Order is what the storefront hands to the payment widget.
type Order struct {
	ID       string `json:"gatewayOrderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
	Provider string `json:"provider"`
}

// Gateway opens orders on a payment provider.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
}

// MinorUnits converts a rupee amount into paise.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
