package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-parfum/internal/common"
)

// Mock is an offline gateway for development and tests. Orders get random
// ids and Sign produces the signature a real checkout widget would return.
type Mock struct {
	KeyID    string
	Verifier Verifier
}

// Name implements Gateway.
func (m Mock) Name() string { return "mock" }

// CreateOrder implements Gateway.
func (m Mock) CreateOrder(_ context.Context, req OrderRequest) (Order, error) {
	if req.Amount <= 0 {
		return Order{}, errors.New("payment: amount must be positive")
	}
	keyID := m.KeyID
	if keyID == "" {
		keyID = "rzp_test_mock"
	}
	return Order{
		ID:       "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Amount:   req.Amount,
		Currency: req.Currency,
		KeyID:    keyID,
		Provider: m.Name(),
	}, nil
}

// Pay simulates a successful payment, returning a payment id and its signature.
func (m Mock) Pay(gatewayOrderID string) (paymentID, signature string) {
	paymentID = "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return paymentID, m.Verifier.Sign(gatewayOrderID, paymentID)
}

// PayHandler handles POST /api/v1/payments/mock/{gatewayOrderId}/pay. It is
// mounted only for the mock gateway outside production and returns the
// fields the storefront then posts to /checkout/verify.
func (m Mock) PayHandler(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "gatewayOrderId"))
	if !strings.HasPrefix(orderID, "order_") {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER", "unknown gateway order id", nil)
		return
	}
	paymentID, signature := m.Pay(orderID)
	common.Data(w, http.StatusOK, map[string]string{
		"gatewayOrderId": orderID,
		"paymentId":      paymentID,
		"signature":      signature,
	})
}
