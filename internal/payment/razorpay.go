package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-parfum/internal/resilience"
)

const defaultRazorpayURL = "https://api.razorpay.com"

// Razorpay opens orders through the Razorpay Orders API.
type Razorpay struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	client    resilience.HTTPClient
}

// NewRazorpay builds a client with tracing, retries and a circuit breaker.
func NewRazorpay(keyID, keySecret, baseURL string) *Razorpay {
	return &Razorpay{
		KeyID:     strings.TrimSpace(keyID),
		KeySecret: strings.TrimSpace(keySecret),
		BaseURL:   baseURL,
		client: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("razorpay"),
			MaxAttempts: 3,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
			Timeout:     10 * time.Second,
		},
	}
}

// Name implements Gateway.
func (r *Razorpay) Name() string { return "razorpay" }

func (r *Razorpay) host() string {
	host := strings.TrimSpace(r.BaseURL)
	if host == "" {
		return defaultRazorpayURL
	}
	return strings.TrimRight(host, "/")
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder implements Gateway.
func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if r.KeyID == "" || r.KeySecret == "" {
		return Order{}, errors.New("payment: razorpay credentials are not configured")
	}
	if req.Amount <= 0 {
		return Order{}, fmt.Errorf("payment: amount must be positive, got %d", req.Amount)
	}
	body, err := json.Marshal(map[string]any{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    req.Notes,
	})
	if err != nil {
		return Order{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.host()+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, err
	}
	httpReq.SetBasicAuth(r.KeyID, r.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(ctx, httpReq)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr razorpayError
		_ = json.Unmarshal(raw, &apiErr)
		return Order{}, fmt.Errorf("payment: razorpay %d %s: %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
	}
	var created razorpayOrder
	if err := json.Unmarshal(raw, &created); err != nil {
		return Order{}, fmt.Errorf("payment: decode razorpay order: %w", err)
	}
	return Order{
		ID:       created.ID,
		Amount:   created.Amount,
		Currency: created.Currency,
		KeyID:    r.KeyID,
		Provider: r.Name(),
	}, nil
}
