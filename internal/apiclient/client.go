// Package apiclient talks to the storefront HTTP API. It backs shopper.View
// in command-line tools and integration checks.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-parfum/internal/guest"
	"github.com/noah-isme/backend-parfum/internal/resilience"
	"github.com/noah-isme/backend-parfum/internal/shopper"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps well-known codes onto shopper sentinels.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "DUPLICATE":
		return shopper.ErrDuplicate
	case "GUEST_ID_REQUIRED":
		return shopper.ErrNoIdentity
	}
	return nil
}

// Config configures a Client.
type Config struct {
	BaseURL string
	GuestID string
	Token   string
	Timeout time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client is a storefront API client. It is safe for concurrent use.
type Client struct {
	base   string
	raw    *http.Client
	reads  resilience.HTTPClient
	writes resilience.HTTPClient

	mu      sync.RWMutex
	guestID string
	token   string
}

// New constructs a Client. Reads are retried on 5xx responses; writes are
// sent once.
func New(cfg Config) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	raw := &http.Client{Transport: otelhttp.NewTransport(transport)}
	breaker := resilience.NewBreaker(10, 0.5, 15*time.Second).WithTarget("storefront-api")
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		raw:     raw,
		reads:   resilience.HTTPClient{Client: raw, Breaker: breaker, MaxAttempts: 3, BaseBackoff: 100 * time.Millisecond, Jitter: 0.2, Timeout: timeout},
		writes:  resilience.HTTPClient{Client: raw, Breaker: breaker, MaxAttempts: 1, Timeout: timeout},
		guestID: cfg.GuestID,
		token:   cfg.Token,
	}
}

// GuestID returns the visitor id sent with every request.
func (c *Client) GuestID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.guestID
}

// SetToken installs the bearer token used for authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// EnsureGuest obtains a visitor id from the API unless one is set already.
func (c *Client) EnsureGuest(ctx context.Context) (string, error) {
	if id := c.GuestID(); id != "" {
		return id, nil
	}
	var out struct {
		GuestID string `json:"guestId"`
	}
	if err := c.call(ctx, http.MethodPost, "/guest", nil, &out); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.guestID = out.GuestID
	c.mu.Unlock()
	return out.GuestID, nil
}

// Login exchanges credentials for an access token and keeps it.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out struct {
		AccessToken string `json:"accessToken"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return err
	}
	c.SetToken(out.AccessToken)
	return nil
}

// Merge folds the guest lists into the signed-in account.
func (c *Client) Merge(ctx context.Context) (shopper.MergeResult, error) {
	var out shopper.MergeResult
	err := c.call(ctx, http.MethodPost, "/lists/merge", nil, &out)
	return out, err
}

// List implements shopper.Remote.
func (c *Client) List(ctx context.Context, kind guest.Kind) (shopper.Snapshot, error) {
	var out shopper.Snapshot
	err := c.call(ctx, http.MethodGet, "/"+string(kind), nil, &out)
	return out, err
}

// Add implements shopper.Remote.
func (c *Client) Add(ctx context.Context, kind guest.Kind, productID string, qty int) (shopper.Snapshot, error) {
	var out shopper.Snapshot
	body := map[string]any{"productId": productID, "quantity": qty}
	err := c.call(ctx, http.MethodPost, "/"+string(kind)+"/items", body, &out)
	return out, err
}

// UpdateQuantity implements shopper.Remote.
func (c *Client) UpdateQuantity(ctx context.Context, productID string, qty int) (shopper.Snapshot, error) {
	var out shopper.Snapshot
	err := c.call(ctx, http.MethodPatch, "/cart/items/"+url.PathEscape(productID), map[string]int{"quantity": qty}, &out)
	return out, err
}

// Remove implements shopper.Remote.
func (c *Client) Remove(ctx context.Context, kind guest.Kind, productID string) (shopper.Snapshot, error) {
	var out shopper.Snapshot
	err := c.call(ctx, http.MethodDelete, "/"+string(kind)+"/items/"+url.PathEscape(productID), nil, &out)
	return out, err
}

// Clear implements shopper.Remote.
func (c *Client) Clear(ctx context.Context, kind guest.Kind) error {
	return c.call(ctx, http.MethodDelete, "/"+string(kind), nil, nil)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.mu.RLock()
	if c.guestID != "" {
		req.Header.Set(shopper.GuestHeader, c.guestID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()
	return req, nil
}

// call sends one request and decodes the {"data": ...} envelope into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	do := c.writes
	if method == http.MethodGet {
		do = c.reads
	}
	resp, err := do.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	envelope := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
var _ shopper.Remote = (*Client)(nil)
