package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/invoice"
	"github.com/noah-isme/backend-parfum/internal/settings"
)

var (
	errNotFound     = common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, common.ErrNotFound)
	errUnauthorized = common.NewAppError("UNAUTHORIZED", "authentication required", http.StatusUnauthorized, common.ErrUnauthorized)
)

// Queries lists the order statements used by the service.
type Queries interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (db.Order, error)
	GetOrderForUser(ctx context.Context, arg db.GetOrderForUserParams) (db.Order, error)
	ListOrdersByUser(ctx context.Context, arg db.ListOrdersByUserParams) ([]db.Order, error)
	CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	ListOrders(ctx context.Context, arg db.ListOrdersParams) ([]db.Order, error)
	CountOrders(ctx context.Context, status string) (int64, error)
	UpdateOrderStatus(ctx context.Context, arg db.UpdateOrderStatusParams) (db.Order, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]db.OrderItem, error)
}

// SettingsReader supplies the seller block for invoices.
type SettingsReader interface {
	Get(ctx context.Context) (settings.Site, error)
}

// Billing is the address snapshot stored with each order.
type Billing struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	GSTIN      string `json:"gstin,omitempty"`
}

// Item is an order line as returned by the API.
type Item struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	HSNCode       string  `json:"hsnCode,omitempty"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unitPrice"`
	GSTPercentage float64 `json:"gstPercentage"`
	TaxableValue  float64 `json:"taxableValue"`
	GSTAmount     float64 `json:"gstAmount"`
	LineTotal     float64 `json:"lineTotal"`
}

// Order is the API representation of a placed order.
type Order struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	InvoiceNumber  string    `json:"invoiceNumber"`
	Status         string    `json:"status"`
	Currency       string    `json:"currency"`
	Subtotal       float64   `json:"subtotal"`
	TotalTax       float64   `json:"totalTax"`
	CGST           *float64  `json:"cgst,omitempty"`
	SGST           *float64  `json:"sgst,omitempty"`
	IGST           *float64  `json:"igst,omitempty"`
	Shipping       float64   `json:"shipping"`
	Discount       float64   `json:"discount"`
	Total          float64   `json:"total"`
	BillingAddress Billing   `json:"billingAddress"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	PaymentID      string    `json:"paymentId"`
	CreatedAt      time.Time `json:"createdAt"`
	Items          []Item    `json:"items,omitempty"`
}

// FromRows converts an order row and its items.
func FromRows(row db.Order, items []db.OrderItem) Order {
	o := Order{
		ID:             common.UUIDString(row.ID),
		UserID:         common.UUIDString(row.UserID),
		InvoiceNumber:  row.InvoiceNumber,
		Status:         string(row.Status),
		Currency:       row.Currency,
		Subtotal:       row.Subtotal,
		TotalTax:       row.TotalTax,
		CGST:           common.NullableFloat(row.Cgst),
		SGST:           common.NullableFloat(row.Sgst),
		IGST:           common.NullableFloat(row.Igst),
		Shipping:       row.Shipping,
		Discount:       row.Discount,
		Total:          row.Total,
		GatewayOrderID: row.GatewayOrderID,
		PaymentID:      row.PaymentID,
	}
	if row.CreatedAt.Valid {
		o.CreatedAt = row.CreatedAt.Time
	}
	if len(row.BillingAddress) > 0 {
		_ = json.Unmarshal(row.BillingAddress, &o.BillingAddress)
	}
	for _, it := range items {
		o.Items = append(o.Items, Item{
			ProductID:     common.UUIDString(it.ProductID),
			Name:          it.ProductName,
			HSNCode:       it.HsnCode.String,
			Quantity:      int(it.Quantity),
			UnitPrice:     it.UnitPrice,
			GSTPercentage: it.GstPercentage,
			TaxableValue:  it.TaxableValue,
			GSTAmount:     it.GstAmount,
			LineTotal:     it.LineTotal,
		})
	}
	return o
}

// InvoiceData maps an order onto the invoice renderer input.
func InvoiceData(o Order, business settings.Business) invoice.Data {
	d := invoice.Data{
		Business: invoice.Business{
			Name:    business.Name,
			Address: business.Address,
			State:   business.State,
			GSTIN:   business.GSTIN,
			Email:   business.Email,
			Phone:   business.Phone,
		},
		InvoiceNumber: o.InvoiceNumber,
		Date:          o.CreatedAt,
		Customer:      invoice.Party(o.BillingAddress),
		Currency:      o.Currency,
		Subtotal:      o.Subtotal,
		TotalTax:      o.TotalTax,
		CGST:          o.CGST,
		SGST:          o.SGST,
		IGST:          o.IGST,
		Shipping:      o.Shipping,
		Discount:      o.Discount,
		Total:         o.Total,
	}
	for _, it := range o.Items {
		d.Lines = append(d.Lines, invoice.Line{
			Name:          it.Name,
			HSNCode:       it.HSNCode,
			Quantity:      it.Quantity,
			Rate:          it.UnitPrice,
			TaxableValue:  it.TaxableValue,
			GSTPercentage: it.GSTPercentage,
			GSTAmount:     it.GSTAmount,
			LineTotal:     it.LineTotal,
		})
	}
	return d
}

// Service exposes order history, invoices and admin status changes.
type Service struct {
	Queries  Queries
	Settings SettingsReader
	Events   events.Emitter
	Logger   zerolog.Logger
}

func (s *Service) ready() error {
	if s == nil || s.Queries == nil {
		return errors.New("order service not configured")
	}
	return nil
}

// ListForUser returns a page of the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, page, perPage int) ([]Order, int64, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	uid, err := common.ToUUID(userID)
	if err != nil {
		return nil, 0, errUnauthorized
	}
	total, err := s.Queries.CountOrdersByUser(ctx, uid)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Queries.ListOrdersByUser(ctx, db.ListOrdersByUserParams{
		UserID: uid,
		Limit:  int32(perPage),
		Offset: common.Offset(page, perPage),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromRows(row, nil))
	}
	return out, total, nil
}

// GetForUser returns one of the user's orders with its items.
func (s *Service) GetForUser(ctx context.Context, userID, orderID string) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	uid, err := common.ToUUID(userID)
	if err != nil {
		return Order{}, errUnauthorized
	}
	oid, err := common.ToUUID(orderID)
	if err != nil {
		return Order{}, errNotFound
	}
	row, err := s.Queries.GetOrderForUser(ctx, db.GetOrderForUserParams{ID: oid, UserID: uid})
	if err != nil {
		return Order{}, notFoundOr(err)
	}
	return s.withItems(ctx, row)
}

// Get returns any order with its items.
func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	oid, err := common.ToUUID(orderID)
	if err != nil {
		return Order{}, errNotFound
	}
	row, err := s.Queries.GetOrderByID(ctx, oid)
	if err != nil {
		return Order{}, notFoundOr(err)
	}
	return s.withItems(ctx, row)
}

func (s *Service) withItems(ctx context.Context, row db.Order) (Order, error) {
	items, err := s.Queries.ListOrderItems(ctx, row.ID)
	if err != nil {
		return Order{}, fmt.Errorf("list order items: %w", err)
	}
	return FromRows(row, items), nil
}

// Invoice renders the HTML tax invoice for o.
func (s *Service) Invoice(ctx context.Context, o Order) (string, error) {
	business := settings.Defaults().Business
	if s.Settings != nil {
		site, err := s.Settings.Get(ctx)
		if err != nil {
			return "", err
		}
		business = site.Business
	}
	return invoice.Render(InvoiceData(o, business))
}

// List returns a page of all orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, page, perPage int) ([]Order, int64, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" && !db.OrderStatus(status).Valid() {
		return nil, 0, common.NewAppError("BAD_REQUEST", "unknown status filter", http.StatusBadRequest, common.ErrInvalidInput)
	}
	total, err := s.Queries.CountOrders(ctx, status)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.Queries.ListOrders(ctx, db.ListOrdersParams{
		Status: status,
		Limit:  int32(perPage),
		Offset: common.Offset(page, perPage),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	out := make([]Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromRows(row, nil))
	}
	return out, total, nil
}

// UpdateStatus moves an order along its lifecycle and emits order.status_changed.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (Order, error) {
	if err := s.ready(); err != nil {
		return Order{}, err
	}
	oid, err := common.ToUUID(orderID)
	if err != nil {
		return Order{}, errNotFound
	}
	next := db.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return Order{}, &common.AppError{
			Code:       "VALIDATION_ERROR",
			Message:    "unsupported status",
			HTTPStatus: http.StatusUnprocessableEntity,
			Err:        common.ErrInvalidInput,
			Details:    map[string]string{"status": "oneof"},
		}
	}
	current, err := s.Queries.GetOrderByID(ctx, oid)
	if err != nil {
		return Order{}, notFoundOr(err)
	}
	if current.Status == next {
		return s.withItems(ctx, current)
	}
	if !current.Status.CanTransitionTo(next) {
		return Order{}, &common.AppError{
			Code:       "INVALID_TRANSITION",
			Message:    fmt.Sprintf("cannot move order from %s to %s", current.Status, next),
			HTTPStatus: http.StatusConflict,
			Details:    map[string]string{"from": string(current.Status), "to": string(next)},
		}
	}
	updated, err := s.Queries.UpdateOrderStatus(ctx, db.UpdateOrderStatusParams{ID: oid, Status: next})
	if err != nil {
		return Order{}, notFoundOr(err)
	}
	if s.Events != nil {
		payload := map[string]any{
			"orderId":       common.UUIDString(updated.ID),
			"userId":        common.UUIDString(updated.UserID),
			"invoiceNumber": updated.InvoiceNumber,
			"from":          string(current.Status),
			"to":            string(next),
		}
		if _, err := s.Events.Emit(ctx, events.TopicOrderStatusChanged, updated.ID, payload); err != nil {
			s.Logger.Warn().Err(err).Str("order_id", payload["orderId"].(string)).Msg("emit status change failed")
		}
	}
	return s.withItems(ctx, updated)
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errNotFound
	}
	return err
}
