package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderStatus enumerates the lifecycle of a placed order.
type OrderStatus string

const (
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPaid:
		return next == OrderStatusProcessing || next == OrderStatusCancelled
	case OrderStatusProcessing:
		return next == OrderStatusShipped || next == OrderStatusCancelled
	case OrderStatusShipped:
		return next == OrderStatusDelivered
	}
	return false
}

type User struct {
	ID           pgtype.UUID        `json:"id"`
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	PasswordHash string             `json:"-"`
	Phone        pgtype.Text        `json:"phone"`
	Roles        []string           `json:"roles"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type Session struct {
	ID           pgtype.UUID
	UserID       pgtype.UUID
	RefreshToken string
	UserAgent    pgtype.Text
	Ip           pgtype.Text
	ExpiresAt    pgtype.Timestamptz
	CreatedAt    pgtype.Timestamptz
}

type Category struct {
	ID          pgtype.UUID
	Name        string
	Slug        string
	Description pgtype.Text
	SortOrder   int32
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

type Product struct {
	ID                  pgtype.UUID
	CategoryID          pgtype.UUID
	Name                string
	Slug                string
	Brand               string
	Description         pgtype.Text
	Price               float64
	OriginalPrice       pgtype.Float8
	GstPercentage       pgtype.Float8
	PriceInclusiveOfTax pgtype.Bool
	HsnCode             pgtype.Text
	Stock               int32
	SizeMl              pgtype.Int4
	Concentration       pgtype.Text
	Images              []string
	IsActive            bool
	CreatedAt           pgtype.Timestamptz
	UpdatedAt           pgtype.Timestamptz
}

type CartItem struct {
	ID        pgtype.UUID
	UserID    pgtype.UUID
	ProductID pgtype.UUID
	Quantity  int32
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// CartLine is a cart row joined with the product it references.
type CartLine struct {
	ID                  pgtype.UUID
	ProductID           pgtype.UUID
	Quantity            int32
	ProductName         string
	ProductSlug         string
	Price               float64
	OriginalPrice       pgtype.Float8
	GstPercentage       pgtype.Float8
	PriceInclusiveOfTax pgtype.Bool
	HsnCode             pgtype.Text
	Stock               int32
	Images              []string
}

type WishlistItem struct {
	ID        pgtype.UUID
	UserID    pgtype.UUID
	ProductID pgtype.UUID
	CreatedAt pgtype.Timestamptz
}

// WishlistLine is a wishlist row joined with its product.
type WishlistLine struct {
	ID            pgtype.UUID
	ProductID     pgtype.UUID
	ProductName   string
	ProductSlug   string
	Price         float64
	OriginalPrice pgtype.Float8
	Images        []string
	CreatedAt     pgtype.Timestamptz
}

type Address struct {
	ID           pgtype.UUID
	UserID       pgtype.UUID
	Label        pgtype.Text
	ReceiverName string
	Phone        string
	Line1        string
	Line2        pgtype.Text
	City         string
	State        string
	PostalCode   string
	Country      string
	Gstin        pgtype.Text
	IsDefault    bool
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

type Order struct {
	ID             pgtype.UUID
	UserID         pgtype.UUID
	InvoiceNumber  string
	Status         OrderStatus
	Currency       string
	Subtotal       float64
	TotalTax       float64
	Cgst           pgtype.Float8
	Sgst           pgtype.Float8
	Igst           pgtype.Float8
	Shipping       float64
	Discount       float64
	Total          float64
	BillingAddress []byte
	GatewayOrderID string
	PaymentID      string
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

type OrderItem struct {
	ID            pgtype.UUID
	OrderID       pgtype.UUID
	ProductID     pgtype.UUID
	ProductName   string
	HsnCode       pgtype.Text
	Quantity      int32
	UnitPrice     float64
	GstPercentage float64
	TaxableValue  float64
	GstAmount     float64
	LineTotal     float64
}

type SiteSetting struct {
	Key       string
	Value     []byte
	UpdatedAt pgtype.Timestamptz
}

type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}
