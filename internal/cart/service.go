package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/pricing"
)

// ErrNotFound indicates the product is not in the cart.
var ErrNotFound = fmt.Errorf("cart item: %w", common.ErrNotFound)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = fmt.Errorf("cart: %w", common.ErrInvalidInput)

// Queries is the subset of db.Queries the cart needs.
type Queries interface {
	GetCartItem(ctx context.Context, arg db.GetCartItemParams) (db.CartItem, error)
	ListCartLines(ctx context.Context, userID pgtype.UUID) ([]db.CartLine, error)
	InsertCartItem(ctx context.Context, arg db.InsertCartItemParams) (db.CartItem, error)
	IncrementCartItem(ctx context.Context, arg db.IncrementCartItemParams) (db.CartItem, error)
	SetCartItemQuantity(ctx context.Context, arg db.SetCartItemQuantityParams) (int64, error)
	DeleteCartItem(ctx context.Context, arg db.DeleteCartItemParams) error
	ClearCart(ctx context.Context, userID pgtype.UUID) error
	GetProductByID(ctx context.Context, id pgtype.UUID) (db.Product, error)
}

// Line is a cart row joined with the product data the storefront shows.
type Line struct {
	ProductID           string   `json:"productId"`
	Name                string   `json:"name"`
	Slug                string   `json:"slug"`
	Quantity            int      `json:"quantity"`
	Price               float64  `json:"price"`
	OriginalPrice       *float64 `json:"originalPrice,omitempty"`
	GSTPercentage       *float64 `json:"gstPercentage,omitempty"`
	PriceInclusiveOfTax *bool    `json:"priceInclusiveOfTax,omitempty"`
	HSNCode             string   `json:"hsnCode,omitempty"`
	Stock               int      `json:"stock"`
	Image               string   `json:"image,omitempty"`
}

// PricingLine converts the line for tax computation.
func (l Line) PricingLine() pricing.Line {
	return pricing.Line{
		ProductID:           l.ProductID,
		Quantity:            l.Quantity,
		UnitPrice:           l.Price,
		OriginalPrice:       l.OriginalPrice,
		GSTPercentage:       l.GSTPercentage,
		PriceInclusiveOfTax: l.PriceInclusiveOfTax,
	}
}

// Service encapsulates the authenticated shopper's cart.
type Service struct {
	Q      Queries
	Events events.Publisher
	Now    func() time.Time
	// MaxQuantity caps a single line, 0 means DefaultMaxQuantity.
	MaxQuantity int
}

// DefaultMaxQuantity is the per-line cap when none is configured.
const DefaultMaxQuantity = 99

func (s *Service) maxQty() int {
	if s == nil {
		return DefaultMaxQuantity
	}
	return LineLimit(s.MaxQuantity)
}

// LineLimit returns limit, or DefaultMaxQuantity when limit is not positive.
func LineLimit(limit int) int {
	if limit <= 0 {
		return DefaultMaxQuantity
	}
	return limit
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.Q == nil {
		return errors.New("cart service not configured")
	}
	return nil
}

func ids(userID, productID string) (pgtype.UUID, pgtype.UUID, error) {
	uid, err := common.ToUUID(userID)
	if err != nil {
		return pgtype.UUID{}, pgtype.UUID{}, fmt.Errorf("parse user id: %w", ErrInvalidInput)
	}
	pid, err := common.ToUUID(productID)
	if err != nil {
		return pgtype.UUID{}, pgtype.UUID{}, fmt.Errorf("parse product id: %w", ErrInvalidInput)
	}
	return uid, pid, nil
}

// Lines returns the user's cart in insertion order.
func (s *Service) Lines(ctx context.Context, userID string) ([]Line, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	uid, err := common.ToUUID(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", ErrInvalidInput)
	}
	rows, err := s.Q.ListCartLines(ctx, uid)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, lineFromRow(row))
	}
	return lines, nil
}

func lineFromRow(row db.CartLine) Line {
	l := Line{
		ProductID:     common.UUIDString(row.ProductID),
		Name:          row.ProductName,
		Slug:          row.ProductSlug,
		Quantity:      int(row.Quantity),
		Price:         row.Price,
		OriginalPrice: common.NullableFloat(row.OriginalPrice),
		GSTPercentage: common.NullableFloat(row.GstPercentage),
		HSNCode:       row.HsnCode.String,
		Stock:         int(row.Stock),
	}
	if row.PriceInclusiveOfTax.Valid {
		v := row.PriceInclusiveOfTax.Bool
		l.PriceInclusiveOfTax = &v
	}
	if len(row.Images) > 0 {
		l.Image = row.Images[0]
	}
	return l
}

func (s *Service) product(ctx context.Context, pid pgtype.UUID) (db.Product, error) {
	product, err := s.Q.GetProductByID(ctx, pid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Product{}, fmt.Errorf("product: %w", common.ErrNotFound)
		}
		return db.Product{}, err
	}
	if !product.IsActive {
		return db.Product{}, fmt.Errorf("product: %w", common.ErrNotFound)
	}
	return product, nil
}

func (s *Service) checkStock(product db.Product, qty int) error {
	return CheckQuantity(product, qty, s.maxQty())
}

// CheckQuantity rejects a line of qty units above limit or above the product's stock.
func CheckQuantity(product db.Product, qty, limit int) error {
	if qty > limit {
		return common.NewAppError("QUANTITY_LIMIT", fmt.Sprintf("at most %d units per product", limit), http.StatusUnprocessableEntity, ErrInvalidInput)
	}
	if int(product.Stock) < qty {
		appErr := common.NewAppError("OUT_OF_STOCK", "not enough stock", http.StatusConflict, ErrInvalidInput)
		appErr.Details = map[string]any{"available": product.Stock}
		return appErr
	}
	return nil
}

// Add inserts productID or increments its quantity.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	uid, pid, err := ids(userID, productID)
	if err != nil {
		return err
	}
	product, err := s.product(ctx, pid)
	if err != nil {
		return err
	}
	current := 0
	existing, err := s.Q.GetCartItem(ctx, db.GetCartItemParams{UserID: uid, ProductID: pid})
	switch {
	case err == nil:
		current = int(existing.Quantity)
	case !errors.Is(err, pgx.ErrNoRows):
		return err
	}
	if err := s.checkStock(product, current+qty); err != nil {
		return err
	}
	if _, err := s.Q.IncrementCartItem(ctx, db.IncrementCartItemParams{UserID: uid, ProductID: pid, Quantity: int32(qty)}); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

// UpdateQuantity sets the line quantity; qty <= 0 removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, qty int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if qty <= 0 {
		return s.Remove(ctx, userID, productID)
	}
	uid, pid, err := ids(userID, productID)
	if err != nil {
		return err
	}
	product, err := s.product(ctx, pid)
	if err != nil {
		return err
	}
	if err := s.checkStock(product, qty); err != nil {
		return err
	}
	n, err := s.Q.SetCartItemQuantity(ctx, db.SetCartItemQuantityParams{UserID: uid, ProductID: pid, Quantity: int32(qty)})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	s.publish(ctx, userID)
	return nil
}

// Remove deletes the line for productID.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	uid, pid, err := ids(userID, productID)
	if err != nil {
		return err
	}
	if err := s.Q.DeleteCartItem(ctx, db.DeleteCartItemParams{UserID: uid, ProductID: pid}); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	uid, err := common.ToUUID(userID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", ErrInvalidInput)
	}
	if err := s.Q.ClearCart(ctx, uid); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

func (s *Service) publish(ctx context.Context, userID string) {
	if s.Events == nil {
		return
	}
	lines, err := s.Lines(ctx, userID)
	if err != nil {
		return
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return
	}
	s.Events.Publish(ctx, events.ListChange{
		Topic: events.TopicCartUpdated,
		Owner: events.UserOwner(userID),
		List:  "cart",
		Items: payload,
		At:    s.now(),
	})
}
