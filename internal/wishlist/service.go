package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
)

// ErrDuplicate is returned when the product is already on the wishlist.
var ErrDuplicate = errors.New("wishlist: product already saved")

// ErrInvalidInput is returned when an identifier cannot be parsed.
var ErrInvalidInput = fmt.Errorf("wishlist: %w", common.ErrInvalidInput)

type Queries interface {
	GetWishlistItem(ctx context.Context, arg db.GetWishlistItemParams) (db.WishlistItem, error)
	ListWishlistLines(ctx context.Context, userID pgtype.UUID) ([]db.WishlistLine, error)
	InsertWishlistItem(ctx context.Context, arg db.InsertWishlistItemParams) (int64, error)
	DeleteWishlistItem(ctx context.Context, arg db.DeleteWishlistItemParams) error
	ClearWishlist(ctx context.Context, userID pgtype.UUID) error
	GetProductByID(ctx context.Context, id pgtype.UUID) (db.Product, error)
}

// Line is a saved product as shown to the shopper.
type Line struct {
	ProductID     string    `json:"productId"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Price         float64   `json:"price"`
	OriginalPrice *float64  `json:"originalPrice,omitempty"`
	Image         string    `json:"image,omitempty"`
	AddedAt       time.Time `json:"addedAt"`
}

type Service struct {
	Q      Queries
	Events events.Publisher
	Now    func() time.Time
}

func (s *Service) ready() error {
	if s == nil || s.Q == nil {
		return errors.New("wishlist service not configured")
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
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

// Lines lists the wishlist, newest first.
func (s *Service) Lines(ctx context.Context, userID string) ([]Line, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	uid, err := common.ToUUID(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", ErrInvalidInput)
	}
	rows, err := s.Q.ListWishlistLines(ctx, uid)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		l := Line{
			ProductID:     common.UUIDString(row.ProductID),
			Name:          row.ProductName,
			Slug:          row.ProductSlug,
			Price:         row.Price,
			OriginalPrice: common.NullableFloat(row.OriginalPrice),
			AddedAt:       row.CreatedAt.Time,
		}
		if len(row.Images) > 0 {
			l.Image = row.Images[0]
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// Add saves productID. A product already saved yields ErrDuplicate.
func (s *Service) Add(ctx context.Context, userID, productID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	uid, pid, err := ids(userID, productID)
	if err != nil {
		return err
	}
	if err := s.ensureProduct(ctx, pid); err != nil {
		return err
	}
	n, err := s.Q.InsertWishlistItem(ctx, db.InsertWishlistItemParams{UserID: uid, ProductID: pid})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicate
	}
	s.publish(ctx, userID)
	return nil
}

func (s *Service) ensureProduct(ctx context.Context, pid pgtype.UUID) error {
	product, err := s.Q.GetProductByID(ctx, pid)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !product.IsActive) {
		return fmt.Errorf("product: %w", common.ErrNotFound)
	}
	return err
}

// Remove deletes productID from the wishlist.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	uid, pid, err := ids(userID, productID)
	if err != nil {
		return err
	}
	if err := s.Q.DeleteWishlistItem(ctx, db.DeleteWishlistItemParams{UserID: uid, ProductID: pid}); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

// Clear empties the wishlist.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	uid, err := common.ToUUID(userID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", ErrInvalidInput)
	}
	if err := s.Q.ClearWishlist(ctx, uid); err != nil {
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
		Topic: events.TopicWishlistUpdated,
		Owner: events.UserOwner(userID),
		List:  "wishlist",
		Items: payload,
		At:    s.now(),
	})
}
