package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-parfum/internal/db"
)

// Find implements guest.Remote.
func (s *Service) Find(ctx context.Context, userID, productID string) (int, bool, error) {
	if err := s.ready(); err != nil {
		return 0, false, err
	}
	uid, pid, err := ids(userID, productID)
	if err != nil {
		return 0, false, err
	}
	item, err := s.Q.GetCartItem(ctx, db.GetCartItemParams{UserID: uid, ProductID: pid})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return int(item.Quantity), true, nil
}

// Create implements guest.Remote. Migrated lines skip stock checks; checkout
// validates stock again. Quantities are clamped to the line limit.
func (s *Service) Create(ctx context.Context, userID, productID string, qty int) error {
	if err := s.ready(); err != nil {
		return err
	}
	uid, pid, err := ids(userID, productID)
	if err != nil {
		return err
	}
	if _, err := s.product(ctx, pid); err != nil {
		return err
	}
	if _, err := s.Q.InsertCartItem(ctx, db.InsertCartItemParams{UserID: uid, ProductID: pid, Quantity: int32(min(qty, s.maxQty()))}); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

// SetQuantity implements guest.Remote, clamping qty to the line limit.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, qty int) error {
	if err := s.ready(); err != nil {
		return err
	}
	uid, pid, err := ids(userID, productID)
	if err != nil {
		return err
	}
	if _, err := s.Q.SetCartItemQuantity(ctx, db.SetCartItemQuantityParams{UserID: uid, ProductID: pid, Quantity: int32(min(qty, s.maxQty()))}); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}
