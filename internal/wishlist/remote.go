package wishlist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-parfum/internal/db"
)

// Find implements guest.Remote. Wishlist entries always report quantity 1.
func (s *Service) Find(ctx context.Context, userID, productID string) (int, bool, error) {
	if err := s.ready(); err != nil {
		return 0, false, err
	}
	uid, pid, err := ids(userID, productID)
	if err != nil {
		return 0, false, err
	}
	if _, err := s.Q.GetWishlistItem(ctx, db.GetWishlistItemParams{UserID: uid, ProductID: pid}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return 1, true, nil
}

// Create implements guest.Remote; qty is ignored. A row inserted concurrently
// by another request is not an error.
func (s *Service) Create(ctx context.Context, userID, productID string, _ int) error {
	err := s.Add(ctx, userID, productID)
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

// SetQuantity implements guest.Remote. Wishlists carry no quantities.
func (s *Service) SetQuantity(context.Context, string, string, int) error {
	return nil
}
