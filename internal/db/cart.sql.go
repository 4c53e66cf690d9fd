package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const cartItemColumns = `id, user_id, product_id, quantity, created_at, updated_at`

func scanCartItem(row interface{ Scan(...any) error }) (CartItem, error) {
	var i CartItem
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ProductID,
		&i.Quantity,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getCartItem = `-- name: GetCartItem :one
SELECT ` + cartItemColumns + ` FROM cart_items WHERE user_id = $1 AND product_id = $2`

type GetCartItemParams struct {
	UserID    pgtype.UUID
	ProductID pgtype.UUID
}

func (q *Queries) GetCartItem(ctx context.Context, arg GetCartItemParams) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, getCartItem, arg.UserID, arg.ProductID))
}

const listCartLines = `-- name: ListCartLines :many
SELECT ci.id, ci.product_id, ci.quantity, p.name, p.slug, p.price, p.original_price, p.gst_percentage,
  p.price_inclusive_of_tax, p.hsn_code, p.stock, p.images
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.user_id = $1
ORDER BY ci.created_at`

func (q *Queries) ListCartLines(ctx context.Context, userID pgtype.UUID) ([]CartLine, error) {
	rows, err := q.db.Query(ctx, listCartLines, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartLine
	for rows.Next() {
		var i CartLine
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.Quantity,
			&i.ProductName,
			&i.ProductSlug,
			&i.Price,
			&i.OriginalPrice,
			&i.GstPercentage,
			&i.PriceInclusiveOfTax,
			&i.HsnCode,
			&i.Stock,
			&i.Images,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertCartItem = `-- name: InsertCartItem :one
INSERT INTO cart_items (user_id, product_id, quantity)
VALUES ($1, $2, $3)
RETURNING ` + cartItemColumns

type InsertCartItemParams struct {
	UserID    pgtype.UUID
	ProductID pgtype.UUID
	Quantity  int32
}

func (q *Queries) InsertCartItem(ctx context.Context, arg InsertCartItemParams) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, insertCartItem, arg.UserID, arg.ProductID, arg.Quantity))
}

const incrementCartItem = `-- name: IncrementCartItem :one
INSERT INTO cart_items (user_id, product_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, product_id) DO UPDATE
SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
RETURNING ` + cartItemColumns

type IncrementCartItemParams struct {
	UserID    pgtype.UUID
	ProductID pgtype.UUID
	Quantity  int32
}

func (q *Queries) IncrementCartItem(ctx context.Context, arg IncrementCartItemParams) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, incrementCartItem, arg.UserID, arg.ProductID, arg.Quantity))
}

const setCartItemQuantity = `-- name: SetCartItemQuantity :execrows
UPDATE cart_items SET quantity = $3, updated_at = now()
WHERE user_id = $1 AND product_id = $2`

type SetCartItemQuantityParams struct {
	UserID    pgtype.UUID
	ProductID pgtype.UUID
	Quantity  int32
}

func (q *Queries) SetCartItemQuantity(ctx context.Context, arg SetCartItemQuantityParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setCartItemQuantity, arg.UserID, arg.ProductID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteCartItem = `-- name: DeleteCartItem :exec
DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

type DeleteCartItemParams struct {
	UserID    pgtype.UUID
	ProductID pgtype.UUID
}

func (q *Queries) DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) error {
	_, err := q.db.Exec(ctx, deleteCartItem, arg.UserID, arg.ProductID)
	return err
}

const clearCart = `-- name: ClearCart :exec
DELETE FROM cart_items WHERE user_id = $1`

func (q *Queries) ClearCart(ctx context.Context, userID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, clearCart, userID)
	return err
}

const getWishlistItem = `-- name: GetWishlistItem :one
SELECT id, user_id, product_id, created_at FROM wishlist_items WHERE user_id = $1 AND product_id = $2`

type GetWishlistItemParams struct {
	UserID    pgtype.UUID
	ProductID pgtype.UUID
}

func (q *Queries) GetWishlistItem(ctx context.Context, arg GetWishlistItemParams) (WishlistItem, error) {
	var i WishlistItem
	err := q.db.QueryRow(ctx, getWishlistItem, arg.UserID, arg.ProductID).Scan(
		&i.ID,
		&i.UserID,
		&i.ProductID,
		&i.CreatedAt,
	)
	return i, err
}

const listWishlistLines = `-- name: ListWishlistLines :many
SELECT w.id, w.product_id, p.name, p.slug, p.price, p.original_price, p.images, w.created_at
FROM wishlist_items w
JOIN products p ON p.id = w.product_id
WHERE w.user_id = $1
ORDER BY w.created_at DESC`

func (q *Queries) ListWishlistLines(ctx context.Context, userID pgtype.UUID) ([]WishlistLine, error) {
	rows, err := q.db.Query(ctx, listWishlistLines, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WishlistLine
	for rows.Next() {
		var i WishlistLine
		if err := rows.Scan(
			&i.ID,
			&i.ProductID,
			&i.ProductName,
			&i.ProductSlug,
			&i.Price,
			&i.OriginalPrice,
			&i.Images,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertWishlistItem = `-- name: InsertWishlistItem :execrows
INSERT INTO wishlist_items (user_id, product_id)
VALUES ($1, $2)
ON CONFLICT (user_id, product_id) DO NOTHING`

type InsertWishlistItemParams struct {
	UserID    pgtype.UUID
	ProductID pgtype.UUID
}

// InsertWishlistItem reports zero affected rows when the product is already wishlisted.
func (q *Queries) InsertWishlistItem(ctx context.Context, arg InsertWishlistItemParams) (int64, error) {
	tag, err := q.db.Exec(ctx, insertWishlistItem, arg.UserID, arg.ProductID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const deleteWishlistItem = `-- name: DeleteWishlistItem :exec
DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`

type DeleteWishlistItemParams struct {
	UserID    pgtype.UUID
	ProductID pgtype.UUID
}

func (q *Queries) DeleteWishlistItem(ctx context.Context, arg DeleteWishlistItemParams) error {
	_, err := q.db.Exec(ctx, deleteWishlistItem, arg.UserID, arg.ProductID)
	return err
}

const clearWishlist = `-- name: ClearWishlist :exec
DELETE FROM wishlist_items WHERE user_id = $1`

func (q *Queries) ClearWishlist(ctx context.Context, userID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, clearWishlist, userID)
	return err
}
