package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const addressColumns = `id, user_id, label, receiver_name, phone, line1, line2, city, state, postal_code, country,
gstin, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (Address, error) {
	var i Address
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Label,
		&i.ReceiverName,
		&i.Phone,
		&i.Line1,
		&i.Line2,
		&i.City,
		&i.State,
		&i.PostalCode,
		&i.Country,
		&i.Gstin,
		&i.IsDefault,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listAddressesByUser = `-- name: ListAddressesByUser :many
SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`

func (q *Queries) ListAddressesByUser(ctx context.Context, userID pgtype.UUID) ([]Address, error) {
	rows, err := q.db.Query(ctx, listAddressesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Address
	for rows.Next() {
		i, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getAddressForUser = `-- name: GetAddressForUser :one
SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`

type GetAddressForUserParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

func (q *Queries) GetAddressForUser(ctx context.Context, arg GetAddressForUserParams) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, getAddressForUser, arg.ID, arg.UserID))
}

const createAddress = `-- name: CreateAddress :one
INSERT INTO addresses (user_id, label, receiver_name, phone, line1, line2, city, state, postal_code, country, gstin, is_default)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + addressColumns

type CreateAddressParams struct {
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
}

func (q *Queries) CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error) {
	row := q.db.QueryRow(ctx, createAddress,
		arg.UserID,
		arg.Label,
		arg.ReceiverName,
		arg.Phone,
		arg.Line1,
		arg.Line2,
		arg.City,
		arg.State,
		arg.PostalCode,
		arg.Country,
		arg.Gstin,
		arg.IsDefault,
	)
	return scanAddress(row)
}

const updateAddress = `-- name: UpdateAddress :one
UPDATE addresses SET label = $3, receiver_name = $4, phone = $5, line1 = $6, line2 = $7, city = $8,
  state = $9, postal_code = $10, country = $11, gstin = $12, is_default = $13, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + addressColumns

type UpdateAddressParams struct {
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
}

func (q *Queries) UpdateAddress(ctx context.Context, arg UpdateAddressParams) (Address, error) {
	row := q.db.QueryRow(ctx, updateAddress,
		arg.ID,
		arg.UserID,
		arg.Label,
		arg.ReceiverName,
		arg.Phone,
		arg.Line1,
		arg.Line2,
		arg.City,
		arg.State,
		arg.PostalCode,
		arg.Country,
		arg.Gstin,
		arg.IsDefault,
	)
	return scanAddress(row)
}

const deleteAddress = `-- name: DeleteAddress :execrows
DELETE FROM addresses WHERE id = $1 AND user_id = $2`

type DeleteAddressParams struct {
	ID     pgtype.UUID
	UserID pgtype.UUID
}

func (q *Queries) DeleteAddress(ctx context.Context, arg DeleteAddressParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteAddress, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const unsetDefaultAddresses = `-- name: UnsetDefaultAddresses :exec
UPDATE addresses SET is_default = FALSE, updated_at = now() WHERE user_id = $1 AND is_default`

func (q *Queries) UnsetDefaultAddresses(ctx context.Context, userID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, unsetDefaultAddresses, userID)
	return err
}
