package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, name, email, password_hash, phone, roles, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Email,
		&i.PasswordHash,
		&i.Phone,
		&i.Roles,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (name, email, password_hash, phone, roles)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	Phone        pgtype.Text
	Roles        []string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.Name, arg.Email, arg.PasswordHash, arg.Phone, arg.Roles)
	return scanUser(row)
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const listUsers = `-- name: ListUsers :many
SELECT ` + userColumns + ` FROM users
WHERE ($1::text = '' OR lower(email) LIKE '%' || lower($1) || '%' OR lower(name) LIKE '%' || lower($1) || '%')
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListUsersParams struct {
	Query  string
	Limit  int32
	Offset int32
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers, arg.Query, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []User
	for rows.Next() {
		i, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countUsers = `-- name: CountUsers :one
SELECT count(*) FROM users
WHERE ($1::text = '' OR lower(email) LIKE '%' || lower($1) || '%' OR lower(name) LIKE '%' || lower($1) || '%')`

func (q *Queries) CountUsers(ctx context.Context, query string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countUsers, query).Scan(&count)
	return count, err
}

const updateUserRoles = `-- name: UpdateUserRoles :one
UPDATE users SET roles = $2, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

type UpdateUserRolesParams struct {
	ID    pgtype.UUID
	Roles []string
}

func (q *Queries) UpdateUserRoles(ctx context.Context, arg UpdateUserRolesParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateUserRoles, arg.ID, arg.Roles))
}

const createSession = `-- name: CreateSession :one
INSERT INTO sessions (user_id, refresh_token, user_agent, ip, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, refresh_token, user_agent, ip, expires_at, created_at`

type CreateSessionParams struct {
	UserID       pgtype.UUID
	RefreshToken string
	UserAgent    pgtype.Text
	Ip           pgtype.Text
	ExpiresAt    pgtype.Timestamptz
}

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var i Session
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.RefreshToken,
		&i.UserAgent,
		&i.Ip,
		&i.ExpiresAt,
		&i.CreatedAt,
	)
	return i, err
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRow(ctx, createSession, arg.UserID, arg.RefreshToken, arg.UserAgent, arg.Ip, arg.ExpiresAt)
	return scanSession(row)
}

const getSessionByToken = `-- name: GetSessionByToken :one
SELECT id, user_id, refresh_token, user_agent, ip, expires_at, created_at
FROM sessions WHERE refresh_token = $1`

func (q *Queries) GetSessionByToken(ctx context.Context, refreshToken string) (Session, error) {
	return scanSession(q.db.QueryRow(ctx, getSessionByToken, refreshToken))
}

const rotateSessionToken = `-- name: RotateSessionToken :one
UPDATE sessions SET refresh_token = $2, expires_at = $3
WHERE id = $1
RETURNING id, user_id, refresh_token, user_agent, ip, expires_at, created_at`

type RotateSessionTokenParams struct {
	ID           pgtype.UUID
	RefreshToken string
	ExpiresAt    pgtype.Timestamptz
}

func (q *Queries) RotateSessionToken(ctx context.Context, arg RotateSessionTokenParams) (Session, error) {
	return scanSession(q.db.QueryRow(ctx, rotateSessionToken, arg.ID, arg.RefreshToken, arg.ExpiresAt))
}

const deleteSessionByToken = `-- name: DeleteSessionByToken :exec
DELETE FROM sessions WHERE refresh_token = $1`

func (q *Queries) DeleteSessionByToken(ctx context.Context, refreshToken string) error {
	_, err := q.db.Exec(ctx, deleteSessionByToken, refreshToken)
	return err
}
