package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
)

var knownRoles = []string{RoleCustomer, RoleAdmin}

// ListUsers returns a page of accounts matching query by name or email.
func (s *Service) ListUsers(ctx context.Context, query string, page, perPage int) ([]User, int64, error) {
	query = strings.TrimSpace(query)
	rows, err := s.queries.ListUsers(ctx, db.ListUsersParams{
		Query:  query,
		Limit:  int32(perPage),
		Offset: common.Offset(page, perPage),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	total, err := s.queries.CountUsers(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	users := make([]User, 0, len(rows))
	for _, row := range rows {
		users = append(users, convertUser(row))
	}
	return users, total, nil
}

// SetRoles replaces the roles of userID. Unknown role names are rejected and
// every account keeps the customer role.
func (s *Service) SetRoles(ctx context.Context, userID string, roles []string) (User, error) {
	id, err := common.ToUUID(userID)
	if err != nil {
		return User{}, common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, common.ErrNotFound)
	}
	normalized := []string{RoleCustomer}
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if !slices.Contains(knownRoles, role) {
			appErr := common.NewAppError("VALIDATION_ERROR", "unknown role", http.StatusUnprocessableEntity, common.ErrInvalidInput)
			appErr.Details = map[string]string{"roles": role}
			return User{}, appErr
		}
		if !slices.Contains(normalized, role) {
			normalized = append(normalized, role)
		}
	}
	row, err := s.queries.UpdateUserRoles(ctx, db.UpdateUserRolesParams{ID: id, Roles: normalized})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, common.ErrNotFound)
		}
		return User{}, fmt.Errorf("update roles: %w", err)
	}
	return convertUser(row), nil
}
