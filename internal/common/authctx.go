package common

import "context"

type ctxKey string

const (
	userIDKey  ctxKey = "auth/user-id"
	rolesKey   ctxKey = "auth/roles"
	guestIDKey ctxKey = "guest/id"
)

// WithUserID stores the authenticated user identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated user identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// WithRoles stores the roles carried by the access token.
func WithRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, rolesKey, roles)
}

// HasRole reports whether the authenticated principal carries role.
func HasRole(ctx context.Context, role string) bool {
	roles, _ := ctx.Value(rolesKey).([]string)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// WithGuestID stores the anonymous visitor identifier on the context.
func WithGuestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, guestIDKey, id)
}

// GuestID extracts the anonymous visitor identifier if present.
func GuestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(guestIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
