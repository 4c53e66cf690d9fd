package shopper

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/obs"
)

// GuestHeader carries the anonymous visitor id issued by POST /guest.
const GuestHeader = "X-Guest-ID"

// Identity is who a cart or wishlist request acts for. UserID wins when both
// are set; GuestID then names the list awaiting migration.
type Identity struct {
	GuestID string
	UserID  string
}

// Authenticated reports whether an account backs the request.
func (id Identity) Authenticated() bool { return id.UserID != "" }

// Anonymous reports whether neither a guest nor an account is known.
func (id Identity) Anonymous() bool { return id.UserID == "" && id.GuestID == "" }

// IdentityFrom reads the identity placed on ctx by auth and GuestMiddleware.
func IdentityFrom(ctx context.Context) Identity {
	var id Identity
	id.UserID, _ = common.UserID(ctx)
	id.GuestID, _ = common.GuestID(ctx)
	return id
}

// NewGuestID issues a fresh visitor id.
func NewGuestID() string { return uuid.NewString() }

// GuestMiddleware attaches a well-formed X-Guest-ID to the request context.
// Malformed values are ignored so a stale client never blocks browsing.
func GuestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(GuestHeader))
		if raw != "" {
			if parsed, err := uuid.Parse(raw); err == nil {
				id := parsed.String()
				ctx := common.WithGuestID(r.Context(), id)
				obs.Annotate(ctx, "guest_id", id)
				r = r.WithContext(ctx)
			}
		}
		next.ServeHTTP(w, r)
	})
}
