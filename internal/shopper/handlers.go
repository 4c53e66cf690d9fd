package shopper

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/cart"
	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/guest"
)

// Handler exposes cart, wishlist and list-stream endpoints for guests and
// signed-in shoppers alike.
type Handler struct {
	svc       *Service
	hub       *events.Hub
	logger    zerolog.Logger
	heartbeat time.Duration
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service   *Service
	Hub       *events.Hub
	Logger    zerolog.Logger
	Heartbeat time.Duration
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	hb := cfg.Heartbeat
	if hb <= 0 {
		hb = 25 * time.Second
	}
	return &Handler{svc: cfg.Service, hub: cfg.Hub, logger: cfg.Logger, heartbeat: hb}
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=99"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,max=99"`
}

// IssueGuest handles POST /api/v1/guest.
func (h *Handler) IssueGuest(w http.ResponseWriter, r *http.Request) {
	if id, ok := common.GuestID(r.Context()); ok {
		common.Data(w, http.StatusOK, map[string]string{"guestId": id})
		return
	}
	common.Data(w, http.StatusCreated, map[string]string{"guestId": NewGuestID()})
}

// Cart handles GET /api/v1/cart.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, guest.KindCart)
}

// Wishlist handles GET /api/v1/wishlist.
func (h *Handler) Wishlist(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, guest.KindWishlist)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, kind guest.Kind) {
	if h.svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shopper service not configured", nil)
		return
	}
	snap, err := h.svc.List(r.Context(), IdentityFrom(r.Context()), kind)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

// AddCartItem handles POST /api/v1/cart/items.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	h.add(w, r, guest.KindCart)
}

// AddWishlistItem handles POST /api/v1/wishlist/items.
func (h *Handler) AddWishlistItem(w http.ResponseWriter, r *http.Request) {
	h.add(w, r, guest.KindWishlist)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request, kind guest.Kind) {
	if h.svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shopper service not configured", nil)
		return
	}
	var req addItemRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	snap, err := h.svc.Add(r.Context(), IdentityFrom(r.Context()), kind, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, snap)
}

// UpdateCartItem handles PATCH /api/v1/cart/items/{productId}.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shopper service not configured", nil)
		return
	}
	var req updateItemRequest
	if err := common.DecodeAndValidate(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := h.svc.UpdateQuantity(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "productId"), *req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

// RemoveCartItem handles DELETE /api/v1/cart/items/{productId}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, guest.KindCart)
}

// RemoveWishlistItem handles DELETE /api/v1/wishlist/items/{productId}.
func (h *Handler) RemoveWishlistItem(w http.ResponseWriter, r *http.Request) {
	h.remove(w, r, guest.KindWishlist)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request, kind guest.Kind) {
	if h.svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shopper service not configured", nil)
		return
	}
	snap, err := h.svc.Remove(r.Context(), IdentityFrom(r.Context()), kind, chi.URLParam(r, "productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, snap)
}

// ClearCart handles DELETE /api/v1/cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.clear(w, r, guest.KindCart)
}

// ClearWishlist handles DELETE /api/v1/wishlist.
func (h *Handler) ClearWishlist(w http.ResponseWriter, r *http.Request) {
	h.clear(w, r, guest.KindWishlist)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request, kind guest.Kind) {
	if h.svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shopper service not configured", nil)
		return
	}
	if err := h.svc.Clear(r.Context(), IdentityFrom(r.Context()), kind); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Merge handles POST /api/v1/lists/merge, called by clients right after login.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shopper service not configured", nil)
		return
	}
	result, err := h.svc.Merge(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, result)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicate):
		common.JSONError(w, http.StatusConflict, "DUPLICATE", "product already in wishlist", nil)
	case errors.Is(err, ErrNoIdentity):
		common.JSONError(w, http.StatusUnauthorized, "GUEST_ID_REQUIRED", "send X-Guest-ID or sign in", nil)
	case errors.Is(err, guest.ErrConflict):
		common.JSONError(w, http.StatusConflict, "CONCURRENT_UPDATE", "list changed concurrently, retry", nil)
	case errors.Is(err, guest.ErrInvalidInput), errors.Is(err, guest.ErrUnsupported):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not in cart", nil)
	default:
		if !common.IsAppError(err) && !errors.Is(err, common.ErrInvalidInput) &&
			!errors.Is(err, common.ErrNotFound) && !errors.Is(err, common.ErrUnauthorized) {
			h.logger.Error().Err(err).Msg("shopper request failed")
		}
		common.WriteError(w, err)
	}
}
