package checkout

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/shopper"
)

// Handler exposes quote, checkout and payment verification endpoints.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

// Quote handles POST /api/v1/cart/quote for guests and signed-in shoppers.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var in QuoteInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	breakdown, err := h.Svc.Quote(r.Context(), shopper.IdentityFrom(r.Context()), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, breakdown)
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	session, err := h.Svc.Create(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, session)
}

// Verify handles POST /api/v1/checkout/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in VerifyInput
	if err := common.DecodeJSON(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	placed, err := h.Svc.Verify(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, placed)
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return false
	}
	return true
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !h.ready(w) {
		return "", false
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return "", false
	}
	return userID, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shopper.ErrNoIdentity):
		common.JSONError(w, http.StatusUnauthorized, "GUEST_ID_REQUIRED", "send X-Guest-ID or sign in", nil)
	case common.IsAppError(err), errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrUnauthorized):
		common.WriteError(w, err)
	default:
		h.Logger.Error().Err(err).Msg("checkout request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
