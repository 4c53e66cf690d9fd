package settings

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/common"
)

// Handler serves the storefront and admin settings endpoints.
type Handler struct {
	Service *Service
	Logger  zerolog.Logger
}

type publicSettings struct {
	Business Business `json:"business"`
	Charges  Charges  `json:"charges"`
}

// Public handles GET /api/v1/settings with the fields shoppers may see.
func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	site, err := h.Service.Get(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, publicSettings{Business: site.Business, Charges: site.Charges})
}

// Get handles GET /api/v1/admin/settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	site, err := h.Service.Get(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, site)
}

// Put handles PUT /api/v1/admin/settings.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var site Site
	if err := common.DecodeJSON(r, &site); err != nil {
		common.WriteError(w, err)
		return
	}
	saved, err := h.Service.Update(r.Context(), site)
	if err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusOK, saved)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !common.IsAppError(err) {
		h.Logger.Error().Err(err).Msg("settings request failed")
	}
	common.WriteError(w, err)
}
