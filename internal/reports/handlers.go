package reports

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/common"
)

// Handler exposes report read endpoints.
type Handler struct {
	Svc    *Service
	Logger zerolog.Logger
}

// Sales handles GET /api/v1/admin/reports/sales?from=&to= or ?days=.
// Dates accept RFC 3339 or YYYY-MM-DD.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "REPORTS_NOT_CONFIGURED", "reports service not configured", nil)
		return
	}
	query := r.URL.Query()
	fromStr := query.Get("from")
	toStr := query.Get("to")
	now := h.Svc.now()
	var (
		from time.Time
		to   time.Time
		err  error
	)
	if fromStr != "" && toStr != "" {
		from, err = parseDate(fromStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid from date", map[string]string{"from": "date"})
			return
		}
		to, err = parseDate(toStr)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid to date", map[string]string{"to": "date"})
			return
		}
	} else {
		days := h.Svc.DefaultRange
		if days <= 0 {
			days = 30
		}
		if raw := query.Get("days"); raw != "" {
			parsed := common.AtoiDefault(raw, days)
			if parsed > 0 {
				days = parsed
			}
		}
		to = now
		from = to.AddDate(0, 0, -days)
	}
	sales, err := h.Svc.SalesRange(r.Context(), from, to)
	if err != nil {
		if errors.Is(err, common.ErrInvalidInput) {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be before to", nil)
			return
		}
		h.Logger.Error().Err(err).Msg("sales report failed")
		common.JSONError(w, http.StatusInternalServerError, "REPORTS_ERROR", "unable to build report", nil)
		return
	}
	common.Data(w, http.StatusOK, sales)
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
