package shopper

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/obs"
)

// Stream handles GET /api/v1/lists/stream. It sends one server-sent event per
// list change of the caller, named after the change topic
// (guestCartUpdated, cartUpdated, ...), with the updated list as data.
// A signed-in caller that also sends X-Guest-ID receives both streams.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "change stream not configured", nil)
		return
	}
	id := IdentityFrom(r.Context())
	if id.Anonymous() {
		h.writeError(w, ErrNoIdentity)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "streaming unsupported", nil)
		return
	}

	var owners []string
	if id.UserID != "" {
		owners = append(owners, events.UserOwner(id.UserID))
	}
	if id.GuestID != "" {
		owners = append(owners, events.GuestOwner(id.GuestID))
	}
	changes, cancel := h.hub.Subscribe(owners...)
	defer cancel()
	obs.AddStreamSubscribers(1)
	defer obs.AddStreamSubscribers(-1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := writeEvent(w, change); err != nil {
				h.logger.Debug().Err(err).Msg("list stream closed")
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, change events.ListChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Topic, data)
	return err
}
