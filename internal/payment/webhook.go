package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/common"
)

// Settler finalizes a captured payment. Checkout implements it.
type Settler interface {
	Settle(ctx context.Context, gatewayOrderID, paymentID string) error
}

// Webhook handles gateway callbacks for captured payments. It is the
// server-to-server fallback when the browser never reaches /checkout/verify.
type Webhook struct {
	Verifier  Verifier
	Settler   Settler
	Replay    *redis.Client
	ReplayTTL time.Duration
	Logger    zerolog.Logger
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Handle verifies the body signature, drops replays and settles captured payments.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Settler == nil || h.Verifier.Secret == "" {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	if err := h.Verifier.VerifyBody(body, r.Header.Get("X-Razorpay-Signature")); err != nil {
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}
	if h.Replay != nil && h.ReplayTTL > 0 {
		sum := sha256.Sum256(body)
		key := fmt.Sprintf("wh:razorpay:%s", hex.EncodeToString(sum[:]))
		ok, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", err.Error(), nil)
			return
		}
		if !ok {
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}
	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "malformed payload", nil)
		return
	}
	switch evt.Event {
	case "payment.captured", "order.paid":
	default:
		w.WriteHeader(http.StatusNoContent)
		return
	}
	entity := evt.Payload.Payment.Entity
	if entity.ID == "" || entity.OrderID == "" {
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "payment entity missing", nil)
		return
	}
	if err := h.Settler.Settle(r.Context(), entity.OrderID, entity.ID); err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			common.WriteError(w, appErr)
			return
		}
		h.Logger.Error().Err(err).Str("gateway_order_id", entity.OrderID).Msg("webhook settlement failed")
		common.JSONError(w, http.StatusInternalServerError, "SETTLEMENT_FAILED", "unable to settle payment", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
