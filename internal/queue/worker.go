package queue

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/order"
)

// Orders loads orders and renders invoices; *order.Service satisfies it.
type Orders interface {
	Get(ctx context.Context, orderID string) (order.Order, error)
	Invoice(ctx context.Context, o order.Order) (string, error)
}

// Users resolves the account email of an order.
type Users interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
}

// Handlers processes order tasks.
type Handlers struct {
	Orders Orders
	Users  Users
	Mail   common.EmailSender
	Logger zerolog.Logger
}

// OrderConfirmation emails the rendered invoice to the customer.
func (h Handlers) OrderConfirmation(ctx context.Context, t *asynq.Task) error {
	p, err := DecodeOrderPayload(t)
	if err != nil {
		return err
	}
	o, to, err := h.load(ctx, p.OrderID)
	if err != nil {
		return err
	}
	doc, err := h.Orders.Invoice(ctx, o)
	if err != nil {
		return fmt.Errorf("render invoice %s: %w", o.InvoiceNumber, err)
	}
	subject := fmt.Sprintf("Order confirmed: invoice %s", o.InvoiceNumber)
	if err := h.Mail.Send(to, subject, doc); err != nil {
		return fmt.Errorf("send confirmation %s: %w", o.InvoiceNumber, err)
	}
	h.Logger.Info().Str("order_id", o.ID).Str("invoice", o.InvoiceNumber).Msg("order confirmation sent")
	return nil
}

// OrderStatusUpdate emails a short status notice.
func (h Handlers) OrderStatusUpdate(ctx context.Context, t *asynq.Task) error {
	p, err := DecodeOrderPayload(t)
	if err != nil {
		return err
	}
	o, to, err := h.load(ctx, p.OrderID)
	if err != nil {
		return err
	}
	status := p.Status
	if status == "" {
		status = o.Status
	}
	subject := fmt.Sprintf("Order %s is %s", o.InvoiceNumber, status)
	body := fmt.Sprintf("<p>Hi %s,</p><p>Your order <strong>%s</strong> is now <strong>%s</strong>.</p>",
		html.EscapeString(o.BillingAddress.Name), html.EscapeString(o.InvoiceNumber), html.EscapeString(status))
	if err := h.Mail.Send(to, subject, body); err != nil {
		return fmt.Errorf("send status update %s: %w", o.InvoiceNumber, err)
	}
	return nil
}

func (h Handlers) load(ctx context.Context, orderID string) (order.Order, string, error) {
	if h.Orders == nil || h.Mail == nil {
		return order.Order{}, "", errors.New("queue: order handlers not configured")
	}
	o, err := h.Orders.Get(ctx, orderID)
	if errors.Is(err, common.ErrNotFound) {
		return order.Order{}, "", fmt.Errorf("order %s: %w", orderID, asynq.SkipRetry)
	}
	if err != nil {
		return order.Order{}, "", err
	}
	to := o.BillingAddress.Email
	if to == "" && h.Users != nil {
		uid, err := common.ToUUID(o.UserID)
		if err == nil {
			if u, err := h.Users.GetUserByID(ctx, uid); err == nil {
				to = u.Email
			}
		}
	}
	if to == "" {
		return order.Order{}, "", fmt.Errorf("order %s has no recipient: %w", orderID, asynq.SkipRetry)
	}
	return o, to, nil
}

// NewServeMux routes task types to h and records outcomes.
func NewServeMux(h Handlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(metricsMiddleware(h.Logger))
	mux.HandleFunc(TypeOrderConfirmation, h.OrderConfirmation)
	mux.HandleFunc(TypeOrderStatusUpdate, h.OrderStatusUpdate)
	return mux
}

func metricsMiddleware(logger zerolog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			err := next.ProcessTask(ctx, t)
			status := "ok"
			switch {
			case errors.Is(err, asynq.SkipRetry):
				status = "skipped"
				logger.Warn().Err(err).Str("type", t.Type()).Msg("task dropped")
			case err != nil:
				status = "error"
				logger.Error().Err(err).Str("type", t.Type()).Msg("task failed")
			}
			QueueProcessedTotal.WithLabelValues(t.Type(), status).Inc()
			return err
		})
	}
}
