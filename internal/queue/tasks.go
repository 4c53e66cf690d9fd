// Package queue runs background jobs on asynq: order confirmation emails
// are enqueued when an order is paid and processed by cmd/worker.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// Task types.
const (
	TypeOrderConfirmation  = "order:confirmation"
	TypeOrderStatusUpdate  = "order:status_update"
	DefaultQueue           = "default"
	defaultMaxRetry        = 10
	defaultRetentionPeriod = 24 * time.Hour
)

// OrderPayload identifies the order a job acts on.
type OrderPayload struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status,omitempty"`
}

// NewOrderConfirmationTask builds the task that emails the invoice for orderID.
// The task id makes enqueueing idempotent per order.
func NewOrderConfirmationTask(orderID string) (*asynq.Task, error) {
	return newOrderTask(TypeOrderConfirmation, OrderPayload{OrderID: orderID}, "confirmation:"+orderID)
}

// NewOrderStatusTask builds the task that tells the customer about a status change.
func NewOrderStatusTask(orderID, status string) (*asynq.Task, error) {
	return newOrderTask(TypeOrderStatusUpdate, OrderPayload{OrderID: orderID, Status: status}, "status:"+orderID+":"+status)
}

func newOrderTask(kind string, payload OrderPayload, id string) (*asynq.Task, error) {
	if strings.TrimSpace(payload.OrderID) == "" {
		return nil, errors.New("queue: order id is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(kind, raw,
		asynq.TaskID(id),
		asynq.Queue(DefaultQueue),
		asynq.MaxRetry(defaultMaxRetry),
		asynq.Retention(defaultRetentionPeriod),
	), nil
}

// DecodeOrderPayload parses a task payload. Malformed payloads skip retries.
func DecodeOrderPayload(t *asynq.Task) (OrderPayload, error) {
	var p OrderPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.OrderID == "" {
		return p, fmt.Errorf("%s payload without order id: %w", t.Type(), asynq.SkipRetry)
	}
	return p, nil
}
