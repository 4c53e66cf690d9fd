package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
)

// Client is the subset of *asynq.Client used to publish tasks.
type Client interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer turns domain events into background tasks.
type Enqueuer struct {
	Client Client
	Logger zerolog.Logger
}

// Enqueue publishes t. A task already queued under the same id is not an error.
func (e Enqueuer) Enqueue(ctx context.Context, t *asynq.Task) error {
	if e.Client == nil {
		return errors.New("queue: client not configured")
	}
	info, err := e.Client.EnqueueContext(ctx, t)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		QueueEnqueuedTotal.WithLabelValues(t.Type(), "duplicate").Inc()
		return nil
	}
	if err != nil {
		QueueEnqueuedTotal.WithLabelValues(t.Type(), "error").Inc()
		return fmt.Errorf("enqueue %s: %w", t.Type(), err)
	}
	QueueEnqueuedTotal.WithLabelValues(t.Type(), "ok").Inc()
	e.Logger.Debug().Str("task_id", info.ID).Str("type", t.Type()).Msg("task enqueued")
	return nil
}

// Notify implements events.Notifier for order.paid and order.status_changed.
func (e Enqueuer) Notify(ctx context.Context, event db.DomainEvent) error {
	var payload struct {
		OrderID string `json:"orderId"`
		To      string `json:"to"`
	}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("queue notify: decode payload: %w", err)
		}
	}
	var (
		task *asynq.Task
		err  error
	)
	switch event.Topic {
	case events.TopicOrderPaid:
		task, err = NewOrderConfirmationTask(payload.OrderID)
	case events.TopicOrderStatusChanged:
		task, err = NewOrderStatusTask(payload.OrderID, payload.To)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return e.Enqueue(ctx, task)
}
