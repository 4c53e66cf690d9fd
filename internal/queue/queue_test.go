package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/events"
	"github.com/noah-isme/backend-parfum/internal/order"
	"github.com/noah-isme/backend-parfum/internal/queue"
)

type fakeClient struct {
	tasks []*asynq.Task
	err   error
}

func (c *fakeClient) EnqueueContext(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, t)
	return &asynq.TaskInfo{ID: "t-1", Type: t.Type(), Payload: t.Payload()}, nil
}

func event(t *testing.T, topic string, payload map[string]any) db.DomainEvent {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return db.DomainEvent{Topic: topic, Payload: raw}
}

func TestNotifyEnqueuesOrderTasks(t *testing.T) {
	client := &fakeClient{}
	enq := queue.Enqueuer{Client: client, Logger: zerolog.Nop()}

	require.NoError(t, enq.Notify(t.Context(), event(t, events.TopicOrderPaid, map[string]any{"orderId": "o-1"})))
	require.NoError(t, enq.Notify(t.Context(), event(t, events.TopicOrderStatusChanged, map[string]any{"orderId": "o-1", "from": "paid", "to": "shipped"})))
	require.NoError(t, enq.Notify(t.Context(), event(t, "product.updated", map[string]any{"id": "p"})))

	require.Len(t, client.tasks, 2)
	assert.Equal(t, queue.TypeOrderConfirmation, client.tasks[0].Type())
	assert.Equal(t, queue.TypeOrderStatusUpdate, client.tasks[1].Type())

	p, err := queue.DecodeOrderPayload(client.tasks[1])
	require.NoError(t, err)
	assert.Equal(t, "o-1", p.OrderID)
	assert.Equal(t, "shipped", p.Status)
}

func TestEnqueueTreatsDuplicateAsSuccess(t *testing.T) {
	task, err := queue.NewOrderConfirmationTask("o-1")
	require.NoError(t, err)

	enq := queue.Enqueuer{Client: &fakeClient{err: asynq.ErrTaskIDConflict}, Logger: zerolog.Nop()}
	require.NoError(t, enq.Enqueue(t.Context(), task))

	enq.Client = &fakeClient{err: errors.New("redis down")}
	require.Error(t, enq.Enqueue(t.Context(), task))
}

func TestNewTaskRequiresOrderID(t *testing.T) {
	_, err := queue.NewOrderConfirmationTask("  ")
	require.Error(t, err)
}

func TestDecodeOrderPayloadSkipsRetryOnGarbage(t *testing.T) {
	_, err := queue.DecodeOrderPayload(asynq.NewTask(queue.TypeOrderConfirmation, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	_, err = queue.DecodeOrderPayload(asynq.NewTask(queue.TypeOrderConfirmation, []byte(`{}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeOrders struct {
	orders map[string]order.Order
}

func (f fakeOrders) Get(_ context.Context, id string) (order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return order.Order{}, common.ErrNotFound
	}
	return o, nil
}

func (f fakeOrders) Invoice(_ context.Context, o order.Order) (string, error) {
	return "<html>" + o.InvoiceNumber + "</html>", nil
}

type fakeUsers struct {
	email string
}

func (f fakeUsers) GetUserByID(context.Context, pgtype.UUID) (db.User, error) {
	return db.User{Email: f.email}, nil
}

const userID = "7d1c4a8e-4a3c-4b7e-9a51-0c2f4f5e6a10"

func handlers(mail *common.InMemoryEmail) queue.Handlers {
	return queue.Handlers{
		Orders: fakeOrders{orders: map[string]order.Order{
			"o-1": {ID: "o-1", UserID: userID, InvoiceNumber: "INV-000001", Status: "paid",
				BillingAddress: order.Billing{Name: "Asha <A>", Email: "asha@example.com"}},
			"o-2": {ID: "o-2", UserID: userID, InvoiceNumber: "INV-000002", Status: "paid"},
		}},
		Users:  fakeUsers{email: "account@example.com"},
		Mail:   mail,
		Logger: zerolog.Nop(),
	}
}

func TestOrderConfirmationMailsInvoice(t *testing.T) {
	mail := &common.InMemoryEmail{}
	task, err := queue.NewOrderConfirmationTask("o-1")
	require.NoError(t, err)

	require.NoError(t, handlers(mail).OrderConfirmation(t.Context(), task))
	require.Len(t, mail.Outbox, 1)
	assert.Equal(t, "asha@example.com", mail.Outbox[0].To)
	assert.Contains(t, mail.Outbox[0].Subject, "INV-000001")
	assert.Equal(t, "<html>INV-000001</html>", mail.Outbox[0].HTML)
}

func TestOrderConfirmationFallsBackToAccountEmail(t *testing.T) {
	mail := &common.InMemoryEmail{}
	task, err := queue.NewOrderConfirmationTask("o-2")
	require.NoError(t, err)

	require.NoError(t, handlers(mail).OrderConfirmation(t.Context(), task))
	require.Len(t, mail.Outbox, 1)
	assert.Equal(t, "account@example.com", mail.Outbox[0].To)
}

func TestOrderConfirmationUnknownOrderSkipsRetry(t *testing.T) {
	task, err := queue.NewOrderConfirmationTask("missing")
	require.NoError(t, err)

	err = handlers(&common.InMemoryEmail{}).OrderConfirmation(t.Context(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestOrderStatusUpdateEscapesName(t *testing.T) {
	mail := &common.InMemoryEmail{}
	task, err := queue.NewOrderStatusTask("o-1", "shipped")
	require.NoError(t, err)

	require.NoError(t, handlers(mail).OrderStatusUpdate(t.Context(), task))
	require.Len(t, mail.Outbox, 1)
	assert.Equal(t, "Order INV-000001 is shipped", mail.Outbox[0].Subject)
	assert.Contains(t, mail.Outbox[0].HTML, "Asha &lt;A&gt;")
}

func TestServeMuxRoutesTasks(t *testing.T) {
	mail := &common.InMemoryEmail{}
	mux := queue.NewServeMux(handlers(mail))
	task, err := queue.NewOrderStatusTask("o-1", "delivered")
	require.NoError(t, err)

	require.NoError(t, mux.ProcessTask(t.Context(), task))
	require.Len(t, mail.Outbox, 1)
}

type fakeInspector struct {
	archived []*asynq.TaskInfo
	ran      []string
	deleted  []string
}

func (f *fakeInspector) GetQueueInfo(q string) (*asynq.QueueInfo, error) {
	if q != queue.DefaultQueue {
		return nil, asynq.ErrQueueNotFound
	}
	return &asynq.QueueInfo{Queue: q, Pending: 3, Archived: len(f.archived), Latency: 2 * time.Second}, nil
}

func (f *fakeInspector) ListArchivedTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return f.archived, nil
}

func (f *fakeInspector) RunTask(_ string, id string) error {
	for _, t := range f.archived {
		if t.ID == id {
			f.ran = append(f.ran, id)
			return nil
		}
	}
	return asynq.ErrTaskNotFound
}

func (f *fakeInspector) DeleteTask(_ string, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func adminRouter(h *queue.AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/queue/stats", h.Stats)
	r.Get("/queue/dead", h.ListDLQ)
	r.Post("/queue/dead/{taskID}/replay", h.ReplayDLQ)
	r.Delete("/queue/dead/{taskID}", h.DeleteDLQ)
	return r
}

func TestAdminHandlerDeadLetters(t *testing.T) {
	insp := &fakeInspector{archived: []*asynq.TaskInfo{{
		ID: "confirmation:o-1", Type: queue.TypeOrderConfirmation, Payload: []byte(`{"orderId":"o-1"}`),
		Retried: 10, MaxRetry: 10, LastErr: "smtp: timeout",
	}}}
	router := adminRouter(&queue.AdminHandler{Inspector: insp, Logger: zerolog.Nop()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queue/dead", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []struct {
			ID        string `json:"id"`
			LastError string `json:"lastError"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "smtp: timeout", list.Data[0].LastError)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/queue/dead/confirmation:o-1/replay", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"confirmation:o-1"}, insp.ran)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/queue/dead/unknown/replay", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/queue/dead/confirmation:o-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"confirmation:o-1"}, insp.deleted)
}

func TestAdminHandlerStats(t *testing.T) {
	router := adminRouter(&queue.AdminHandler{Inspector: &fakeInspector{}, Logger: zerolog.Nop()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queue/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 3, body.Data["pending"])
	assert.EqualValues(t, 2000, body.Data["latencyMs"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/queue/stats?queue=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
