package queue

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-parfum/internal/common"
)

// Inspector is the subset of *asynq.Inspector used by the admin endpoints.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
	DeleteTask(queue, id string) error
}

// AdminHandler exposes queue stats and dead-letter operations.
type AdminHandler struct {
	Inspector Inspector
	PageSize  int
	Logger    zerolog.Logger
}

type deadTask struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Payload      string    `json:"payload"`
	Retried      int       `json:"retried"`
	MaxRetry     int       `json:"maxRetry"`
	LastError    string    `json:"lastError,omitempty"`
	LastFailedAt time.Time `json:"lastFailedAt"`
}

func (h *AdminHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspector unavailable", nil)
		return false
	}
	return true
}

func queueName(r *http.Request) string {
	if q := strings.TrimSpace(r.URL.Query().Get("queue")); q != "" {
		return q
	}
	return DefaultQueue
}

// ListDLQ handles GET /api/v1/admin/queue/dead?queue=&page=&limit=.
func (h *AdminHandler) ListDLQ(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	queue := queueName(r)
	page, perPage := common.ParsePagination(r, h.pageSize(), 200)
	tasks, err := h.Inspector.ListArchivedTasks(queue, asynq.PageSize(perPage), asynq.Page(page))
	if err != nil {
		h.fail(w, err)
		return
	}
	items := make([]deadTask, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, deadTask{
			ID:           t.ID,
			Type:         t.Type,
			Payload:      string(t.Payload),
			Retried:      t.Retried,
			MaxRetry:     t.MaxRetry,
			LastError:    t.LastErr,
			LastFailedAt: t.LastFailedAt,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "queue": queue})
}

// ReplayDLQ handles POST /api/v1/admin/queue/dead/{taskID}/replay.
func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "taskID"))
	if err := h.Inspector.RunTask(queueName(r), id); err != nil {
		h.fail(w, err)
		return
	}
	common.Data(w, http.StatusAccepted, map[string]string{"id": id, "status": "pending"})
}

// DeleteDLQ handles DELETE /api/v1/admin/queue/dead/{taskID}.
func (h *AdminHandler) DeleteDLQ(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Inspector.DeleteTask(queueName(r), strings.TrimSpace(chi.URLParam(r, "taskID"))); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/v1/admin/queue/stats?queue=.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	queue := queueName(r)
	info, err := h.Inspector.GetQueueInfo(queue)
	if err != nil {
		h.fail(w, err)
		return
	}
	QueueDepth.WithLabelValues(queue).Set(float64(info.Pending))
	QueueDLQSize.WithLabelValues(queue).Set(float64(info.Archived))
	common.Data(w, http.StatusOK, map[string]any{
		"queue":            queue,
		"pending":          info.Pending,
		"active":           info.Active,
		"scheduled":        info.Scheduled,
		"retry":            info.Retry,
		"dead":             info.Archived,
		"processedToday":   info.Processed,
		"failedToday":      info.Failed,
		"latencyMs":        info.Latency.Milliseconds(),
		"paused":           info.Paused,
		"memoryUsageBytes": strconv.FormatInt(info.MemoryUsage, 10),
	})
}

func (h *AdminHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, asynq.ErrQueueNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "queue not found", nil)
	case errors.Is(err, asynq.ErrTaskNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "task not found", nil)
	default:
		h.Logger.Error().Err(err).Msg("queue admin request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspection failed", nil)
	}
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}
