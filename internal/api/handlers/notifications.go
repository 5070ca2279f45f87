package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/notify"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

type NotificationHandler struct {
	db         *storage.PostgresStore
	producer   *queue.Producer
	dispatcher *notify.Dispatcher
}

func NewNotificationHandler(db *storage.PostgresStore, producer *queue.Producer, dispatcher *notify.Dispatcher) *NotificationHandler {
	return &NotificationHandler{db: db, producer: producer, dispatcher: dispatcher}
}

// Status reports per-status row counts plus the live task queue depth.
func (h *NotificationHandler) Status(c *gin.Context) {
	counts, err := h.db.NotificationCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	depth, err := h.producer.QueueDepth(c.Request.Context())
	if err != nil {
		depth = 0
	}

	c.JSON(http.StatusOK, dto.NotificationStatusResponse{
		Pending:    counts[models.NotificationPending],
		Sent:       counts[models.NotificationSent],
		Failed:     counts[models.NotificationFailed],
		QueueDepth: depth,
	})
}

// Retry requeues failed notifications for delivery.
func (h *NotificationHandler) Retry(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	requeued, err := h.dispatcher.RetryFailed(c.Request.Context(), h.producer, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.NotificationRetryResponse{Requeued: requeued})
}
