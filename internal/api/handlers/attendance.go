package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/attend"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

type AttendanceHandler struct {
	svc *attend.Service
	db  *storage.PostgresStore
}

func NewAttendanceHandler(svc *attend.Service, db *storage.PostgresStore) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, db: db}
}

// Reconcile replays a batch of offline captures. Items succeed or fail
// independently; the response reports every outcome.
func (h *AttendanceHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Reason: attend.ReasonInvalidInput})
		return
	}

	items := make([]attend.OfflineItem, 0, len(req.Items))
	for _, item := range req.Items {
		imgData, err := decodeImagePayload(item.Image)
		if err != nil {
			// A single undecodable item should not reject the batch.
			imgData = nil
		}
		items = append(items, attend.OfflineItem{
			IdentityID: item.IdentityID,
			Name:       item.Name,
			Image:      imgData,
			CapturedAt: item.CapturedAt,
		})
	}

	summary, err := h.svc.Reconcile(c.Request.Context(), items)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *AttendanceHandler) List(c *gin.Context) {
	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid from date", Reason: attend.ReasonInvalidInput})
			return
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid to date", Reason: attend.ReasonInvalidInput})
			return
		}
		to = &t
	}

	var identityID *string
	if v := c.Query("identity_id"); v != "" {
		identityID = &v
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, total, err := h.db.ListAttendance(c.Request.Context(), from, to, identityID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp := dto.AttendanceListResponse{
		Records: make([]dto.CheckinResponse, 0, len(records)),
		Total:   total,
	}
	for i := range records {
		resp.Records = append(resp.Records, checkinResponse(&records[i]))
	}

	c.JSON(http.StatusOK, resp)
}

// Summary reports the distinct check-in count for one date (default today).
func (h *AttendanceHandler) Summary(c *gin.Context) {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if v := c.Query("date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid date", Reason: attend.ReasonInvalidInput})
			return
		}
		date = t
	}

	count, err := h.db.CountAttendanceOn(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.AttendanceSummaryResponse{
		Date:     date.Format("2006-01-02"),
		Checkins: count,
	})
}
