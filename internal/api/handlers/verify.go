package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/attend"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/pkg/dto"
)

type VerifyHandler struct {
	svc *attend.Service
}

func NewVerifyHandler(svc *attend.Service) *VerifyHandler {
	return &VerifyHandler{svc: svc}
}

// OpenSession verifies the possession token and opens a verification
// session for the identity it claims.
func (h *VerifyHandler) OpenSession(c *gin.Context) {
	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Reason: attend.ReasonInvalidInput})
		return
	}

	sess, err := h.svc.OpenSession(c.Request.Context(), req.Token)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SessionResponse{
		IdentityID:    sess.IdentityID,
		TokenVerified: sess.TokenVerified,
		FaceVerified:  sess.FaceVerified,
		ExpiresAt:     sess.ExpiresAt,
	})
}

// CompleteSession verifies the face factor against the identity's open
// session and commits attendance.
func (h *VerifyHandler) CompleteSession(c *gin.Context) {
	var req dto.FaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Reason: attend.ReasonInvalidInput})
		return
	}

	imgData, err := decodeImagePayload(req.Image)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	rec, err := h.svc.CompleteSession(c.Request.Context(), c.Param("id"), imgData)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, checkinResponse(rec))
}

// MarkAttendance is the single-factor check-in: face only, no session.
func (h *VerifyHandler) MarkAttendance(c *gin.Context) {
	var req dto.FaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Reason: attend.ReasonInvalidInput})
		return
	}

	imgData, err := decodeImagePayload(req.Image)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	rec, err := h.svc.MarkAttendance(c.Request.Context(), imgData)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, checkinResponse(rec))
}

func checkinResponse(rec *models.AttendanceRecord) dto.CheckinResponse {
	return dto.CheckinResponse{
		IdentityID: rec.IdentityID,
		Name:       rec.Name,
		Date:       rec.Date.Format("2006-01-02"),
		CheckInAt:  rec.CheckInAt,
		Method:     string(rec.Method),
		Confidence: rec.Confidence,
		IsOffline:  rec.IsOffline,
	}
}
