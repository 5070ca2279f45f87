package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/attend"
	"github.com/your-org/presence/internal/recognize"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/pkg/dto"
)

type IdentityHandler struct {
	svc    *attend.Service
	db     *storage.PostgresStore
	engine *recognize.Engine
}

func NewIdentityHandler(svc *attend.Service, db *storage.PostgresStore, engine *recognize.Engine) *IdentityHandler {
	return &IdentityHandler{svc: svc, db: db, engine: engine}
}

// Enroll registers a face sample for an identity, creating it on first use.
func (h *IdentityHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Reason: attend.ReasonInvalidInput})
		return
	}

	imgData, err := decodeImagePayload(req.Image)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	count, err := h.svc.Enroll(c.Request.Context(), req.IdentityID, req.Name, imgData)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.EnrollResponse{
		IdentityID:    req.IdentityID,
		Name:          req.Name,
		TemplateCount: count,
	})
}

func (h *IdentityHandler) List(c *gin.Context) {
	identities, err := h.db.ListIdentities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp := make([]dto.IdentityResponse, 0, len(identities))
	for _, ident := range identities {
		resp = append(resp, dto.IdentityResponse{
			ID:        ident.ID,
			Name:      ident.Name,
			Templates: h.engine.TemplateCount(ident.ID),
			CreatedAt: formatTimestamp(ident.CreatedAt),
		})
	}

	c.JSON(http.StatusOK, gin.H{"identities": resp, "total": len(resp)})
}

// Remove deletes an identity's enrollment, sessions, and captures.
func (h *IdentityHandler) Remove(c *gin.Context) {
	if err := h.svc.RemoveIdentity(c.Request.Context(), c.Param("id")); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
