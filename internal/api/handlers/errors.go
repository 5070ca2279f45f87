package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/internal/attend"
	"github.com/your-org/presence/pkg/dto"
)

// formatTimestamp renders a timestamp for API responses in UTC RFC 3339.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// decodeImagePayload decodes a base64 image field, tolerating a data-URL
// prefix ("data:image/jpeg;base64,...") from browser clients.
func decodeImagePayload(payload string) ([]byte, error) {
	if idx := strings.IndexByte(payload, ','); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", attend.ErrInvalidInput)
	}
	return data, nil
}

// writeDomainError maps a verification failure to an HTTP status and a
// stable reason code.
func writeDomainError(c *gin.Context, err error) {
	reason := attend.Reason(err)
	c.JSON(statusForReason(reason), dto.ErrorResponse{Error: err.Error(), Reason: reason})
}

func statusForReason(reason string) int {
	switch reason {
	case attend.ReasonInvalidInput:
		return http.StatusBadRequest
	case attend.ReasonIdentityNotFound:
		return http.StatusNotFound
	case attend.ReasonAlreadyMarked, attend.ReasonModelUntrained, attend.ReasonFaceWithoutToken:
		return http.StatusConflict
	case attend.ReasonSessionExpired:
		return http.StatusGone
	case attend.ReasonNoFace, attend.ReasonMultipleFaces, attend.ReasonLowLight,
		attend.ReasonLowConfidence, attend.ReasonMismatch:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
