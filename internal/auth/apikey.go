package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/presence/pkg/dto"
)

// KeyHeader carries the shared key on every authenticated request.
const KeyHeader = "X-API-Key"

// APIKeyMiddleware gates the verification API behind a shared key, compared
// in constant time. An empty configured key disables the check entirely,
// which is how local development runs.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(KeyHeader)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:  "missing API key",
				Reason: "missing_api_key",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{
				Error:  "invalid API key",
				Reason: "invalid_api_key",
			})
			return
		}

		c.Next()
	}
}
