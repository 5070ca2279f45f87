package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newProtectedRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", APIKeyMiddleware(key), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func doGet(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if key != "" {
		req.Header.Set(KeyHeader, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyDisabledWhenUnconfigured(t *testing.T) {
	w := doGet(newProtectedRouter(""), "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyMissing(t *testing.T) {
	w := doGet(newProtectedRouter("sekrit"), "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "missing_api_key")
}

func TestAPIKeyWrong(t *testing.T) {
	w := doGet(newProtectedRouter("sekrit"), "guess")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "invalid_api_key")
}

func TestAPIKeyAccepted(t *testing.T) {
	w := doGet(newProtectedRouter("sekrit"), "sekrit")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "pong", w.Body.String())
}
