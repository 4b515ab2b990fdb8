package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, gin.H{"ok": true})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		call       func(c *gin.Context)
		wantStatus int
		wantCode   string
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "bad") }, http.StatusBadRequest, "BAD_REQUEST"},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "who") }, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "no") }, http.StatusForbidden, "FORBIDDEN"},
		{"conflict", func(c *gin.Context) { Conflict(c, "SWITCH_IN_PROGRESS", "busy") }, http.StatusConflict, "SWITCH_IN_PROGRESS"},
		{"bad gateway", func(c *gin.Context) { BadGateway(c, "BACKEND_REJECTED", "nope") }, http.StatusBadGateway, "BACKEND_REJECTED"},
		{"gateway timeout", func(c *gin.Context) { GatewayTimeout(c, "slow") }, http.StatusGatewayTimeout, "GATEWAY_TIMEOUT"},
		{"rate limited", func(c *gin.Context) { TooManyRequests(c, "wait") }, http.StatusTooManyRequests, "RATE_LIMITED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			tt.call(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestInternalError_HidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	InternalError(c, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	require.Len(t, c.Errors, 1)
	assert.Contains(t, c.Errors.Last().Error(), "password authentication")
}
