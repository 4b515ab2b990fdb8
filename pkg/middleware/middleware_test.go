package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID_GeneratesNew(t *testing.T) {
	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)

	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(w, c.Request)

	headerID := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, headerID)
	assert.Equal(t, headerID, w.Body.String())
}

func TestRequestID_UsesExisting(t *testing.T) {
	existingID := "existing-request-id-123"

	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)

	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	c.Request.Header.Set(RequestIDHeader, existingID)
	r.ServeHTTP(w, c.Request)

	assert.Equal(t, existingID, w.Body.String())
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)

	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	c.Request.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	r.ServeHTTP(w, c.Request)

	assert.Len(t, w.Body.String(), 36)
}

func TestCORS_AllowedOrigin(t *testing.T) {
	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)

	r.Use(CORS([]string{"http://portal.example.com"}))
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	c.Request.Header.Set("Origin", "http://portal.example.com")
	r.ServeHTTP(w, c.Request)

	assert.Equal(t, "http://portal.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
	assert.Empty(t, w.Header().Get("Access-Control-Max-Age"), "preflight only")
}

func TestCORS_UnknownOrigin(t *testing.T) {
	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)

	r.Use(CORS([]string{"http://portal.example.com"}))
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	c.Request.Header.Set("Origin", "http://evil.example.com")
	r.ServeHTTP(w, c.Request)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		wantStatus int
	}{
		{"allowed", "http://portal.example.com", http.StatusNoContent},
		{"rejected", "http://evil.example.com", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, r := gin.CreateTestContext(w)

			r.Use(CORS([]string{"http://portal.example.com"}))
			r.OPTIONS("/test", func(c *gin.Context) {})

			c.Request = httptest.NewRequest(http.MethodOptions, "/test", nil)
			c.Request.Header.Set("Origin", tt.origin)
			r.ServeHTTP(w, c.Request)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
			}
		})
	}
}

func TestLogger_LevelByStatusAndNoQuery(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.New(zap.New(core))

	w := httptest.NewRecorder()
	c, r := gin.CreateTestContext(w)

	r.Use(RequestID(), Logger(log, "/health"))
	r.GET("/ok", func(c *gin.Context) {
		c.Set(SessionIDKey, "sess-1")
		c.Status(http.StatusOK)
	})
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/ok?code=secret", "/missing", "/boom", "/health"} {
		c.Request = httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(httptest.NewRecorder(), c.Request)
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "sess-1", fields["session_id"])
	assert.Equal(t, "/ok", fields["path"])
	_, hasQuery := fields["query"]
	assert.False(t, hasQuery)
}
