package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker is a dependency the service needs to be ready
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler handles health check HTTP requests
type HealthHandler struct {
	serviceName string
	checks      map[string]HealthChecker
}

// NewHealthHandler creates a new HealthHandler. Nil checkers are skipped.
func NewHealthHandler(serviceName string, checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, checks: checks}
}

// Health returns basic health status
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": h.serviceName,
	})
}

// Ready checks that every dependency answers
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	components := gin.H{}
	ready := true
	for name, check := range h.checks {
		if check == nil {
			components[name] = "not_configured"
			continue
		}
		if err := check.HealthCheck(ctx); err != nil {
			components[name] = "disconnected"
			ready = false
			continue
		}
		components[name] = "connected"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"service":    h.serviceName,
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"service":    h.serviceName,
		"components": components,
	})
}
