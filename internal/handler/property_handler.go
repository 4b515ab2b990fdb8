package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/soulmechanik/forems-portal/internal/dto"
	"github.com/soulmechanik/forems-portal/internal/session"
	"github.com/soulmechanik/forems-portal/pkg/response"
)

// PropertyBackend lists properties on behalf of a session
type PropertyBackend interface {
	JoinableProperties(ctx context.Context, credential string) ([]dto.JoinableProperty, error)
}

// PropertyHandler proxies property listings
type PropertyHandler struct {
	backend PropertyBackend
}

// NewPropertyHandler creates a new PropertyHandler
func NewPropertyHandler(backend PropertyBackend) *PropertyHandler {
	return &PropertyHandler{backend: backend}
}

// Joinable lists properties the user can join
// GET /api/property/joinable
func (h *PropertyHandler) Joinable(c *gin.Context) {
	sc := session.FromGin(c)

	properties, err := h.backend.JoinableProperties(c.Request.Context(), sc.Token.BackendCredential)
	if err != nil {
		writeBackendError(c, err, "Failed to load properties")
		return
	}
	if properties == nil {
		properties = []dto.JoinableProperty{}
	}
	response.Success(c, properties)
}
