package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/dto"
	"github.com/soulmechanik/forems-portal/internal/service"
	"github.com/soulmechanik/forems-portal/internal/session"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/response"
	"go.uber.org/zap"
)

const (
	statusAuthenticated   = "authenticated"
	statusUnauthenticated = "unauthenticated"
)

// SessionHandler exposes the client-visible session
type SessionHandler struct {
	sessions service.SessionService
	manager  *session.Manager
	log      *logger.Logger
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sessions service.SessionService, manager *session.Manager, log *logger.Logger) *SessionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &SessionHandler{sessions: sessions, manager: manager, log: log}
}

// Get returns the resolved session, or an unauthenticated status
// GET /api/auth/session
func (h *SessionHandler) Get(c *gin.Context) {
	response.Success(c, sessionResponse(session.FromGin(c)))
}

// Update handles an explicit update trigger with an optional override body
// POST /api/auth/session
func (h *SessionHandler) Update(c *gin.Context) {
	sc := session.FromGin(c)
	if !sc.Authenticated() {
		response.Unauthorized(c, "Authentication required")
		return
	}

	var req dto.SessionUpdateRequest
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		// an empty body, chunked or not, carries no override
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.BadRequest(c, err.Error())
			return
		}
	}
	patch, err := req.ToPatch()
	if err != nil {
		writeAuthError(c, err, "")
		return
	}

	result, err := h.sessions.Update(c.Request.Context(), sc.Token, domain.UpdateEvent{
		Trigger:  domain.TriggerUpdate,
		Override: patch,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAuthorizationRevoked) || errors.Is(err, domain.ErrInvalidSession) {
			h.manager.Clear(c)
			response.Success(c, sessionResponse(session.FromGin(c)))
			return
		}
		response.InternalError(c, err)
		return
	}

	if err := h.manager.Commit(c, result.Token); err != nil {
		h.log.Error("Failed to write session cookie", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	response.Success(c, sessionResponse(session.FromGin(c)))
}

func sessionResponse(sc *session.Context) dto.SessionResponse {
	if !sc.Authenticated() {
		return dto.SessionResponse{Status: statusUnauthenticated}
	}
	return dto.SessionResponse{Status: statusAuthenticated, Session: sc.View}
}
