package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/dto"
	"github.com/soulmechanik/forems-portal/internal/service"
	"github.com/soulmechanik/forems-portal/internal/session"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/response"
	"go.uber.org/zap"
)

// RoleHandler handles role switching
type RoleHandler struct {
	switcher service.RoleSwitcher
	manager  *session.Manager
	log      *logger.Logger
}

// NewRoleHandler creates a new RoleHandler
func NewRoleHandler(switcher service.RoleSwitcher, manager *session.Manager, log *logger.Logger) *RoleHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RoleHandler{switcher: switcher, manager: manager, log: log}
}

// SwitchRole changes the active role. A failed switch leaves the cookie untouched.
// POST /api/auth/switch-role
func (h *RoleHandler) SwitchRole(c *gin.Context) {
	var req dto.SwitchRoleAPIRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sc := session.FromGin(c)
	result, err := h.switcher.SwitchRole(c.Request.Context(), sc.Token, req.Role)
	if err != nil {
		if errors.Is(err, domain.ErrAuthorizationRevoked) {
			h.manager.Clear(c)
		}
		writeAuthError(c, err, service.ReasonSwitchFailed)
		return
	}

	if result.Switched {
		if err := h.manager.Commit(c, result.Token); err != nil {
			h.log.Error("Failed to write session cookie", zap.Error(err))
			response.InternalError(c, err)
			return
		}
	}

	out := dto.SwitchRoleAPIResponse{
		Switched: result.Switched,
		Redirect: result.Redirect,
	}
	if result.ActiveRole != nil {
		out.ActiveRole = *result.ActiveRole
	}
	response.Success(c, out)
}
