package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/soulmechanik/forems-portal/internal/backend"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/redirect"
	"github.com/soulmechanik/forems-portal/pkg/response"
)

// wantsJSON reports whether the client asked for a JSON answer instead of a redirect
func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// redirectToLogin sends the browser to the login surface carrying reason
func redirectToLogin(c *gin.Context, reason string) {
	target := redirect.LoginPath
	if reason != "" {
		target += "?error=" + url.QueryEscape(reason)
	}
	c.Redirect(http.StatusSeeOther, target)
}

// writeAuthError maps the session lifecycle taxonomy onto HTTP answers
func writeAuthError(c *gin.Context, err error, fallback string) {
	reason := domain.ReasonOf(err, fallback)

	switch {
	case errors.Is(err, domain.ErrUnknownRole):
		response.Error(c, http.StatusBadRequest, "UNKNOWN_ROLE", "Unknown role", "")
	case errors.Is(err, domain.ErrRoleNotGranted):
		response.Error(c, http.StatusForbidden, "ROLE_NOT_GRANTED", reason, "")
	case errors.Is(err, domain.ErrSwitchInProgress):
		response.Conflict(c, "SWITCH_IN_PROGRESS", "A role switch is already in progress")
	case errors.Is(err, domain.ErrAuthorizationRevoked), errors.Is(err, domain.ErrInvalidSession):
		response.Unauthorized(c, "Session expired. Please sign in again.")
	case errors.Is(err, domain.ErrConnectionTimeout):
		response.GatewayTimeout(c, reason)
	case errors.Is(err, domain.ErrBackendRejected):
		writeRejection(c, backend.StatusOf(err), reason)
	case errors.Is(err, domain.ErrUnknownAuth):
		response.BadGateway(c, "BACKEND_ERROR", reason)
	default:
		response.InternalError(c, err)
	}
}

// writeBackendError maps a raw backend client error for the pass-through routes
func writeBackendError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, backend.ErrTimeout):
		response.GatewayTimeout(c, "The server took too long to respond. Please try again.")
	case errors.Is(err, backend.ErrRejected):
		reason := backend.ReasonOf(err)
		if reason == "" {
			reason = fallback
		}
		writeRejection(c, backend.StatusOf(err), reason)
	default:
		response.BadGateway(c, "BACKEND_UNAVAILABLE", fallback)
	}
}

// writeRejection forwards 4xx backend answers and folds everything else into 502
func writeRejection(c *gin.Context, status int, reason string) {
	if status >= 400 && status < 500 {
		response.Error(c, status, "BACKEND_REJECTED", reason, "")
		return
	}
	response.BadGateway(c, "BACKEND_REJECTED", reason)
}
