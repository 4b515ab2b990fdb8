package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soulmechanik/forems-portal/internal/dto"
	"github.com/soulmechanik/forems-portal/internal/session"
	"github.com/soulmechanik/forems-portal/pkg/response"
)

// AccountBackend runs the password and verification flows
type AccountBackend interface {
	RequestPasswordReset(ctx context.Context, email string) (*dto.MessageResponse, error)
	ResetPassword(ctx context.Context, token, newPassword string) (*dto.MessageResponse, error)
	VerifyEmail(ctx context.Context, token string) (*dto.MessageResponse, error)
	ResendVerification(ctx context.Context, userID string) (*dto.MessageResponse, error)
}

// AccountHandler proxies account maintenance endpoints
type AccountHandler struct {
	backend AccountBackend
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(backend AccountBackend) *AccountHandler {
	return &AccountHandler{backend: backend}
}

// RequestPasswordReset sends a reset link
// POST /api/auth/request-password-reset
func (h *AccountHandler) RequestPasswordReset(c *gin.Context) {
	var req dto.RequestPasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "A valid email is required")
		return
	}

	result, err := h.backend.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		writeBackendError(c, err, "Failed to request password reset")
		return
	}
	response.Success(c, result)
}

// ResetPassword sets a new password from a reset token
// POST /api/auth/reset-password
func (h *AccountHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if valid, msg := req.ValidatePassword(); !valid {
		response.Error(c, http.StatusBadRequest, "WEAK_PASSWORD", msg, "")
		return
	}

	result, err := h.backend.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		writeBackendError(c, err, "Failed to reset password")
		return
	}
	response.Success(c, result)
}

// VerifyEmail confirms an email verification token
// GET /api/auth/verify-email?token=
func (h *AccountHandler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.BadRequest(c, "Verification token is required")
		return
	}

	result, err := h.backend.VerifyEmail(c.Request.Context(), token)
	if err != nil {
		writeBackendError(c, err, "Failed to verify email")
		return
	}
	response.Success(c, result)
}

// ResendVerification sends a new verification email. The user id defaults
// to the signed-in user.
// POST /api/auth/resend-verification
func (h *AccountHandler) ResendVerification(c *gin.Context) {
	var req dto.ResendVerificationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	if req.UserID == "" {
		req.UserID = session.FromGin(c).Token.UserID
	}
	if req.UserID == "" {
		response.BadRequest(c, "userId is required")
		return
	}

	result, err := h.backend.ResendVerification(c.Request.Context(), req.UserID)
	if err != nil {
		writeBackendError(c, err, "Failed to resend verification email")
		return
	}
	response.Success(c, result)
}
