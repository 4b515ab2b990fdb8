package dto

import (
	"strings"
	"unicode"

	"github.com/soulmechanik/forems-portal/internal/domain"
)

// SessionResponse is returned by GET/POST /api/auth/session
type SessionResponse struct {
	Status  string              `json:"status"`
	Session *domain.SessionView `json:"session"`
}

// SessionUpdateRequest is the optional body of POST /api/auth/session
type SessionUpdateRequest struct {
	ActiveRole       *string `json:"activeRole"`
	Onboarded        *bool   `json:"onboarded"`
	Verified         *bool   `json:"verified"`
	HasActiveTenancy *bool   `json:"hasActiveTenancy"`
}

// ToPatch validates the request and converts it to a session patch
func (r *SessionUpdateRequest) ToPatch() (*domain.SessionPatch, error) {
	if r == nil {
		return nil, nil
	}
	patch := &domain.SessionPatch{
		Onboarded:        r.Onboarded,
		Verified:         r.Verified,
		HasActiveTenancy: r.HasActiveTenancy,
	}
	if r.ActiveRole != nil {
		role, err := domain.ParseRole(*r.ActiveRole)
		if err != nil {
			return nil, err
		}
		patch.ActiveRole = &role
	}
	return patch, nil
}

// SwitchRoleAPIRequest is the body of POST /api/auth/switch-role
type SwitchRoleAPIRequest struct {
	Role string `json:"role" binding:"required"`
}

// SwitchRoleAPIResponse reports the outcome of a role switch
type SwitchRoleAPIResponse struct {
	Switched   bool        `json:"switched"`
	ActiveRole domain.Role `json:"activeRole"`
	Redirect   string      `json:"redirect,omitempty"`
}

// RedirectResponse is the JSON form of a redirect decision
type RedirectResponse struct {
	Ready    bool          `json:"ready"`
	Target   string        `json:"target,omitempty"`
	Navigate bool          `json:"navigate"`
	DelayMs  int64         `json:"delay_ms"`
	Notice   *NoticeOutput `json:"notice,omitempty"`
}

// NoticeOutput is a transient user-facing notification
type NoticeOutput struct {
	Kind    string             `json:"kind"`
	Message string             `json:"message"`
	Role    domain.Role        `json:"role,omitempty"`
	Style   *domain.Descriptor `json:"style,omitempty"`
}

// RequestPasswordResetRequest is the body of POST /api/auth/request-password-reset
type RequestPasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest is the body of POST /api/auth/reset-password
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ValidatePassword applies the minimal local checks before the backend
// sees the request: 8 to 72 characters with at least one letter and one digit.
func (r *ResetPasswordRequest) ValidatePassword() (bool, string) {
	password := r.NewPassword

	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > 72 {
		return false, "Password must not exceed 72 characters"
	}
	if strings.TrimSpace(password) != password {
		return false, "Password must not start or end with whitespace"
	}

	var hasLetter, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsLetter(c):
			hasLetter = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	if !hasLetter {
		return false, "Password must contain at least one letter"
	}
	if !hasDigit {
		return false, "Password must contain at least one digit"
	}
	return true, ""
}

// ResendVerificationRequest is the body of POST /api/auth/resend-verification
type ResendVerificationRequest struct {
	UserID string `json:"userId"`
}
