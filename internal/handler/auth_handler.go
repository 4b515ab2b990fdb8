package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/internal/oauth"
	"github.com/soulmechanik/forems-portal/internal/redirect"
	"github.com/soulmechanik/forems-portal/internal/service"
	"github.com/soulmechanik/forems-portal/internal/session"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/response"
	"go.uber.org/zap"
)

const (
	// stateCookie binds the OAuth round trip to the browser that started it
	stateCookie = "portal_oauth_state"
	stateTTL    = 10 * time.Minute
)

// IdentityProvider runs the provider side of sign-in
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (*oauth.UserProfile, error)
}

// AuthHandler handles sign-in and sign-out
type AuthHandler struct {
	provider IdentityProvider
	sessions service.SessionService
	manager  *session.Manager
	log      *logger.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(provider IdentityProvider, sessions service.SessionService, manager *session.Manager, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{provider: provider, sessions: sessions, manager: manager, log: log}
}

// GoogleLogin starts the OAuth flow
// GET /auth/google/login
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	state := uuid.New().String()
	session.WriteCookie(c.Writer, stateCookie, state, stateTTL, h.manager.SecureCookies())
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(state))
}

// GoogleCallback completes the OAuth flow and opens the session.
// Every failure ends on the login page with a reason.
// GET /auth/google/callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	expected, _ := session.ReadCookie(c.Request, stateCookie)
	session.ClearCookie(c.Writer, stateCookie, h.manager.SecureCookies())

	if providerErr := c.Query("error"); providerErr != "" {
		redirectToLogin(c, "Google sign-in was cancelled")
		return
	}

	state := c.Query("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		redirectToLogin(c, "Sign-in session expired. Please try again.")
		return
	}

	profile, err := h.provider.Identify(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.log.Warn("Google identification failed", zap.Error(err))
		redirectToLogin(c, "Could not verify your Google account")
		return
	}

	token, err := h.sessions.SignIn(c.Request.Context(), service.GoogleIdentity{
		Email:   profile.Email,
		Name:    profile.Name,
		Subject: profile.Subject,
	}, service.ClientMeta{
		UserAgent: c.GetHeader("User-Agent"),
		IP:        c.ClientIP(),
	})
	if err != nil {
		redirectToLogin(c, domain.ReasonOf(err, service.ReasonRejected))
		return
	}

	if err := h.manager.Commit(c, token); err != nil {
		h.log.Error("Failed to write session cookie", zap.Error(err))
		redirectToLogin(c, "Could not start your session")
		return
	}

	c.Redirect(http.StatusSeeOther, redirect.EntryPath)
}

// SignOut tears the session down
// POST /auth/signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	sc := session.FromGin(c)
	if err := h.sessions.SignOut(c.Request.Context(), sc.Token, domain.RevokeSignOut); err != nil {
		h.log.Warn("Sign-out teardown incomplete", zap.String("session_id", sc.SessionID), zap.Error(err))
	}
	h.manager.Clear(c)

	if wantsJSON(c) {
		response.Success(c, gin.H{"signedOut": true})
		return
	}
	c.Redirect(http.StatusSeeOther, redirect.LoginPath)
}
