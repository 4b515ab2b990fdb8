package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soulmechanik/forems-portal/internal/dto"
	"github.com/soulmechanik/forems-portal/internal/redirect"
	"github.com/soulmechanik/forems-portal/internal/session"
	"github.com/soulmechanik/forems-portal/pkg/response"
)

// RedirectHandler serves the post-auth redirect page
type RedirectHandler struct {
	router  *redirect.Router
	manager *session.Manager
}

// NewRedirectHandler creates a new RedirectHandler
func NewRedirectHandler(router *redirect.Router, manager *session.Manager) *RedirectHandler {
	return &RedirectHandler{router: router, manager: manager}
}

// Redirect evaluates the resolved session. Browsers get a 303 with the
// notice in a flash cookie; JSON clients get the decision and navigate
// themselves, passing their location in ?path=.
// GET /auth/redirect
func (h *RedirectHandler) Redirect(c *gin.Context) {
	sc := session.FromGin(c)

	state := redirect.State{
		Status:    redirect.StatusUnauthenticated,
		Session:   sc.View,
		SessionID: sc.SessionID,
	}
	if sc.Authenticated() {
		state.Status = redirect.StatusAuthenticated
	}

	if wantsJSON(c) {
		current := c.Query("path")
		if current == "" {
			current = redirect.EntryPath
		}
		decision := h.router.Evaluate(c.Request.Context(), state, current)
		response.Success(c, redirectResponse(decision))
		return
	}

	decision := h.router.Evaluate(c.Request.Context(), state, c.Request.URL.Path)
	if decision.Notice != nil {
		session.WriteFlash(c.Writer, noticeOutput(decision.Notice), h.manager.SecureCookies())
	}
	c.Redirect(http.StatusSeeOther, decision.Target)
}

func redirectResponse(d redirect.Decision) dto.RedirectResponse {
	return dto.RedirectResponse{
		Ready:    d.Ready,
		Target:   d.Target,
		Navigate: d.Navigate,
		DelayMs:  d.Delay.Milliseconds(),
		Notice:   noticeOutput(d.Notice),
	}
}

func noticeOutput(n *redirect.Notice) *dto.NoticeOutput {
	if n == nil {
		return nil
	}
	out := &dto.NoticeOutput{
		Kind:    string(n.Kind),
		Message: n.Message,
		Style:   n.Style,
	}
	if n.Role != nil {
		out.Role = *n.Role
	}
	return out
}
