package session

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/soulmechanik/forems-portal/pkg/logger"
	"github.com/soulmechanik/forems-portal/pkg/middleware"
	"github.com/soulmechanik/forems-portal/pkg/response"
	"go.uber.org/zap"
)

// contextKey is the gin key holding the per-request *Context
const contextKey = "portal_session"

// Context is the explicit per-request session scope. It is built by
// Manager.Middleware, replaced by Commit and torn down by Clear.
type Context struct {
	Token     domain.Token
	View      *domain.SessionView
	SessionID string
	// Rejected is set when a cookie was presented but failed verification
	Rejected bool
}

// Authenticated reports whether a usable session is present
func (s *Context) Authenticated() bool {
	return s != nil && s.View != nil
}

func newContext(t domain.Token) *Context {
	return &Context{Token: t, View: Resolve(t), SessionID: t.SessionID}
}

// Manager binds the codec to cookies and the gin request scope
type Manager struct {
	codec  *Codec
	cookie CookieConfig
	log    *logger.Logger
}

// NewManager creates a Manager
func NewManager(codec *Codec, cookie CookieConfig, log *logger.Logger) *Manager {
	if cookie.Name == "" {
		cookie.Name = "portal_session"
	}
	if cookie.MaxAge == 0 {
		cookie.MaxAge = codec.TTL()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{codec: codec, cookie: cookie, log: log}
}

// SecureCookies reports whether cookies are marked Secure
func (m *Manager) SecureCookies() bool {
	return m.cookie.Secure
}

// Middleware loads the session from the cookie (or a bearer header) into
// the request scope. It never aborts.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := m.read(c)
		if !ok {
			c.Set(contextKey, &Context{})
			c.Next()
			return
		}

		token, err := m.codec.Decode(raw)
		if err != nil {
			m.log.Debug("session cookie rejected", zap.Error(err))
			ClearCookie(c.Writer, m.cookie.Name, m.cookie.Secure)
			c.Set(contextKey, &Context{Rejected: true})
			c.Next()
			return
		}

		sc := newContext(token)
		c.Set(contextKey, sc)
		c.Set(middleware.SessionIDKey, sc.SessionID)
		c.Next()
	}
}

// Require aborts with 401 unless the request carries a resolved session
func (m *Manager) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !FromGin(c).Authenticated() {
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Commit writes t to the cookie and replaces the request scope. An empty
// token tears the session down instead.
func (m *Manager) Commit(c *gin.Context, t domain.Token) error {
	if t.IsEmpty() {
		m.Clear(c)
		return nil
	}
	signed, err := m.codec.Encode(t)
	if err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	WriteCookie(c.Writer, m.cookie.Name, signed, m.cookie.MaxAge, m.cookie.Secure)
	sc := newContext(t)
	c.Set(contextKey, sc)
	c.Set(middleware.SessionIDKey, sc.SessionID)
	return nil
}

// Clear expires the cookie and empties the request scope
func (m *Manager) Clear(c *gin.Context) {
	ClearCookie(c.Writer, m.cookie.Name, m.cookie.Secure)
	c.Set(contextKey, &Context{})
}

func (m *Manager) read(c *gin.Context) (string, bool) {
	if v, ok := ReadCookie(c.Request, m.cookie.Name); ok {
		return v, true
	}
	const bearerPrefix = "Bearer "
	auth := c.GetHeader("Authorization")
	if len(auth) > len(bearerPrefix) && strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):]), true
	}
	return "", false
}

// FromGin returns the request's session scope. It never returns nil.
func FromGin(c *gin.Context) *Context {
	if v, ok := c.Get(contextKey); ok {
		if sc, ok := v.(*Context); ok && sc != nil {
			return sc
		}
	}
	return &Context{}
}
