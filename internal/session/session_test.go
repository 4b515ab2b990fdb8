package session

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/soulmechanik/forems-portal/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(CodecConfig{Secret: "test-secret", Issuer: "forems-portal", TTL: time.Hour})
	require.NoError(t, err)
	return c
}

func sampleToken() domain.Token {
	return domain.Token{
		SessionID:         "sess-1",
		UserID:            "user-1",
		Email:             "ada@example.com",
		Name:              "Ada",
		Roles:             []domain.Role{domain.RoleTenant, domain.RoleLandlord},
		ActiveRole:        domain.RolePtr(domain.RoleTenant),
		Onboarded:         true,
		Verified:          true,
		HasActiveTenancy:  true,
		BackendCredential: "backend-bearer-secret",
		IssuedAt:          time.Unix(1_700_000_000, 0),
		RefreshedAt:       time.Unix(1_700_000_600, 0),
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t)
	in := sampleToken()

	s, err := codec.Encode(in)
	require.NoError(t, err)

	out, err := codec.Decode(s)
	require.NoError(t, err)
	assert.True(t, in.Equal(out), "decoded token differs: %+v", out)
}

func TestCodec_CredentialIsSealed(t *testing.T) {
	codec := newTestCodec(t)

	s, err := codec.Encode(sampleToken())
	require.NoError(t, err)

	parts := strings.Split(s, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "backend-bearer-secret")
}

func TestCodec_RejectsTampering(t *testing.T) {
	codec := newTestCodec(t)
	s, err := codec.Encode(sampleToken())
	require.NoError(t, err)

	other, err := NewCodec(CodecConfig{Secret: "other-secret", Issuer: "forems-portal"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		codec *Codec
	}{
		{"garbage", "not-a-jwt", codec},
		{"flipped signature", s[:len(s)-2] + "xx", codec},
		{"wrong secret", s, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Decode(tt.token)
			assert.ErrorIs(t, err, domain.ErrInvalidSession)
		})
	}
}

func TestCodec_RejectsNoneAlgorithm(t *testing.T) {
	codec := newTestCodec(t)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iss": "forems-portal",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = codec.Decode(unsigned)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestCodec_Expired(t *testing.T) {
	codec := newTestCodec(t)
	codec.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	s, err := codec.Encode(sampleToken())
	require.NoError(t, err)

	codec.now = time.Now
	_, err = codec.Decode(s)
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestCodec_RejectsEmptyToken(t *testing.T) {
	_, err := newTestCodec(t).Encode(domain.Token{SessionID: "s"})
	assert.ErrorIs(t, err, domain.ErrInvalidSession)
}

func TestSealer_BoundToSession(t *testing.T) {
	s, err := newSealer("secret")
	require.NoError(t, err)

	sealed, err := s.seal("cred", "sess-1")
	require.NoError(t, err)

	plain, err := s.open(sealed, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "cred", plain)

	_, err = s.open(sealed, "sess-2")
	assert.Error(t, err)
	_, err = s.open("!!", "sess-1")
	assert.Error(t, err)
}

func TestResolve_MissingUserIDIsNil(t *testing.T) {
	tokens := []domain.Token{
		{},
		{Roles: []domain.Role{domain.RoleLandlord}, ActiveRole: domain.RolePtr(domain.RoleLandlord), Onboarded: true, Verified: true},
		{SessionID: "s", Email: "a@b.c", BackendCredential: "cred", HasActiveTenancy: true},
	}
	for _, tok := range tokens {
		assert.Nil(t, Resolve(tok))
	}
}

func TestResolve_Projection(t *testing.T) {
	view := Resolve(domain.Token{UserID: "u1"})
	require.NotNil(t, view)
	assert.Equal(t, []domain.Role{}, view.Roles)
	assert.Nil(t, view.ActiveRole)
	assert.False(t, view.Onboarded)
	assert.False(t, view.Verified)

	tok := sampleToken()
	view = Resolve(tok)
	require.NotNil(t, view)
	assert.Equal(t, tok.Roles, view.Roles)
	assert.Equal(t, domain.RoleTenant, *view.ActiveRole)

	// The view never aliases the token.
	view.Roles[0] = domain.RoleAgent
	assert.Equal(t, domain.RoleTenant, tok.Roles[0])
}

func newTestManager(t *testing.T) *Manager {
	return NewManager(newTestCodec(t), CookieConfig{Name: "portal_session"}, nil)
}

func TestManager_Middleware(t *testing.T) {
	m := newTestManager(t)
	signed, err := m.codec.Encode(sampleToken())
	require.NoError(t, err)

	tests := []struct {
		name         string
		setup        func(r *http.Request)
		wantAuth     bool
		wantRejected bool
		wantCleared  bool
	}{
		{"no cookie", func(r *http.Request) {}, false, false, false},
		{"valid cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "portal_session", Value: signed})
		}, true, false, false},
		{"bearer header", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signed)
		}, true, false, false},
		{"tampered cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "portal_session", Value: signed + "x"})
		}, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			var got *Context
			r.Use(m.Middleware())
			r.GET("/x", func(c *gin.Context) {
				got = FromGin(c)
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			tt.setup(req)
			r.ServeHTTP(w, req)

			require.NotNil(t, got)
			assert.Equal(t, tt.wantAuth, got.Authenticated())
			assert.Equal(t, tt.wantRejected, got.Rejected)
			assert.Equal(t, tt.wantCleared, strings.Contains(w.Header().Get("Set-Cookie"), "Max-Age=0"))
			if tt.wantAuth {
				assert.Equal(t, "sess-1", got.SessionID)
				assert.Equal(t, "backend-bearer-secret", got.Token.BackendCredential)
			}
		})
	}
}

func TestManager_Require(t *testing.T) {
	m := newTestManager(t)
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/private", m.Require(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestManager_CommitAndClear(t *testing.T) {
	m := newTestManager(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	require.NoError(t, m.Commit(c, sampleToken()))
	assert.True(t, FromGin(c).Authenticated())
	cookie := w.Result().Cookies()[0]
	assert.Equal(t, "portal_session", cookie.Name)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	require.NoError(t, m.Commit(c, domain.Token{}))
	assert.False(t, FromGin(c).Authenticated())
}

func TestFlash_RoundTrip(t *testing.T) {
	type notice struct {
		Kind string `json:"kind"`
	}

	w := httptest.NewRecorder()
	WriteFlash(w, notice{Kind: "role_switched"}, false)
	flashCookie := w.Result().Cookies()[0]
	assert.False(t, flashCookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(flashCookie)

	w2 := httptest.NewRecorder()
	var got notice
	require.True(t, ReadAndClearFlash(w2, req, &got, false))
	assert.Equal(t, "role_switched", got.Kind)
	assert.Contains(t, w2.Header().Get("Set-Cookie"), "Max-Age=0")

	var none notice
	assert.False(t, ReadAndClearFlash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), &none, false))
}
