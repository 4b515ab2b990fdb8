package session

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// CookieConfig describes how the session cookie is written
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// FlashCookie carries one-time notices across a redirect
const FlashCookie = "portal_flash"

// ReadCookie returns the trimmed cookie value when present
func ReadCookie(r *http.Request, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(name)
	if err != nil || cookie == nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

// WriteCookie sets an HttpOnly, SameSite=Lax cookie scoped to the site root
func WriteCookie(w http.ResponseWriter, name, value string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires a cookie written by WriteCookie
func ClearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// WriteFlash stores a one-time notice for the next page. The cookie is not
// HttpOnly because dashboard scripts render the toast.
func WriteFlash(w http.ResponseWriter, notice any, secure bool) {
	payload, err := json.Marshal(notice)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		MaxAge:   60,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadAndClearFlash decodes the pending notice into v and expires it
func ReadAndClearFlash(w http.ResponseWriter, r *http.Request, v any, secure bool) bool {
	raw, ok := ReadCookie(r, FlashCookie)
	if !ok {
		return false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(decoded, v) == nil
}
