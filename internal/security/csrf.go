package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-parfum/internal/common"
)

// CSRF guards cookie-authenticated endpoints (refresh, logout) with the
// double-submit technique. Requests that do not carry SessionCookie have no
// ambient credentials and pass.
type CSRF struct {
	Header        string
	Cookie        string
	SessionCookie string
	Domain        string
	Secure        bool
	SameSite      http.SameSite
}

func (c CSRF) headerName() string {
	if h := strings.TrimSpace(c.Header); h != "" {
		return h
	}
	return "X-CSRF-Token"
}

func (c CSRF) cookieName() string {
	if n := strings.TrimSpace(c.Cookie); n != "" {
		return n
	}
	return "csrf_token"
}

// Issue handles GET /auth/csrf: it sets a fresh token cookie and echoes the
// token for the client to send back in the header.
func (c CSRF) Issue(w http.ResponseWriter, _ *http.Request) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not issue token", nil)
		return
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	sameSite := c.SameSite
	if sameSite == http.SameSiteDefaultMode {
		sameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName(),
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: sameSite,
	})
	common.Data(w, http.StatusOK, map[string]string{"token": token, "header": c.headerName()})
}

// Middleware enforces that unsafe requests made with the session cookie
// include a header token matching the CSRF cookie.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if c.SessionCookie != "" {
			if _, err := r.Cookie(c.SessionCookie); err != nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		token := strings.TrimSpace(r.Header.Get(c.headerName()))
		cookie, err := r.Cookie(c.cookieName())
		if token == "" || err != nil || cookie.Value == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_REQUIRED", "missing csrf token", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_INVALID", "invalid csrf token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
