package server

import (
	"net/http"

	"github.com/apannell/go-secure-api/channel"
)

const (
	// identityCookieName is the cookie carrying the signed identity token
	identityCookieName = "identity_token"
)

// SetSessionKeyCookie stores the established session key on the client. The
// cookie is the key's only storage: HttpOnly keeps it away from script, and
// SameSite=Strict keeps it off cross-site requests.
func (s *Server) SetSessionKeyCookie(w http.ResponseWriter, r *http.Request, sessionKeyHex string) {
	isSecure := getScheme(r) == "https"

	http.SetCookie(w, &http.Cookie{
		Name:     channel.SessionKeyCookieName,
		Value:    sessionKeyHex,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.config.GetSessionKeyTTL().Seconds()),
	})
}

// SetIdentityCookie stores the signed identity token, scoped separately from
// the session key and on its own seven-day clock.
func (s *Server) SetIdentityCookie(w http.ResponseWriter, r *http.Request, signedToken string) {
	isSecure := getScheme(r) == "https"

	http.SetCookie(w, &http.Cookie{
		Name:     identityCookieName,
		Value:    signedToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.config.GetIdentityTokenTTL().Seconds()),
	})
}

// ClearIdentityCookie expires the identity token cookie.
func (s *Server) ClearIdentityCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     identityCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}
