package server

import (
	"context"
	"net/http"

	"github.com/apannell/go-secure-api/accounts"
	"github.com/apannell/go-secure-api/internal/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyAccount stores the authenticated account
	ContextKeyAccount ContextKey = "account"
)

// AccountFromContext returns the authenticated account placed by RequireAuth,
// or nil for anonymous requests.
func AccountFromContext(ctx context.Context) *accounts.Account {
	account, _ := ctx.Value(ContextKeyAccount).(*accounts.Account)
	return account
}

// RequireAuth validates the identity token cookie and injects the account
// into the request context. An absent cookie or a failed signature/expiry
// check is plain 401; a well-signed token revoked by a newer login gets the
// distinct superseded shape so the client can prompt a re-login.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(identityCookieName)
			if err != nil || cookie.Value == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			_, account, err := s.tokens.Authenticate(cookie.Value)
			if err != nil {
				if errors.Is(err, errors.ErrSessionSuperseded) {
					respondSuperseded(w)
					return
				}
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyAccount, account)
			next(w, r.WithContext(ctx))
		}
	}
}
