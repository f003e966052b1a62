package server

import (
	"net/http"

	"github.com/apannell/go-secure-api/accounts"
	"github.com/apannell/go-secure-api/internal/errors"
)

type sessionResponse struct {
	User *accounts.Account `json:"user"`
}

// SessionHandler reports who the identity cookie belongs to. Absent identity
// is anonymous, not an error; a superseded token gets the distinct 401 shape.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(identityCookieName)
		if err != nil || cookie.Value == "" {
			respondJSON(w, http.StatusOK, sessionResponse{User: nil})
			return
		}

		_, account, err := s.tokens.Authenticate(cookie.Value)
		if err != nil {
			if errors.Is(err, errors.ErrSessionSuperseded) {
				respondSuperseded(w)
				return
			}
			respondJSON(w, http.StatusOK, sessionResponse{User: nil})
			return
		}

		respondJSON(w, http.StatusOK, sessionResponse{User: account})
	}
}

// ProfileHandler returns the authenticated account; RequireAuth guards it.
func (s *Server) ProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account := AccountFromContext(r.Context())
		if account == nil {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		respondJSON(w, http.StatusOK, sessionResponse{User: account})
	}
}
