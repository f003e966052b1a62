package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/apannell/go-secure-api/accounts"
	"github.com/apannell/go-secure-api/channel"
	"github.com/apannell/go-secure-api/internal/errors"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool              `json:"success"`
	Token   string            `json:"token,omitempty"`
	User    *accounts.Account `json:"user,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// LoginHandler authenticates a credential pair carried inside the secure
// channel. On success it mints an identity token with a fresh session marker,
// persists that marker on the account (superseding any earlier login), and
// sets the identity cookie. Both the credentials and the reply travel
// encrypted; neither ever appears in transport logs.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := channel.DecryptRequest(r, &req); err != nil {
			respondChannelError(w, err)
			return
		}

		signedToken, account, err := s.tokens.Login(req.Email, req.Password)
		if err != nil {
			if !errors.Is(err, errors.ErrInvalidCredentials) {
				log.Error().Err(err).Msg("login failed")
			}
			s.encryptedReply(w, r, http.StatusUnauthorized, loginResponse{
				Success: false,
				Error:   errors.ErrInvalidCredentials.Error(),
			})
			return
		}

		s.SetIdentityCookie(w, r, signedToken)
		s.encryptedReply(w, r, http.StatusOK, loginResponse{
			Success: true,
			Token:   signedToken,
			User:    account,
		})
	}
}

// LogoutHandler clears the identity cookie and rotates the account's session
// marker so the outstanding token cannot be replayed.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(identityCookieName); err == nil {
			if claims, err := s.tokens.Verify(cookie.Value); err == nil {
				if err := s.tokens.RotateMarker(claims.AccountID()); err != nil {
					log.Error().Err(err).Msg("logout marker rotation failed")
				}
			}
		}
		s.ClearIdentityCookie(w)
		respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	}
}

// ForgotPasswordHandler mints a one-time reset token for the account and
// hands it to the notifier. The reply is identical whether or not the email
// is known, so the endpoint cannot be used to probe for accounts.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if err := channel.DecryptRequest(r, &req); err != nil {
			respondChannelError(w, err)
			return
		}

		account, err := s.accounts.GetByEmail(req.Email)
		if err == nil {
			tokenID := uuid.New().String()
			saveErr := s.resetTokens.Save(r.Context(), tokenID, account.ID, s.config.GetResetTokenTTL())
			if saveErr != nil {
				log.Error().Err(saveErr).Msg("failed to store reset token")
			} else if notifyErr := s.notifier.NotifyPasswordReset(account, tokenID); notifyErr != nil {
				log.Error().Err(notifyErr).Msg("failed to notify password reset")
			}
		}

		s.encryptedReply(w, r, http.StatusOK, statusResponse{Status: "ok"})
	}
}

// ResetPasswordHandler consumes a one-time reset token, replaces the password
// hash, and rotates the session marker so every outstanding login is
// superseded.
func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if err := channel.DecryptRequest(r, &req); err != nil {
			respondChannelError(w, err)
			return
		}

		if err := accounts.ValidatePasswordStrength(req.Password); err != nil {
			s.encryptedReply(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		accountID, err := s.resetTokens.Consume(r.Context(), req.Token)
		if err != nil {
			s.encryptedReply(w, r, http.StatusBadRequest, errorResponse{Error: errors.ErrResetTokenInvalid.Error()})
			return
		}

		passwordHash, err := accounts.HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("password hash failed")
			s.encryptedReply(w, r, http.StatusInternalServerError, errorResponse{Error: errors.ErrInternal.Error()})
			return
		}

		if err := s.accounts.SetPassword(accountID, passwordHash); err != nil {
			log.Error().Err(err).Msg("password update failed")
			s.encryptedReply(w, r, http.StatusInternalServerError, errorResponse{Error: errors.ErrInternal.Error()})
			return
		}

		if err := s.tokens.RotateMarker(accountID); err != nil {
			log.Error().Err(err).Msg("marker rotation after reset failed")
		}

		s.encryptedReply(w, r, http.StatusOK, statusResponse{Status: "ok"})
	}
}

// encryptedReply wraps data through the codec's response path; a failure here
// means the channel disappeared mid-request, which is a server-side fault.
func (s *Server) encryptedReply(w http.ResponseWriter, r *http.Request, status int, data any) {
	if err := channel.EncryptResponse(w, r, status, data); err != nil {
		respondChannelError(w, err)
	}
}
