package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/apannell/go-secure-api/internal/errors"
)

// publicKeyResponse is the body of GET /keys
type publicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// handshakeRequest is the body of POST /handshake
type handshakeRequest struct {
	EncryptedSessionKey string `json:"encryptedSessionKey"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// PublicKeyHandler serves the process public key for clients to encrypt their
// session key under.
func (s *Server) PublicKeyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pemStr, err := s.handshake.PublicKeyPEM()
		if err != nil {
			log.Error().Err(err).Msg("public key unavailable")
			respondError(w, http.StatusInternalServerError, errors.ErrKeyUnavailable.Error())
			return
		}
		respondJSON(w, http.StatusOK, publicKeyResponse{PublicKey: pemStr})
	}
}

// HandshakeHandler completes the one-shot key exchange. On success the only
// secret-bearing output is the session key cookie; the body reveals nothing.
func (s *Server) HandshakeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req handshakeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errors.ErrHandshakeFailed.Error())
			return
		}

		sessionKeyHex, err := s.handshake.Complete(req.EncryptedSessionKey)
		if err != nil {
			respondChannelError(w, err)
			return
		}

		s.SetSessionKeyCookie(w, r, sessionKeyHex)
		respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	}
}
