package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/apannell/go-secure-api/internal/errors"
)

const contentTypeJSON = "application/json; charset=utf-8"

// errorResponse is the fixed error shape: a message only, never the offending
// ciphertext, derived plaintext, or any key material.
type errorResponse struct {
	Error string `json:"error"`
}

// supersededResponse is the distinct shape for a valid token revoked by a
// newer login, so clients can prompt "signed in elsewhere" instead of
// treating it as bad credentials.
type supersededResponse struct {
	User           any    `json:"user"`
	SessionExpired bool   `json:"sessionExpired"`
	Message        string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

func respondSuperseded(w http.ResponseWriter) {
	respondJSON(w, http.StatusUnauthorized, supersededResponse{
		User:           nil,
		SessionExpired: true,
		Message:        "your session was signed in on another device",
	})
}

// respondChannelError maps codec and handshake sentinels onto their HTTP
// statuses and fixed-shape bodies.
func respondChannelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrKeyUnavailable):
		respondError(w, http.StatusInternalServerError, errors.ErrKeyUnavailable.Error())
	case errors.Is(err, errors.ErrHandshakeFailed):
		respondError(w, http.StatusBadRequest, errors.ErrHandshakeFailed.Error())
	case errors.Is(err, errors.ErrSessionMissing):
		respondError(w, http.StatusBadRequest, errors.ErrSessionMissing.Error())
	case errors.Is(err, errors.ErrPayloadMissing):
		respondError(w, http.StatusBadRequest, errors.ErrPayloadMissing.Error())
	case errors.Is(err, errors.ErrDecryptionFailed):
		respondError(w, http.StatusBadRequest, errors.ErrDecryptionFailed.Error())
	case errors.Is(err, errors.ErrSessionMissingOnResponse):
		respondError(w, http.StatusInternalServerError, errors.ErrSessionMissing.Error())
	default:
		log.Error().Err(err).Msg("unexpected channel error")
		respondError(w, http.StatusInternalServerError, errors.ErrInternal.Error())
	}
}
