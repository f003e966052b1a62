// Package channel implements the application-layer secure channel: every
// sensitive endpoint unwraps its request body and wraps its response through
// this codec, keyed by the session key established during the handshake.
//
// The session key is never persisted server-side; its only storage is the
// HttpOnly cookie the client returns on every request. Compromising that
// cookie therefore compromises the channel — a documented trade-off of the
// stateless design, not an oversight.
package channel

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/apannell/go-secure-api/internal/errors"
)

// SessionKeyCookieName is the cookie carrying the hex-encoded session key.
const SessionKeyCookieName = "session_key"

// SessionKeyLen is the required session key length in bytes (AES-256).
const SessionKeyLen = 32

// Envelope is the wire shape of every encrypted request and response body.
type Envelope struct {
	EncryptedData string `json:"encryptedData"`
}

// ParseSessionKey validates and decodes a client-supplied hex session key.
func ParseSessionKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("session key is not valid hex")
	}
	if len(key) != SessionKeyLen {
		return nil, fmt.Errorf("session key must be %d bytes, got %d", SessionKeyLen, len(key))
	}
	return key, nil
}

// Encrypt seals plaintext under the session key with AES-256-GCM and returns
// base64(nonce || ciphertext).
func Encrypt(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("channel.Encrypt: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("channel.Encrypt: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("channel.Encrypt nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64(nonce || ciphertext) blob sealed under the session
// key. Any tampering, truncation, or wrong-key input fails authentication and
// collapses into ErrDecryptionFailed.
func Decrypt(key []byte, encoded string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.ErrDecryptionFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.ErrDecryptionFailed
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.ErrDecryptionFailed
	}

	if len(sealed) < aead.NonceSize() {
		return nil, errors.ErrDecryptionFailed
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.ErrDecryptionFailed
	}
	return plaintext, nil
}

// sessionKeyFromRequest reads and decodes the session key cookie.
func sessionKeyFromRequest(r *http.Request) ([]byte, error) {
	cookie, err := r.Cookie(SessionKeyCookieName)
	if err != nil || cookie.Value == "" {
		return nil, errors.ErrSessionMissing
	}
	key, err := ParseSessionKey(cookie.Value)
	if err != nil {
		return nil, errors.ErrSessionMissing
	}
	return key, nil
}

// DecryptRequest unwraps an encrypted request body into v.
//
// Failure modes, in order: ErrSessionMissing when the session key cookie is
// absent or unusable, ErrPayloadMissing when the body carries no envelope,
// ErrDecryptionFailed when authentication fails or the plaintext is not the
// expected JSON shape.
func DecryptRequest(r *http.Request, v any) error {
	key, err := sessionKeyFromRequest(r)
	if err != nil {
		return err
	}

	var env Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.EncryptedData == "" {
		return errors.ErrPayloadMissing
	}

	plaintext, err := Decrypt(key, env.EncryptedData)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return errors.ErrDecryptionFailed
	}
	return nil
}

// EncryptResponse serializes data, seals it under the request's session key,
// and writes the envelope at the given status code. The handshake must have
// completed before any encrypted reply can be produced, so a missing session
// key here is a server-side fault (ErrSessionMissingOnResponse), not a client
// error.
func EncryptResponse(w http.ResponseWriter, r *http.Request, status int, data any) error {
	key, err := sessionKeyFromRequest(r)
	if err != nil {
		return errors.ErrSessionMissingOnResponse
	}

	plaintext, err := json.Marshal(data)
	if err != nil {
		return errors.Wrapf(err, "channel.EncryptResponse marshal")
	}

	encrypted, err := Encrypt(key, plaintext)
	if err != nil {
		return errors.Wrapf(err, "channel.EncryptResponse")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(Envelope{EncryptedData: encrypted})
}
