// Package handshake implements the one-shot exchange that establishes a
// symmetric session key between one browser client and the server. The
// protocol is stateless on the server side: each submission is self-contained
// and success is signaled only by the session key cookie being set.
package handshake

import (
	"encoding/base64"

	"github.com/apannell/go-secure-api/channel"
	"github.com/apannell/go-secure-api/internal/errors"
	"github.com/apannell/go-secure-api/keys"
)

// Service completes handshakes against the process key authority.
type Service struct {
	keys *keys.Provider
}

func New(keyProvider *keys.Provider) *Service {
	return &Service{keys: keyProvider}
}

// PublicKeyPEM returns the public key clients encrypt their session key under.
func (s *Service) PublicKeyPEM() (string, error) {
	return s.keys.PublicKeyPEM()
}

// Complete decrypts a base64, RSA-encrypted session key submission and
// validates the recovered key material. It returns the hex session key to be
// set as the channel cookie. The client is not required to have fetched the
// public key through us first; a cached copy of the right key works the same.
func (s *Service) Complete(encryptedSessionKey string) (string, error) {
	if encryptedSessionKey == "" {
		return "", errors.ErrHandshakeFailed
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedSessionKey)
	if err != nil {
		return "", errors.ErrHandshakeFailed
	}

	plaintext, err := s.keys.Decrypt(ciphertext)
	if err != nil {
		if errors.Is(err, errors.ErrKeyUnavailable) {
			return "", err
		}
		return "", errors.ErrHandshakeFailed
	}

	sessionKeyHex := string(plaintext)
	if _, err := channel.ParseSessionKey(sessionKeyHex); err != nil {
		return "", errors.ErrHandshakeFailed
	}

	return sessionKeyHex, nil
}
