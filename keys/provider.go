package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"sync"

	"github.com/google/uuid"

	"github.com/apannell/go-secure-api/internal/errors"
)

// Provider is the key authority: it lazily generates the process keypair on
// first use and serves all concurrent requests from that single pair. It is
// constructed explicitly and passed by reference into every consumer rather
// than held as package state.
type Provider struct {
	once    sync.Once
	keyPair *KeyPair
	genErr  error
}

// NewProvider returns a Provider that generates its keypair on first use.
func NewProvider() *Provider {
	return &Provider{}
}

// NewProviderFromPEM returns a Provider backed by an externally provisioned
// private key, for deployments that share one keypair across instances.
func NewProviderFromPEM(privateKeyPEM string) (*Provider, error) {
	kp, err := LoadKeyPairFromPEM(uuid.New().String(), privateKeyPEM)
	if err != nil {
		return nil, errors.Wrapf(err, "keys.NewProviderFromPEM")
	}
	p := &Provider{}
	p.once.Do(func() { p.keyPair = kp })
	return p, nil
}

func (p *Provider) keys() (*KeyPair, error) {
	p.once.Do(func() {
		p.keyPair, p.genErr = GenerateRSAKeyPair(uuid.New().String(), defaultKeyBits)
	})
	if p.genErr != nil {
		return nil, errors.ErrKeyUnavailable
	}
	return p.keyPair, nil
}

// PublicKeyPEM returns the public half of the process keypair in PEM form.
// Idempotent; always succeeds once the pair has been generated.
func (p *Provider) PublicKeyPEM() (string, error) {
	kp, err := p.keys()
	if err != nil {
		return "", err
	}
	pemStr, err := kp.ExportPublicKeyPEM()
	if err != nil {
		return "", errors.ErrKeyUnavailable
	}
	return pemStr, nil
}

// Decrypt decrypts a blob encrypted under the provider's public key with
// RSA-OAEP(SHA-256). Every failure mode (malformed ciphertext, wrong key,
// padding failure) collapses into the same ErrDecryptionFailed so the error
// shape leaks nothing about which check tripped.
func (p *Provider) Decrypt(ciphertext []byte) ([]byte, error) {
	kp, err := p.keys()
	if err != nil {
		return nil, err
	}
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, kp.PrivateKey, ciphertext, nil)
	if err != nil {
		return nil, errors.ErrDecryptionFailed
	}
	return plaintext, nil
}
