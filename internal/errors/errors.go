package errors

import (
	"errors"
	"fmt"
)

// Error classes for the secure channel and session layer.
// Handlers map these to fixed-shape JSON payloads; none of them ever carry
// key material, ciphertext, or credentials in their messages.
var (
	// Key authority errors
	ErrKeyUnavailable = errors.New("key authority unavailable")

	// Handshake errors
	ErrHandshakeFailed = errors.New("handshake failed")

	// Secure channel errors
	ErrSessionMissing           = errors.New("secure session not established")
	ErrPayloadMissing           = errors.New("encrypted payload missing")
	ErrDecryptionFailed         = errors.New("unable to decrypt request")
	ErrSessionMissingOnResponse = errors.New("secure session missing on response")

	// Identity token errors
	ErrInvalidToken      = errors.New("invalid token")
	ErrTokenExpired      = errors.New("token expired")
	ErrSessionSuperseded = errors.New("session superseded by a newer login")

	// Account errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountNotFound    = errors.New("account not found")

	// Reset token errors
	ErrResetTokenInvalid = errors.New("reset token invalid or expired")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
