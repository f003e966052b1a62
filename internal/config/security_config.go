package config

import "time"

type SecurityConfig interface {
	GetTokenSecret() string
	GetSessionKeyTTL() time.Duration
	GetIdentityTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetTokenSecret returns the HMAC secret used to sign identity tokens.
// A process-local random secret would invalidate all tokens on restart, so
// deployments must set TOKEN_SECRET explicitly.
func (Security) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", "dev-only-insecure-secret")
}

func (Security) GetSessionKeyTTL() time.Duration {
	return 24 * time.Hour // Channel keys live for one day
}

func (Security) GetIdentityTokenTTL() time.Duration {
	return 7 * 24 * time.Hour // Identity tokens live for seven days
}

func (Security) GetResetTokenTTL() time.Duration {
	return 15 * time.Minute
}
