package server

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/apannell/go-secure-api/accounts"
)

const defaultAdminUsername = "admin"

// InitialiseSystem seeds an admin account when the account store is empty.
// The generated password is printed exactly once at first boot; after that
// the store is considered configured.
func (s *Server) InitialiseSystem() error {
	existing, err := s.accounts.List(0, 1)
	if err != nil {
		return fmt.Errorf("failed to check for existing accounts: %w", err)
	}
	if len(existing) > 0 {
		log.Info().Msg("bootstrap: account store already configured")
		return nil
	}

	passwordBytes := make([]byte, 16)
	if _, err := rand.Read(passwordBytes); err != nil {
		return fmt.Errorf("failed to generate password: %w", err)
	}
	generatedPassword := base64.URLEncoding.EncodeToString(passwordBytes)

	passwordHash, err := accounts.HashPassword(generatedPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	adminEmail := generateEmailFromBaseURL(defaultAdminUsername, s.config.GetBaseURL())
	admin := &accounts.Account{
		Email:        adminEmail,
		Username:     defaultAdminUsername,
		PasswordHash: passwordHash,
		FirstName:    "System",
		LastName:     "Administrator",
		Role:         accounts.RoleAdmin,
	}

	if err := s.accounts.Upsert(admin); err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	log.Info().
		Str("email", adminEmail).
		Str("password", generatedPassword).
		Msg("bootstrap: created admin account - save this password, it will not be displayed again")
	return nil
}

// generateEmailFromBaseURL creates an email address from a username and base URL
// Example: ("admin", "https://api.example.com/path") -> "admin@api.example.com"
func generateEmailFromBaseURL(user, baseURL string) string {
	domain := strings.ReplaceAll(strings.ReplaceAll(baseURL, "https://", ""), "http://", "")
	domain = strings.SplitN(domain, "/", 2)[0]
	domain = strings.SplitN(domain, ":", 2)[0]
	return fmt.Sprintf("%s@%s", user, domain)
}
